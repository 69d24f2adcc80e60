// Package oblivious provides branch-free primitives for code whose timing and
// memory-access pattern must not depend on the values it processes.
//
// Every function here executes the same instruction sequence regardless of
// its inputs. Callers combine them with bitwise operators only; converting a
// Choice to a Go bool and branching on it defeats the purpose.
package oblivious

import "crypto/subtle"

// Choice is a constant-time boolean holding exactly 0 or 1.
type Choice uint8

const (
	// False is the zero Choice.
	False Choice = 0

	// True is the one Choice.
	True Choice = 1
)

// And returns c AND o without short-circuiting.
func (c Choice) And(o Choice) Choice {
	return c & o
}

// Or returns c OR o without short-circuiting.
func (c Choice) Or(o Choice) Choice {
	return c | o
}

// Not returns the negation of c.
func (c Choice) Not() Choice {
	return c ^ 1
}

// Unwrap converts c to a bool. Only use it on values that are already public,
// such as in tests or after the protected computation has completed.
func (c Choice) Unwrap() bool {
	return c == 1
}

// EqUint32 returns True when x == y.
// z-1 underflows into the top bit of a 64-bit word only when z is zero.
func EqUint32(x, y uint32) Choice {
	z := uint64(x ^ y)

	return Choice((z - 1) >> 63)
}

// EqBytes returns True when a and b hold the same bytes.
// The comparison visits every byte; only the lengths, which are public, may
// short-circuit.
func EqBytes(a, b []byte) Choice {
	return Choice(subtle.ConstantTimeCompare(a, b))
}
