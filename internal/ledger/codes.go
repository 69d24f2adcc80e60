package ledger

import (
	"fmt"

	"LedgerRouter/internal/oblivious"
)

// KeyImageResultCode is the spend status of a key image.
type KeyImageResultCode uint32

// Wire values. Zero is reserved as "unused" by the wire format.
const (
	NotSpent      KeyImageResultCode = 1 // NotSpent means no spend was found
	Spent         KeyImageResultCode = 2 // Spent means the key image appears in the ledger
	KeyImageError KeyImageResultCode = 3 // KeyImageError is a retriable lookup failure
)

// String returns the code name.
func (c KeyImageResultCode) String() string {
	switch c {
	case NotSpent:
		return "NotSpent"
	case Spent:
		return "Spent"
	case KeyImageError:
		return "KeyImageError"
	default:
		return "Unknown"
	}
}

// Wire returns the wire encoding of the code.
func (c KeyImageResultCode) Wire() uint32 {
	return uint32(c)
}

// KeyImageResultCodeFromWire decodes a wire value. Values outside the
// enumeration become KeyImageError, chosen without branching on v.
func KeyImageResultCodeFromWire(v uint32) KeyImageResultCode {
	valid := oblivious.EqUint32(v, uint32(NotSpent)).
		Or(oblivious.EqUint32(v, uint32(Spent))).
		Or(oblivious.EqUint32(v, uint32(KeyImageError)))

	return oblivious.Pick(KeyImageResultCode(v), KeyImageError, valid)
}

// TimestampResultCode qualifies the timestamp of a result.
type TimestampResultCode uint32

// Wire values. Zero is reserved as "unused" by the wire format.
const (
	TimestampFound        TimestampResultCode = 1 // TimestampFound means Timestamp is valid
	WatcherBehind         TimestampResultCode = 2 // WatcherBehind means the timestamp source lags the ledger
	Unavailable           TimestampResultCode = 3 // Unavailable means no timestamp source could answer
	WatcherDatabaseError  TimestampResultCode = 4 // WatcherDatabaseError means the timestamp lookup failed
	BlockIndexOutOfBounds TimestampResultCode = 5 // BlockIndexOutOfBounds means the block is unknown
)

// String returns the code name.
func (c TimestampResultCode) String() string {
	switch c {
	case TimestampFound:
		return "TimestampFound"
	case WatcherBehind:
		return "WatcherBehind"
	case Unavailable:
		return "Unavailable"
	case WatcherDatabaseError:
		return "WatcherDatabaseError"
	case BlockIndexOutOfBounds:
		return "BlockIndexOutOfBounds"
	default:
		return "Unknown"
	}
}

// Wire returns the wire encoding of the code.
func (c TimestampResultCode) Wire() uint32 {
	return uint32(c)
}

// TimestampResultCodeFromWire decodes a wire value. Values outside the
// enumeration become Unavailable, chosen without branching on v.
func TimestampResultCodeFromWire(v uint32) TimestampResultCode {
	valid := oblivious.EqUint32(v, uint32(TimestampFound)).
		Or(oblivious.EqUint32(v, uint32(WatcherBehind))).
		Or(oblivious.EqUint32(v, uint32(Unavailable))).
		Or(oblivious.EqUint32(v, uint32(WatcherDatabaseError))).
		Or(oblivious.EqUint32(v, uint32(BlockIndexOutOfBounds)))

	return oblivious.Pick(TimestampResultCode(v), Unavailable, valid)
}

// ParseKeyImageResultCode parses a code name produced by String.
func ParseKeyImageResultCode(s string) (KeyImageResultCode, error) {
	for _, c := range []KeyImageResultCode{NotSpent, Spent, KeyImageError} {
		if c.String() == s {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown key image result code %q", s)
}

// ParseTimestampResultCode parses a code name produced by String.
func ParseTimestampResultCode(s string) (TimestampResultCode, error) {
	for _, c := range []TimestampResultCode{TimestampFound, WatcherBehind, Unavailable, WatcherDatabaseError, BlockIndexOutOfBounds} {
		if c.String() == s {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown timestamp result code %q", s)
}
