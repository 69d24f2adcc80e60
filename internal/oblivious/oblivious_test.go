package oblivious

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChoiceLogic(t *testing.T) {
	cases := []struct {
		a, b          Choice
		and, or, notA Choice
	}{
		{False, False, False, False, True},
		{False, True, False, True, True},
		{True, False, False, True, False},
		{True, True, True, True, False},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.and, tc.a.And(tc.b))
		assert.Equal(t, tc.or, tc.a.Or(tc.b))
		assert.Equal(t, tc.notA, tc.a.Not())
	}
}

func TestEqUint32(t *testing.T) {
	values := []uint32{0, 1, 2, 3, 0x7fffffff, 0x80000000, math.MaxUint32}

	for _, x := range values {
		for _, y := range values {
			assert.Equal(t, x == y, EqUint32(x, y).Unwrap(), "x=%d y=%d", x, y)
		}
	}
}

func TestEqBytes(t *testing.T) {
	a := []byte{1, 2, 3, 4}

	assert.True(t, EqBytes(a, []byte{1, 2, 3, 4}).Unwrap())
	assert.False(t, EqBytes(a, []byte{1, 2, 3, 5}).Unwrap())
	assert.False(t, EqBytes(a, []byte{0, 2, 3, 4}).Unwrap())
	assert.True(t, EqBytes(nil, []byte{}).Unwrap())
}

func TestSelect(t *testing.T) {
	var u64 uint64 = 1
	Select(&u64, math.MaxUint64, False)
	require.Equal(t, uint64(1), u64)

	Select(&u64, math.MaxUint64, True)
	require.Equal(t, uint64(math.MaxUint64), u64)

	Select(&u64, 7, True)
	require.Equal(t, uint64(7), u64)

	var u32 uint32 = 0xdeadbeef
	Select(&u32, 3, False)
	require.Equal(t, uint32(0xdeadbeef), u32)

	Select(&u32, 3, True)
	require.Equal(t, uint32(3), u32)
}

type code uint32

func TestSelectNamedType(t *testing.T) {
	c := code(1)
	Select(&c, code(2), True)

	assert.Equal(t, code(2), c)
}

func TestPick(t *testing.T) {
	assert.Equal(t, uint32(5), Pick[uint32](5, 9, True))
	assert.Equal(t, uint32(9), Pick[uint32](5, 9, False))
}

