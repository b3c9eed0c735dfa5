package runtimebridge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTagUntagInt(t *testing.T) {
	for _, n := range []int64{0, 1, -1, 42, -42, 1 << 40} {
		v := TagInt(n)
		require.True(t, IsInt(v), "tagged integer must have low bit set")
		require.Equal(t, n, UntagInt(v))
	}
}

func TestUnitIsTaggedZero(t *testing.T) {
	require.Equal(t, TagInt(0), Unit)
	require.True(t, IsInt(Unit))
}

func TestHeaderRoundTrip(t *testing.T) {
	h := MakeHeader(3, ClosureTag, Black)
	require.Equal(t, ClosureTag, h.Tag())
	require.EqualValues(t, 3, h.Wosize())
}

func TestMethodTableLookup(t *testing.T) {
	mt := MethodTable{Tags: []int64{1, 5, 9}, Methods: []Value{10, 50, 90}}

	v, ok := mt.Lookup(5)
	require.True(t, ok)
	require.Equal(t, Value(50), v)

	_, ok = mt.Lookup(6)
	require.False(t, ok)
}

func TestBytesLength(t *testing.T) {
	// 2 words = 16 bytes of storage, with 3 padding bytes recorded in the
	// last byte means a true length of 16-1-3=12.
	h := MakeHeader(2, 0, White)
	require.EqualValues(t, 12, BytesLength(h, 3))
}
