package opcode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromInt32RoundTrip(t *testing.T) {
	for i := int32(0); i < NumOpcodes; i++ {
		op, ok := FromInt32(i)
		require.True(t, ok, "opcode %d should parse", i)
		require.EqualValues(t, i, op, "opcode tag must round-trip through uint8")
	}
}

func TestFromInt32OutOfRange(t *testing.T) {
	_, ok := FromInt32(-1)
	require.False(t, ok)

	_, ok = FromInt32(NumOpcodes)
	require.False(t, ok)

	_, ok = FromInt32(255)
	require.False(t, ok)
}

func TestNamesAreUnique(t *testing.T) {
	seen := make(map[string]Opcode, NumOpcodes)
	for i := int32(0); i < NumOpcodes; i++ {
		op, _ := FromInt32(i)
		name := op.Name()
		require.NotEqual(t, "INVALID", name)
		if other, ok := seen[name]; ok {
			t.Fatalf("duplicate opcode name %q for %d and %d", name, other, op)
		}
		seen[name] = op
	}
}

func TestShapeSampling(t *testing.T) {
	require.Equal(t, ShapeNone, Acc0.Shape())
	require.Equal(t, ShapeUint, Acc.Shape())
	require.Equal(t, ShapeDisp, Branch.Shape())
	require.Equal(t, ShapeIntDisp, BEq.Shape())
	require.Equal(t, ShapeSwitch, Switch.Shape())
	require.Equal(t, ShapeClosureRec, ClosureRec.Shape())
	require.Equal(t, ShapeUintDisp, Closure.Shape())
	require.Equal(t, ShapePubMet, GetPubMet.Shape())
}
