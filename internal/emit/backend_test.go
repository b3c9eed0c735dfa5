package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/closurescan"
	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// arithmetic end-to-end scenario from spec.md §8: Const(5), Push, Const(3),
// ArithInt(Add), Stop.
func TestCompile_Arithmetic(t *testing.T) {
	parsed := []decode.Instruction[int]{
		{Kind: decode.Const, Int: 5},
		{Kind: decode.Push},
		{Kind: decode.Const, Int: 3},
		{Kind: decode.ArithInt, Arith: decode.Add},
		{Kind: decode.Stop},
	}

	res, err := Compile(0, nil, parsed, nil, map[int32]closurescan.Entry{}, runtimebridge.HelperAddrs{}, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
}

func TestCompile_CapturesInstructions(t *testing.T) {
	parsed := []decode.Instruction[int]{{Kind: decode.Stop}}
	res, err := Compile(0, nil, parsed, nil, map[int32]closurescan.Entry{}, runtimebridge.HelperAddrs{}, Options{CaptureInstructions: true})
	require.NoError(t, err)
	require.Equal(t, parsed, res.Instructions)
}

func TestCompile_ClosureMetadata(t *testing.T) {
	closures := map[int32]closurescan.Entry{
		10: {Offset: 10, Arity: 2},
	}
	parsed := []decode.Instruction[int]{{Kind: decode.Stop}}
	res, err := Compile(3, nil, parsed, nil, closures, runtimebridge.HelperAddrs{}, Options{})
	require.NoError(t, err)
	require.Contains(t, res.Metadata, int32(10))
	meta := res.Metadata[10]
	require.EqualValues(t, 3, meta.Section)
	require.EqualValues(t, 1, meta.RequiredExtraArgs) // arity 2 -> 1 required extra arg
}

func TestCompile_UnhandledKindErrors(t *testing.T) {
	parsed := []decode.Instruction[int]{{Kind: decode.Kind(250)}}
	_, err := Compile(0, nil, parsed, nil, map[int32]closurescan.Entry{}, runtimebridge.HelperAddrs{}, Options{})
	require.Error(t, err)
}

func TestMetadata_Bytes(t *testing.T) {
	m := Metadata{Status: StatusRestart, CodeAddr: 0x1000, Section: 2, BytecodeOffset: 4, RequiredExtraArgs: 1}
	b := m.Bytes()
	require.Len(t, b, MetadataSize)
}
