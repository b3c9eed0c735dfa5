package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/blocks"
	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/runtimebridge"
)

func simpleClosure() *blocks.Closure {
	return &blocks.Closure{
		Arity:        1,
		MaxStackSize: 1,
		Blocks: []*blocks.Block{
			{
				ID:   0,
				Type: blocks.First,
				Instructions: []decode.Instruction[int32]{
					{Kind: decode.Const, Int: 7},
				},
				Exit: blocks.Exit{Kind: blocks.ExitStop},
			},
		},
	}
}

func TestLower_Simple(t *testing.T) {
	fn, err := Lower(simpleClosure())
	require.NoError(t, err)
	require.Len(t, fn.Blocks, 1)
	require.Equal(t, OpLoadConst, fn.Blocks[0].Ops[0].Kind)
	require.Equal(t, OpStop, fn.Blocks[0].Ops[1].Kind)
}

func TestLower_UnsupportedInstruction(t *testing.T) {
	c := simpleClosure()
	c.Blocks[0].Instructions = append(c.Blocks[0].Instructions, decode.Instruction[int32]{Kind: decode.Kind(250)})
	_, err := Lower(c)
	require.Error(t, err)
	var unsupported *UnsupportedClosure
	require.ErrorAs(t, err, &unsupported)
}

func TestCompileClosure_Simple(t *testing.T) {
	res, err := CompileClosure(simpleClosure(), runtimebridge.HelperAddrs{}, ErrorHandlingIgnore)
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
}

func TestCompileClosure_UnsupportedBecomesError(t *testing.T) {
	c := simpleClosure()
	c.Blocks[0].Instructions = append(c.Blocks[0].Instructions, decode.Instruction[int32]{Kind: decode.Kind(250)})
	_, err := CompileClosure(c, runtimebridge.HelperAddrs{}, ErrorHandlingIgnore)
	require.Error(t, err)
	var unsupported *UnsupportedClosure
	require.ErrorAs(t, err, &unsupported)
}

func TestCompileClosure_CallSiteStackMap(t *testing.T) {
	c := simpleClosure()
	c.Blocks[0].Instructions = []decode.Instruction[int32]{
		{Kind: decode.Push},
		{Kind: decode.CCall, Uint: 1, Uint2: 3},
	}
	res, err := CompileClosure(c, runtimebridge.HelperAddrs{}, ErrorHandlingIgnore)
	require.NoError(t, err)
	require.Len(t, res.StackMaps, 1)
}
