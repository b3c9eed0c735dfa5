package blocks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/opcode"
)

func w(op opcode.Opcode) int32 { return int32(op) }

func TestBuild_StraightLine(t *testing.T) {
	words := []int32{w(opcode.ConstInt), 5, w(opcode.Stop)}

	c, err := Build(words, 0, 1)
	require.NoError(t, err)
	require.Len(t, c.Blocks, 1)

	b := c.Blocks[0]
	require.Equal(t, First, b.Type)
	require.Equal(t, []decode.Instruction[int32]{
		{Kind: decode.Const, Int: 5},
		{Kind: decode.Stop},
	}, b.Instructions)
	require.Equal(t, ExitStop, b.Exit.Kind)
}

func TestBuild_Branch(t *testing.T) {
	// Branch{disp=1} at offset 0 resolves to absolute offset 2 (anchor is
	// the displacement word's own position, one past the opcode).
	words := []int32{w(opcode.Branch), 1, w(opcode.Stop)}

	c, err := Build(words, 0, 1)
	require.NoError(t, err)
	require.Len(t, c.Blocks, 2)

	entry := c.Blocks[0]
	require.Equal(t, ExitBranch, entry.Exit.Kind)
	target := c.Blocks[entry.Exit.Target]
	require.Equal(t, ExitStop, target.Exit.Kind)
}

func TestBuild_ReturnDepthMismatchIsVerificationError(t *testing.T) {
	words := []int32{w(opcode.Push), w(opcode.Return), 0}

	_, err := Build(words, 0, 1)
	require.Error(t, err)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
}

func TestBuild_TracksUsedClosures(t *testing.T) {
	// Closure{nvars=0, disp=1} at offset 0 resolves to absolute offset 3.
	words := []int32{w(opcode.Closure), 0, 1, w(opcode.Stop)}

	c, err := Build(words, 0, 1)
	require.NoError(t, err)
	require.Equal(t, []int32{3}, c.UsedClosures)
}
