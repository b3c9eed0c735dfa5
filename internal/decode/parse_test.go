package decode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/opcode"
)

func w(op opcode.Opcode) int32 { return int32(op) }

// nonLabel strips the synthetic LabelDef markers the decoder inserts at
// every original word boundary, leaving just the semantic instructions.
func nonLabel(ins []Instruction[int32]) []Instruction[int32] {
	out := make([]Instruction[int32], 0, len(ins))
	for _, i := range ins {
		if i.Kind != LabelDef {
			out = append(out, i)
		}
	}
	return out
}

func TestParseArithmeticExample(t *testing.T) {
	words := []int32{
		w(opcode.ConstInt), 5,
		w(opcode.Push),
		w(opcode.ConstInt), 3,
		w(opcode.AddInt),
		w(opcode.Stop),
	}
	parsed, err := Parse(words, 0)
	require.NoError(t, err)

	got := nonLabel(parsed.Instructions)
	require.Equal(t, []Instruction[int32]{
		{Kind: Const, Int: 5},
		{Kind: Push},
		{Kind: Const, Int: 3},
		{Kind: ArithInt, Arith: Add},
		{Kind: Stop},
	}, got)
}

func TestParseDesugarsPushAcc3(t *testing.T) {
	words := []int32{w(opcode.PushAcc3), w(opcode.Stop)}
	parsed, err := Parse(words, 0)
	require.NoError(t, err)

	got := nonLabel(parsed.Instructions)
	require.Equal(t, []Instruction[int32]{
		{Kind: Push},
		{Kind: Acc, Uint: 3},
		{Kind: Stop},
	}, got)
}

func TestParseGetPubMetDiscardsCache(t *testing.T) {
	words := []int32{w(opcode.GetPubMet), 7, 0xCAFE, w(opcode.Stop)}
	parsed, err := Parse(words, 0)
	require.NoError(t, err)

	got := nonLabel(parsed.Instructions)
	require.Equal(t, []Instruction[int32]{
		{Kind: SetupForPubMet, Int: 7},
		{Kind: GetDynMet},
		{Kind: Stop},
	}, got)
}

func TestParseBranchLabelIsAbsoluteWordOffset(t *testing.T) {
	// BRANCH's displacement word sits at word index 1; a disp of 2 must
	// resolve to absolute offset 3 (the anchor is the displacement word's
	// own position, per the decoder's label-anchoring contract).
	words := []int32{w(opcode.Branch), 2, 0, w(opcode.Stop)}
	parsed, err := Parse(words, 0)
	require.NoError(t, err)

	got := nonLabel(parsed.Instructions)
	require.Equal(t, Branch, got[0].Kind)
	require.EqualValues(t, 3, got[0].Label)
}

func TestParseBadOpcodeReturnsPartial(t *testing.T) {
	words := []int32{w(opcode.Stop), 999}
	_, err := Parse(words, 0)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, BadOpcode, perr.Reason)
	require.EqualValues(t, 999, perr.BadValue)
	require.NotNil(t, perr.Partial)
	require.Len(t, nonLabel(perr.Partial.Instructions), 1) // the Stop before the bad word
}

func TestParseUnexpectedEnd(t *testing.T) {
	words := []int32{w(opcode.ConstInt)} // missing the immediate operand
	_, err := Parse(words, 0)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, UnexpectedEnd, perr.Reason)
}

func TestParseNegativeLabelRejected(t *testing.T) {
	words := []int32{w(opcode.Branch), -5}
	_, err := Parse(words, 0)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, NegativeLabel, perr.Reason)
}

func TestOffsetMapPartitionsDecodedSequence(t *testing.T) {
	words := []int32{
		w(opcode.PushAcc2),
		w(opcode.Stop),
	}
	parsed, err := Parse(words, 0)
	require.NoError(t, err)

	span0 := parsed.OffsetMap[0]
	span1 := parsed.OffsetMap[1]
	require.Equal(t, int32(0), span0.Start)
	require.Equal(t, int32(3), span0.Count) // LabelDef, Push, Acc(2)
	require.Equal(t, int32(3), span1.Start)
	require.Equal(t, int32(2), span1.Count) // LabelDef, Stop
	require.Len(t, parsed.Instructions, 5)
}
