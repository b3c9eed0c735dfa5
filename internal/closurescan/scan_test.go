package closurescan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/opcode"
)

func w(op opcode.Opcode) int32 { return int32(op) }

func TestScanFindsArityOneClosure(t *testing.T) {
	// main: CLOSURE(nvars=0, -> label 4); STOP
	// closure body at offset 4: ACC0; RETURN 1
	words := []int32{
		w(opcode.Closure), 0, 2, // anchor=2, disp=2 -> offset 4 (ACC0)
		w(opcode.Stop),
		w(opcode.Acc0),
		w(opcode.Return), 1,
	}
	entries, err := Scan(words)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, Entry{Offset: 4, Arity: 1}, entries[4])
}

func TestScanComputesArityFromGrab(t *testing.T) {
	// closure body begins with GRAB 2 -> arity 3
	words := []int32{
		w(opcode.Closure), 0, 2, // anchor=2, disp=2 -> offset 4 (GRAB)
		w(opcode.Stop),
		w(opcode.Grab), 2,
		w(opcode.Acc0),
		w(opcode.Return), 1,
	}
	entries, err := Scan(words)
	require.NoError(t, err)
	require.Equal(t, uint32(3), entries[4].Arity)
}

func TestScanClosureRecMultipleEntries(t *testing.T) {
	// CLOSUREREC nfuncs=2 nvars=0, labels at anchor(=index3): disp to 6, disp to 9
	words := []int32{
		w(opcode.ClosureRec), 2, 0,
		3, 6, // anchor=3: offsets 3+3=6, 3+6=9
		w(opcode.Stop),
		w(opcode.Acc0), w(opcode.Return), 1, // offset 6..8
		w(opcode.Acc1), w(opcode.Return), 1, // offset 9..11
	}
	entries, err := Scan(words)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Contains(t, entries, int32(6))
	require.Contains(t, entries, int32(9))
}
