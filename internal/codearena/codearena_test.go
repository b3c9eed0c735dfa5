package codearena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocator_AllocateExec(t *testing.T) {
	a := &Allocator{}
	defer a.Close()

	mem, err := a.AllocateExec([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, []byte(mem))
	require.EqualValues(t, 16, a.last.consumed)
	require.EqualValues(t, minAllocSize-16, a.last.remaining)

	mem2, err := a.AllocateExec([]byte{4, 3, 2, 1})
	require.NoError(t, err)
	require.Equal(t, []byte{4, 3, 2, 1}, []byte(mem2))
	require.EqualValues(t, 32, a.last.consumed)
	require.EqualValues(t, minAllocSize-32, a.last.remaining)

	// The first allocation's backing memory must be untouched.
	require.Equal(t, []byte{1, 2, 3, 4}, []byte(mem))
}

func TestAllocator_growsNewBlockForOversizedAllocation(t *testing.T) {
	a := &Allocator{}
	defer a.Close()

	_, err := a.AllocateExec([]byte{1})
	require.NoError(t, err)
	firstBlock := a.last

	big := make([]byte, 40*1024)
	big[1] = 5
	mem, err := a.AllocateExec(big)
	require.NoError(t, err)
	require.NotSame(t, firstBlock, a.last)
	require.Equal(t, byte(5), mem[1])
}

func TestAllocator_Close(t *testing.T) {
	a := &Allocator{}
	_, err := a.AllocateExec([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, a.blocks, 1)

	require.NoError(t, a.Close())
	require.Nil(t, a.blocks)
	require.Nil(t, a.last)
}
