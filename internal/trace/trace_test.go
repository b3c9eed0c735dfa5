package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/opcode"
)

func sampleEvent() Event {
	return Event{
		Location:      "block 3",
		Accu:          5,
		Env:           0,
		ExtraArgs:     1,
		SP:            -16,
		TrapSP:        -8,
		StackSize:     2,
		TopOfStack:    [5]int64{1, 3},
		TopOfStackLen: 2,
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"colorful", "plain", "json", "debug", "debug_pretty", "noprint"} {
		_, ok := ParseFormat(s)
		require.True(t, ok, s)
	}
	_, ok := ParseFormat("bogus")
	require.False(t, ok)
}

func TestJSONWriter_PrefixesInstructionAndCall(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatJSON, &buf)
	require.NoError(t, w.Write(sampleEvent()))
	require.Contains(t, buf.String(), "!T!")

	buf.Reset()
	e := sampleEvent()
	e.Call = true
	require.NoError(t, w.Write(e))
	require.Contains(t, buf.String(), "!C!")
}

func TestLineWriter_Plain(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatPlain, &buf)
	require.NoError(t, w.Write(sampleEvent()))
	require.Contains(t, buf.String(), "block 3")
}

func TestNoprintWriter_NoOutput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(FormatNoprint, &buf)
	require.NoError(t, w.Write(sampleEvent()))
	require.Empty(t, buf.String())
}

func TestCounters_IncrementAndSnapshot(t *testing.T) {
	var c Counters
	c.Increment(opcode.Acc0)
	c.Increment(opcode.Acc0)
	c.Increment(opcode.Push)
	snap := c.Snapshot()
	require.EqualValues(t, 2, snap[opcode.Acc0])
	require.EqualValues(t, 1, snap[opcode.Push])
}

func TestCounters_WriteInstructionCounts(t *testing.T) {
	dir := t.TempDir()
	var c Counters
	c.Increment(opcode.Acc0)
	require.NoError(t, c.WriteInstructionCounts(dir))
	_, err := os.Stat(filepath.Join(dir, "instruction_counts.json"))
	require.NoError(t, err)
}
