package jitcore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/closurescan"
	"github.com/camljit/camljit/internal/emit"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// Const0, Stop: the smallest section that both the closure scanner and the
// baseline emitter accept end to end.
var trivialWords = []int32{99, 143}

func newTestState() *GlobalState {
	return New(Config{UseJIT: true}, runtimebridge.HelperAddrs{})
}

func TestLoadSection_AssignsSectionAndReturnsCode(t *testing.T) {
	g := newTestState()
	execPtr, err := g.LoadSection(trivialWords)
	require.NoError(t, err)
	require.NotZero(t, execPtr)
	require.Len(t, g.sections, 1)
}

func TestLoadSection_AssignsIncreasingIDs(t *testing.T) {
	g := newTestState()
	_, err := g.LoadSection(trivialWords)
	require.NoError(t, err)
	_, err = g.LoadSection(trivialWords)
	require.NoError(t, err)
	require.Len(t, g.sections, 2)
	require.Contains(t, g.sections, uint32(0))
	require.Contains(t, g.sections, uint32(1))
}

func TestInterpretBytecode_DisabledWhenJITOff(t *testing.T) {
	g := New(Config{UseJIT: false}, runtimebridge.HelperAddrs{})
	_, err := g.LoadSection(trivialWords)
	require.NoError(t, err)

	_, useCompiled := g.InterpretBytecode(0)
	require.False(t, useCompiled)
}

func TestInterpretBytecode_UnknownSection(t *testing.T) {
	g := newTestState()
	_, useCompiled := g.InterpretBytecode(99)
	require.False(t, useCompiled)
}

func TestInterpretBytecode_ReturnsCodePointerWhenLoaded(t *testing.T) {
	g := newTestState()
	_, err := g.LoadSection(trivialWords)
	require.NoError(t, err)

	execPtr, useCompiled := g.InterpretBytecode(0)
	require.True(t, useCompiled)
	require.NotZero(t, execPtr)
}

func TestOnBytecodeReleased_ClosesSection(t *testing.T) {
	g := newTestState()
	_, err := g.LoadSection(trivialWords)
	require.NoError(t, err)

	require.NoError(t, g.OnBytecodeReleased(0))
	require.Empty(t, g.sections)
}

func TestOnBytecodeReleased_UnknownSectionIsNoop(t *testing.T) {
	g := newTestState()
	require.NoError(t, g.OnBytecodeReleased(42))
}

func TestOnShutdown_ClosesAllSections(t *testing.T) {
	g := newTestState()
	_, err := g.LoadSection(trivialWords)
	require.NoError(t, err)
	_, err = g.LoadSection(trivialWords)
	require.NoError(t, err)

	require.NoError(t, g.OnShutdown())
	require.Empty(t, g.sections)
}

func TestPromote_SupportedClosureOptimizes(t *testing.T) {
	g := newTestState()
	sec := newSection(0, trivialWords)
	sec.closures = map[int32]closurescan.Entry{0: {Offset: 0, Arity: 1}}
	sec.result = &emit.Result{Metadata: map[int32]emit.Metadata{0: {Status: 0}}}
	g.sections[0] = sec

	require.NoError(t, g.Promote(0, 0))
	require.Equal(t, emit.StatusOptimized, sec.result.Metadata[0].Status)
	require.True(t, sec.promoted[0])

	// Repeat crossings of the hot threshold must not re-attempt promotion.
	require.NoError(t, g.Promote(0, 0))
}

func TestPromote_UnsupportedInstructionMarksFailed(t *testing.T) {
	g := newTestState()
	sec := newSection(0, []int32{41, 143}) // Restart, Stop: Restart has no IR lowering
	sec.closures = map[int32]closurescan.Entry{0: {Offset: 0, Arity: 1}}
	sec.result = &emit.Result{Metadata: map[int32]emit.Metadata{0: {Status: 0}}}
	g.sections[0] = sec

	require.NoError(t, g.Promote(0, 0))
	require.Equal(t, emit.StatusOptimizeFailed, sec.result.Metadata[0].Status)
	require.True(t, sec.promoted[0])
}

func TestPromote_UnknownSection(t *testing.T) {
	g := newTestState()
	require.Error(t, g.Promote(5, 0))
}

func TestPromote_UnknownClosure(t *testing.T) {
	g := newTestState()
	sec := newSection(0, trivialWords)
	sec.result = &emit.Result{Metadata: map[int32]emit.Metadata{}}
	g.sections[0] = sec

	require.Error(t, g.Promote(0, 7))
}

func TestOpcodeCounts_StartsAtZero(t *testing.T) {
	g := newTestState()
	counts := g.OpcodeCounts()
	for _, c := range counts {
		require.Zero(t, c)
	}
}
