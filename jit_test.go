package camljit

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/runtimebridge"
)

// Const0, Stop: accepted end to end by both the closure scanner and the
// baseline emitter.
var jitTestWords = []int32{99, 143}

func wordsPtr(words []int32) uintptr {
	return uintptr(unsafe.Pointer(&words[0]))
}

func TestJIT_LoadInterpretRelease(t *testing.T) {
	j := Start(NewOptions().WithJIT(true), runtimebridge.HelperAddrs{})
	words := append([]int32(nil), jitTestWords...)
	codePtr := wordsPtr(words)

	execPtr, err := j.OnBytecodeLoaded(codePtr, len(words))
	require.NoError(t, err)
	require.NotZero(t, execPtr)

	got, useCompiled := j.InterpretBytecode(codePtr, len(words))
	require.True(t, useCompiled)
	require.Equal(t, execPtr, got)

	require.NoError(t, j.OnBytecodeReleased(codePtr, len(words)))

	_, useCompiled = j.InterpretBytecode(codePtr, len(words))
	require.False(t, useCompiled)
}

func TestJIT_InterpretBytecode_UnknownCodePtr(t *testing.T) {
	j := Start(nil, runtimebridge.HelperAddrs{})
	_, useCompiled := j.InterpretBytecode(0xdeadbeef, 2)
	require.False(t, useCompiled)
}

func TestJIT_OnBytecodeReleased_UnknownCodePtrIsNoop(t *testing.T) {
	j := Start(nil, runtimebridge.HelperAddrs{})
	require.NoError(t, j.OnBytecodeReleased(0xdeadbeef, 2))
}

func TestJIT_OnShutdown_ForgetsSections(t *testing.T) {
	j := Start(NewOptions().WithJIT(true), runtimebridge.HelperAddrs{})
	words := append([]int32(nil), jitTestWords...)
	codePtr := wordsPtr(words)

	_, err := j.OnBytecodeLoaded(codePtr, len(words))
	require.NoError(t, err)
	require.NoError(t, j.OnShutdown())

	_, useCompiled := j.InterpretBytecode(codePtr, len(words))
	require.False(t, useCompiled)
}

func TestJIT_PromoteClosure_UnknownCodePtr(t *testing.T) {
	j := Start(nil, runtimebridge.HelperAddrs{})
	require.Error(t, j.PromoteClosure(0xdeadbeef, 0))
}

func TestOptions_ToCoordinatorConfig(t *testing.T) {
	o := NewOptions().WithJIT(true).WithHotThreshold(7)
	cfg := o.toCoordinatorConfig()
	require.True(t, cfg.UseJIT)
	require.EqualValues(t, 7, cfg.HotThreshold)
	require.True(t, cfg.HotThresholdEnabled)
}
