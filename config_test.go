package camljit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/ir"
	"github.com/camljit/camljit/internal/trace"
)

func TestOptions_Defaults(t *testing.T) {
	o := NewOptions()
	require.False(t, o.JIT())
	require.False(t, o.Compiler())
	threshold, enabled := o.HotThreshold()
	require.EqualValues(t, defaultHotThreshold, threshold)
	require.True(t, enabled)
	require.Equal(t, trace.FormatNoprint, o.TraceFormat())
	require.Equal(t, ir.ErrorHandlingLog, o.CraneliftErrorHandling())
}

func TestOptions_WithMethodsReturnCopies(t *testing.T) {
	base := NewOptions()
	jit := base.WithJIT(true)
	require.False(t, base.JIT())
	require.True(t, jit.JIT())
}

func TestOptions_TraceImpliesCompiler(t *testing.T) {
	o := NewOptions().WithTrace(true)
	require.True(t, o.Trace())
	require.True(t, o.Compiler())
}

func TestOptions_NoHotThresholdDisablesPromotion(t *testing.T) {
	o := NewOptions().WithNoHotThreshold()
	_, enabled := o.HotThreshold()
	require.False(t, enabled)

	o = o.WithHotThreshold(5)
	_, enabled = o.HotThreshold()
	require.True(t, enabled)
}
