package camljit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/ir"
	"github.com/camljit/camljit/internal/trace"
)

func TestParseOptions_Flags(t *testing.T) {
	o := parseOptions("use_jit trace trace_format=json hot_threshold=3 output_dir=/tmp/out save_compiled")
	require.True(t, o.JIT())
	require.True(t, o.Trace())
	require.Equal(t, trace.FormatJSON, o.TraceFormat())
	threshold, enabled := o.HotThreshold()
	require.EqualValues(t, 3, threshold)
	require.True(t, enabled)
	require.Equal(t, "/tmp/out", o.OutputDir())
	require.True(t, o.SaveCompiled())
}

func TestParseOptions_QuotedOutputDir(t *testing.T) {
	o := parseOptions(`use_jit output_dir="/tmp/has space"`)
	require.Equal(t, "/tmp/has space", o.OutputDir())
}

func TestParseOptions_NoHotThreshold(t *testing.T) {
	o := parseOptions("no_hot_threshold")
	_, enabled := o.HotThreshold()
	require.False(t, enabled)
}

func TestParseOptions_CraneliftErrorHandling(t *testing.T) {
	o := parseOptions("cranelift_error_handling=panic")
	require.Equal(t, ir.ErrorHandlingPanic, o.CraneliftErrorHandling())
}

func TestParseOptions_UnrecognizedTokenIgnored(t *testing.T) {
	o := parseOptions("bogus_flag=1 use_jit")
	require.True(t, o.JIT())
}

func TestSplitShellWords(t *testing.T) {
	require.Equal(t, []string{"a", "b=c", "d e"}, splitShellWords(`a b=c "d e"`))
	require.Empty(t, splitShellWords(""))
}
