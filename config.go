// Package camljit is the embeddable JIT core for the Zinc/ZAM2 bytecode
// interpreter: given a loaded bytecode section it reconstructs basic
// blocks, emits baseline native code (and optionally an optimizing tier),
// and exposes the small set of entry points the host runtime calls into
// (on_bytecode_loaded, interpret_bytecode, on_bytecode_released).
package camljit

import (
	"github.com/camljit/camljit/internal/ir"
	"github.com/camljit/camljit/internal/trace"
)

// defaultHotThreshold is the number of calls an unoptimized closure takes
// before promotion is attempted (spec.md §6 hot_threshold default).
const defaultHotThreshold = 10

// Options controls the core's behavior, mirroring the recognized
// JIT_OPTIONS keys (spec.md §6). It is immutable: every With* method
// returns a modified copy, the same clone-on-write pattern the teacher's
// RuntimeConfig used for its builder methods.
type Options struct {
	useJIT                 bool
	useCompiler            bool
	trace                  bool
	callTrace              bool
	traceFormat            trace.Format
	outputDir              string
	saveCompiled           bool
	saveInstructionCounts  bool
	hotThreshold           uint64
	noHotThreshold         bool
	craneliftErrorHandling ir.ErrorHandling
}

// defaultOptions helps avoid copy/pasting the wrong defaults.
var defaultOptions = &Options{
	traceFormat:            trace.FormatNoprint,
	hotThreshold:           defaultHotThreshold,
	craneliftErrorHandling: ir.ErrorHandlingLog,
}

// NewOptions returns the default Options: JIT disabled, tracing off, hot
// threshold 10.
func NewOptions() *Options {
	return defaultOptions.clone()
}

func (o *Options) clone() *Options {
	ret := *o
	return &ret
}

// WithJIT enables dispatching loaded bytecode to compiled code rather than
// the legacy interpreter (spec.md §6 use_jit).
func (o *Options) WithJIT(enabled bool) *Options {
	ret := o.clone()
	ret.useJIT = enabled
	return ret
}

// WithCompiler forces compilation on load even without use_jit, which
// tracing needs to capture baseline-tier behavior (spec.md §6 use_compiler
// "implied by use_jit or tracing").
func (o *Options) WithCompiler(enabled bool) *Options {
	ret := o.clone()
	ret.useCompiler = enabled
	return ret
}

// WithTrace enables per-instruction tracing (spec.md §6 trace). Neither
// this method nor OptionsFromEnv rejects enabling it together with call
// tracing; when both are set, the coordinator emits instruction tracing
// only.
func (o *Options) WithTrace(enabled bool) *Options {
	ret := o.clone()
	ret.trace = enabled
	if enabled {
		ret.useCompiler = true
	}
	return ret
}

// WithCallTrace enables per-call tracing (spec.md §6 call_trace).
func (o *Options) WithCallTrace(enabled bool) *Options {
	ret := o.clone()
	ret.callTrace = enabled
	if enabled {
		ret.useCompiler = true
	}
	return ret
}

// WithTraceFormat selects the trace event formatter (spec.md §6
// trace_format).
func (o *Options) WithTraceFormat(f trace.Format) *Options {
	ret := o.clone()
	ret.traceFormat = f
	return ret
}

// WithOutputDir sets the directory save_compiled and
// save_instruction_counts write artifacts under (spec.md §6 output_dir).
func (o *Options) WithOutputDir(dir string) *Options {
	ret := o.clone()
	ret.outputDir = dir
	return ret
}

// WithSaveCompiled enables persisting each section's compiled code under
// OutputDir, one file per section (spec.md §6 save_compiled). No
// disassembly listing is written.
func (o *Options) WithSaveCompiled(enabled bool) *Options {
	ret := o.clone()
	ret.saveCompiled = enabled
	return ret
}

// WithSaveInstructionCounts enables dumping per-opcode execution counts to
// OutputDir on shutdown (spec.md §6 save_instruction_counts).
func (o *Options) WithSaveInstructionCounts(enabled bool) *Options {
	ret := o.clone()
	ret.saveInstructionCounts = enabled
	return ret
}

// WithHotThreshold sets the call count at which an unoptimized closure is
// promoted (spec.md §6 hot_threshold).
func (o *Options) WithHotThreshold(n uint64) *Options {
	ret := o.clone()
	ret.hotThreshold = n
	ret.noHotThreshold = false
	return ret
}

// WithNoHotThreshold disables promotion entirely (spec.md §6
// no_hot_threshold, mutually exclusive with hot_threshold).
func (o *Options) WithNoHotThreshold() *Options {
	ret := o.clone()
	ret.noHotThreshold = true
	return ret
}

// WithCraneliftErrorHandling sets the optimizing tier's panic-boundary
// policy (spec.md §6 cranelift_error_handling).
func (o *Options) WithCraneliftErrorHandling(p ir.ErrorHandling) *Options {
	ret := o.clone()
	ret.craneliftErrorHandling = p
	return ret
}

// HotThreshold returns the configured promotion threshold and whether
// promotion is enabled at all.
func (o *Options) HotThreshold() (threshold uint64, enabled bool) {
	return o.hotThreshold, !o.noHotThreshold
}

func (o *Options) JIT() bool                                { return o.useJIT }
func (o *Options) Compiler() bool                           { return o.useCompiler || o.trace || o.callTrace }
func (o *Options) Trace() bool                              { return o.trace }
func (o *Options) CallTrace() bool                          { return o.callTrace }
func (o *Options) TraceFormat() trace.Format                { return o.traceFormat }
func (o *Options) OutputDir() string                        { return o.outputDir }
func (o *Options) SaveCompiled() bool                       { return o.saveCompiled }
func (o *Options) SaveInstructionCounts() bool               { return o.saveInstructionCounts }
func (o *Options) CraneliftErrorHandling() ir.ErrorHandling { return o.craneliftErrorHandling }
