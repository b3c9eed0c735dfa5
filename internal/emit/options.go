package emit

// TraceMode selects what, if anything, the baseline emitter calls out to
// the trace helper for (spec.md §4.D compiler options; §6 trace_format
// governs how the trace helper formats what it receives, not whether it
// is called).
type TraceMode uint8

const (
	TraceNone TraceMode = iota
	TraceInstruction
	TraceCall
)

// Options configures one Compile call (spec.md §4.D "compiler options
// {print_traces, hot_closure_threshold}").
type Options struct {
	PrintTraces TraceMode

	// HotThreshold, when non-nil, enables hot-closure promotion: the
	// shared apply stub increments the closure's metadata status on every
	// call and dispatches to the optimizing backend once it crosses this
	// count (spec.md §4.D, §5 "Hot-tier promotion").
	HotThreshold *uint64

	// CaptureInstructions, when set, retains the decoded instruction
	// vector in the Result for trace/disassembly consumers (spec.md §4.D
	// output: "optional captured instruction vector").
	CaptureInstructions bool

	// TraceHelperAddr is the address of the trace-event writer
	// (internal/trace, §4.H) the emitted code calls out to before every
	// instruction when PrintTraces == TraceInstruction; TraceCall emits no
	// trace call. The helper conforms to the host C ABI, so no VM register
	// needs saving around the call.
	TraceHelperAddr uintptr
}
