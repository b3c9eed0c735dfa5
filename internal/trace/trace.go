// Package trace formats per-instruction and per-call execution trace events
// (spec.md §6 "Trace output format") and tallies per-opcode execution
// counts, mirroring the original implementation's trace.rs/
// instruction_trace.rs schema closely enough that existing trace-comparison
// tooling outside this module keeps working unchanged.
package trace

// Format selects one of the six recognized trace_format values (spec.md
// §6). Noprint disables line emission; the per-opcode Counters do not
// depend on the format.
type Format uint8

const (
	FormatColorful Format = iota
	FormatPlain
	FormatJSON
	FormatDebug
	FormatDebugPretty
	FormatNoprint
)

// ParseFormat maps a JIT_OPTIONS trace_format value to a Format.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "colorful":
		return FormatColorful, true
	case "plain":
		return FormatPlain, true
	case "json":
		return FormatJSON, true
	case "debug":
		return FormatDebug, true
	case "debug_pretty":
		return FormatDebugPretty, true
	case "noprint":
		return FormatNoprint, true
	default:
		return 0, false
	}
}

// Event is one instruction- or call-level trace sample (spec.md §6 field
// set: location, accu, env, extra_args, sp, trap_sp, stack_size,
// top_of_stack[<=5]).
type Event struct {
	Call bool // true for a call-site event (!C!), false for per-instruction (!T!)

	Location  string
	Accu      int64
	Env       int64
	ExtraArgs uint64
	SP        int64
	TrapSP    int64
	StackSize int
	TopOfStack [5]int64
	TopOfStackLen int
}
