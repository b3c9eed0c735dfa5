package trace

import (
	"encoding/json"
	"fmt"
	"io"
)

// Writer emits Events in one trace_format's wire representation.
type Writer interface {
	Write(e Event) error
}

// NewWriter returns the Writer for format, writing to w. Noprint returns a
// Writer whose Write is a no-op, so callers can unconditionally route
// events through it without a nil check.
func NewWriter(format Format, w io.Writer) Writer {
	switch format {
	case FormatJSON:
		return &jsonWriter{w: w}
	case FormatColorful:
		return &lineWriter{w: w, colorful: true}
	case FormatPlain:
		return &lineWriter{w: w}
	case FormatDebug:
		return &debugWriter{w: w}
	case FormatDebugPretty:
		return &debugWriter{w: w, pretty: true}
	default:
		return noopWriter{}
	}
}

type noopWriter struct{}

func (noopWriter) Write(Event) error { return nil }

// jsonEvent mirrors Event with the field names the comparison tool's schema
// expects (spec.md §6).
type jsonEvent struct {
	Location   string  `json:"location"`
	Accu       int64   `json:"accu"`
	Env        int64   `json:"env"`
	ExtraArgs  uint64  `json:"extra_args"`
	SP         int64   `json:"sp"`
	TrapSP     int64   `json:"trap_sp"`
	StackSize  int     `json:"stack_size"`
	TopOfStack []int64 `json:"top_of_stack"`
}

type jsonWriter struct{ w io.Writer }

func (jw *jsonWriter) Write(e Event) error {
	prefix := "!T!"
	if e.Call {
		prefix = "!C!"
	}
	je := jsonEvent{
		Location:   e.Location,
		Accu:       e.Accu,
		Env:        e.Env,
		ExtraArgs:  e.ExtraArgs,
		SP:         e.SP,
		TrapSP:     e.TrapSP,
		StackSize:  e.StackSize,
		TopOfStack: e.TopOfStack[:e.TopOfStackLen],
	}
	b, err := json.Marshal(je)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	_, err = fmt.Fprintf(jw.w, "%s %s\n", prefix, b)
	return err
}

const (
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// lineWriter implements plain and colorful: a single human-readable line
// per event, differing only in ANSI dimming of the prefix (spec.md §4.H:
// "plain/colorful are line-oriented human-readable formats differing only
// in ANSI coloring").
type lineWriter struct {
	w        io.Writer
	colorful bool
}

func (lw *lineWriter) Write(e Event) error {
	kind := "instr"
	if e.Call {
		kind = "call"
	}
	prefix := kind
	if lw.colorful {
		prefix = ansiDim + kind + ansiReset
	}
	_, err := fmt.Fprintf(lw.w, "%s %-24s accu=%d env=%d extra_args=%d sp=%d trap_sp=%d stack=%d top=%v\n",
		prefix, e.Location, e.Accu, e.Env, e.ExtraArgs, e.SP, e.TrapSP, e.StackSize, e.TopOfStack[:e.TopOfStackLen])
	return err
}

// debugWriter implements debug and debug_pretty as Go struct dumps of the
// same event (spec.md §4.H).
type debugWriter struct {
	w      io.Writer
	pretty bool
}

func (dw *debugWriter) Write(e Event) error {
	var err error
	if dw.pretty {
		_, err = fmt.Fprintf(dw.w, "%+v\n", e)
	} else {
		_, err = fmt.Fprintf(dw.w, "%v\n", e)
	}
	return err
}
