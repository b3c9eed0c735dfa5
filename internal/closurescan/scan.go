// Package closurescan finds every closure entry point reachable from
// Closure/ClosureRec instructions before the baseline emitter runs, so all
// closure labels can be allocated up front and jumps into closures are
// resolvable in a single emission pass (spec.md §4.C).
package closurescan

import (
	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/opcode"
)

// Entry describes one discovered closure entry point.
type Entry struct {
	Offset int32
	Arity  uint32
}

// Scan decodes words and returns every closure entry point referenced by a
// Closure or ClosureRec instruction, keyed by code offset. Arity is 1 unless
// the entry's first opcode is Grab, in which case it is Grab's count + 1.
func Scan(words []int32) (map[int32]Entry, error) {
	parsed, err := decode.Parse(words, 0)
	if err != nil {
		var perr *decode.ParseError
		if e, ok := err.(*decode.ParseError); ok {
			perr = e
			parsed = perr.Partial
		} else {
			return nil, err
		}
	}

	entries := make(map[int32]Entry)
	record := func(offset int32) {
		if _, seen := entries[offset]; seen {
			return
		}
		entries[offset] = Entry{Offset: offset, Arity: arityAt(words, offset)}
	}

	for _, ins := range parsed.Instructions {
		switch ins.Kind {
		case decode.Closure:
			record(ins.Label)
		case decode.ClosureRec:
			for _, l := range ins.Labels {
				record(l)
			}
		}
	}
	return entries, err
}

// arityAt inspects the opcode at offset: Grab(n) means arity n+1, anything
// else means arity 1.
func arityAt(words []int32, offset int32) uint32 {
	if offset < 0 || int(offset) >= len(words) {
		return 1
	}
	op, ok := opcode.FromInt32(words[offset])
	if !ok || op != opcode.Grab {
		return 1
	}
	if int(offset)+1 >= len(words) {
		return 1
	}
	return uint32(words[offset+1]) + 1
}
