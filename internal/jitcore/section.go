// Package jitcore is the process-wide coordinator (spec.md §4.I): it owns
// the single GlobalState, translates the host's on_bytecode_loaded/
// interpret_bytecode/on_bytecode_released/on_shutdown contract (spec.md §6)
// into calls against internal/decode, internal/closurescan,
// internal/blocks, internal/emit, internal/ir and internal/codearena, and
// drives hot-closure promotion under its mutex.
//
// Grounded on tetratelabs/wazero's internal/engine/compiler engine struct:
// a single process-held struct guarding compiled-code registries behind a
// sync.Mutex, released before any call that might recurse into a host
// callback (here: before the host ever jumps into compiled code).
package jitcore

import (
	"fmt"

	"github.com/camljit/camljit/internal/closurescan"
	"github.com/camljit/camljit/internal/codearena"
	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/emit"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// Section is one loaded bytecode section: its own executable arena,
// closure metadata table, and the baseline emitter's output. Sections are
// destroyed independently on_bytecode_released.
type Section struct {
	id uint32

	words    []int32
	closures map[int32]closurescan.Entry

	arena   codearena.Allocator
	code    []byte // aliases memory owned by arena
	result  *emit.Result

	// promoted tracks which closure entry offsets have had their metadata
	// status flipped to StatusOptimized or StatusOptimizeFailed, so a
	// repeat hot-threshold crossing doesn't re-attempt promotion.
	promoted map[int32]bool
}

func newSection(id uint32, words []int32) *Section {
	return &Section{id: id, words: words, promoted: make(map[int32]bool)}
}

// compile runs the full pre-pass + baseline-emission pipeline for the
// section's bytecode (spec.md §4.B–§4.D).
func (s *Section) compile(helpers runtimebridge.HelperAddrs, opts emit.Options) error {
	closures, err := closurescan.Scan(s.words)
	if err != nil {
		return fmt.Errorf("jitcore: closure scan: %w", err)
	}
	s.closures = closures

	parsed, err := decode.Parse(s.words, len(s.words))
	if err != nil {
		return fmt.Errorf("jitcore: decode: %w", err)
	}

	relocated := emit.Relocate(parsed)

	res, err := emit.Compile(s.id, s.words, relocated, parsed.OffsetMap, closures, helpers, opts)
	if err != nil {
		return fmt.Errorf("jitcore: emit: %w", err)
	}
	s.result = res

	exec, err := s.arena.AllocateExec(res.Code)
	if err != nil {
		return fmt.Errorf("jitcore: codearena: %w", err)
	}
	s.code = exec
	return nil
}

// Close releases the section's executable memory.
func (s *Section) Close() error {
	return s.arena.Close()
}
