package jitcore

import (
	"fmt"
	"unsafe"

	"github.com/camljit/camljit/internal/blocks"
	"github.com/camljit/camljit/internal/emit"
	"github.com/camljit/camljit/internal/ir"
)

// Promote attempts to move entryOffset's closure in section sectionID to
// the optimizing tier (spec.md §5 "Hot-tier promotion"): reconstruct its
// basic blocks, lower and compile through internal/ir, and on success
// install the optimized code pointer and status -2 in its metadata entry.
// A failure to build, lower or compile the closure installs status -3 so
// the apply stub's dispatch keeps using baseline code (spec.md §4.G
// "Failure modes"). Under ir.ErrorHandlingPanic, ir.CompileClosure
// re-raises a codegen panic; this method marks the closure -3 and lets the
// panic continue. Under the other policies ir.CompileClosure has already
// converted a recovered panic into an *ir.Error by the time it returns
// here, so this method does not panic.
func (g *GlobalState) Promote(sectionID uint32, entryOffset int32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sec, ok := g.sections[sectionID]
	if !ok {
		return fmt.Errorf("jitcore: unknown section %d", sectionID)
	}
	if sec.promoted[entryOffset] {
		return nil
	}

	entry, ok := sec.closures[entryOffset]
	if !ok {
		return fmt.Errorf("jitcore: unknown closure at offset %d", entryOffset)
	}

	closure, err := blocks.Build(sec.words, entryOffset, entry.Arity)
	if err != nil {
		sec.markOptimizeFailed(entryOffset)
		return nil
	}

	if g.cfg.CraneliftErrorHandling == ir.ErrorHandlingPanic {
		defer func() {
			if r := recover(); r != nil {
				sec.markOptimizeFailed(entryOffset)
				panic(r)
			}
		}()
	}
	res, err := ir.CompileClosure(closure, g.helpers, g.cfg.CraneliftErrorHandling)
	if err != nil {
		sec.markOptimizeFailed(entryOffset)
		return nil
	}

	if len(res.Code) == 0 {
		sec.markOptimizeFailed(entryOffset)
		return nil
	}
	exec, err := sec.arena.AllocateExec(res.Code)
	if err != nil {
		return fmt.Errorf("jitcore: codearena: %w", err)
	}

	meta := sec.result.Metadata[entryOffset]
	meta.Status = emit.StatusOptimized
	meta.CodeAddr = uint64(uintptr(unsafe.Pointer(&exec[0])))
	sec.result.Metadata[entryOffset] = meta
	sec.promoted[entryOffset] = true
	return nil
}

func (s *Section) markOptimizeFailed(entryOffset int32) {
	meta := s.result.Metadata[entryOffset]
	meta.Status = emit.StatusOptimizeFailed
	s.result.Metadata[entryOffset] = meta
	s.promoted[entryOffset] = true
}
