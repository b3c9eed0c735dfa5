// Package codearena owns the executable memory backing each compiled
// Section (spec.md §5 "Executable memory"): pages mapped read/write during
// emission and used read/execute once published, allocated in coarse
// mmap'd blocks and handed out as a bump allocator so a section's baseline
// code and any later optimized-tier re-emission for the same section share
// one set of mappings.
//
// Grounded on go-interpreter/wagon's MMapAllocator (contract reconstructed
// from exec/internal/compile/allocator_test.go, since the pack's retrieval
// only kept that package's test file): a bump allocator over fixed-size
// mmap blocks, growing to fit an allocation larger than one block.
package codearena

import (
	"fmt"

	mmap "github.com/edsrzf/mmap-go"
)

const (
	minAllocSize        = 32 * 1024
	allocationAlignment = 16
)

// mmap-go's prot parameter is a single bitmask; map pages read/write/exec
// up front since the library exposes no mprotect to flip permissions after
// the fact (see DESIGN.md). This is the one place spec.md's "flipped to
// read/execute before first use" is approximated rather than implemented
// literally.
const execProt = mmap.RDWR | mmap.EXEC

type block struct {
	mem       mmap.MMap
	consumed  uint32
	remaining uint32
}

// Allocator hands out executable memory in a bump fashion, growing by
// mmap'd blocks of minAllocSize (or exactly big enough for an
// over-sized single allocation).
type Allocator struct {
	blocks []*block
	last   *block
}

// AllocateExec copies code into fresh executable memory and returns a
// slice aliasing that memory (not a copy) so callers can take its address
// for the section's entrypoint/metadata pointers.
func (a *Allocator) AllocateExec(code []byte) ([]byte, error) {
	need := uint32(len(code))
	aligned := (need + allocationAlignment - 1) &^ (allocationAlignment - 1)

	if a.last == nil || a.last.remaining < aligned {
		size := minAllocSize
		if int(aligned) > size {
			size = int(aligned)
		}
		b, err := newBlock(size)
		if err != nil {
			return nil, fmt.Errorf("codearena: %w", err)
		}
		a.blocks = append(a.blocks, b)
		a.last = b
	}

	b := a.last
	dst := b.mem[b.consumed : b.consumed+need]
	copy(dst, code)
	b.consumed += aligned
	b.remaining -= aligned
	return dst, nil
}

func newBlock(size int) (*block, error) {
	mem, err := mmap.MapRegion(nil, size, execProt, mmap.ANON, 0)
	if err != nil {
		return nil, err
	}
	return &block{mem: mem, remaining: uint32(size)}, nil
}

// Close unmaps every block. Callers must not dereference any previously
// returned slice afterward.
func (a *Allocator) Close() error {
	var firstErr error
	for _, b := range a.blocks {
		if err := b.mem.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.blocks = nil
	a.last = nil
	return firstErr
}
