package jitcore

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/camljit/camljit/internal/artifacts"
	"github.com/camljit/camljit/internal/emit"
	"github.com/camljit/camljit/internal/ir"
	"github.com/camljit/camljit/internal/opcode"
	"github.com/camljit/camljit/internal/runtimebridge"
	"github.com/camljit/camljit/internal/trace"
)

// Config carries the coordinator's configuration: Options is deliberately a
// structural subset of the root package's *camljit.Options (rather than an
// import of it) to avoid a dependency cycle, since the root package's
// on_bytecode_loaded wrapper is the thing that constructs a GlobalState.
type Config struct {
	UseJIT                 bool
	Trace                  bool
	CallTrace              bool
	TraceFormat            trace.Format
	OutputDir              string
	SaveCompiled           bool
	SaveInstructionCounts  bool
	HotThreshold           uint64
	HotThresholdEnabled    bool
	CraneliftErrorHandling ir.ErrorHandling
}

// GlobalState is the single process-wide coordinator (spec.md §4.I,
// §5 "Global mutex"). Every exported method other than OpcodeCounts,
// which reads the atomic counters directly, acquires mu and releases it
// before returning, never while control could recurse back into the host
// (e.g. via a host-supplied helper).
type GlobalState struct {
	mu sync.Mutex

	cfg     Config
	helpers runtimebridge.HelperAddrs

	sections    map[uint32]*Section
	nextSection uint32

	counters  trace.Counters
	artifacts *artifacts.Store
}

// New implements the on_startup host entry point (spec.md §6): initialize
// globals ready to accept on_bytecode_loaded calls. It installs no panic
// hook, and no panic is routed to caml_fatal_error: optimizing-tier panics
// are handled per call by ir.CompileClosure's ir.ErrorHandling boundary
// (§7), since Go's recover() is call-stack scoped rather than
// process-global.
func New(cfg Config, helpers runtimebridge.HelperAddrs) *GlobalState {
	g := &GlobalState{
		cfg:      cfg,
		helpers:  helpers,
		sections: make(map[uint32]*Section),
	}
	if cfg.OutputDir != "" {
		g.artifacts = artifacts.NewStore(cfg.OutputDir)
	}
	return g
}

// OnBytecodeLoaded implements on_bytecode_loaded(code_ptr, word_count) ->
// exec_ptr (spec.md §6). codePtr/wordCount cross the C ABI boundary the
// host runtime owns; unsafe.Slice is the standard way to view that memory
// as Go values without copying it (see DESIGN.md).
func (g *GlobalState) OnBytecodeLoaded(codePtr uintptr, wordCount int) (execPtr uintptr, err error) {
	words := unsafe.Slice((*int32)(unsafe.Pointer(codePtr)), wordCount)
	return g.LoadSection(words)
}

// LoadSection is OnBytecodeLoaded's Go-native entry point: same contract,
// but takes an already-materialized word slice rather than a raw pointer,
// for callers (including this module's own tests) that aren't crossing a
// real C ABI boundary.
func (g *GlobalState) LoadSection(words []int32) (execPtr uintptr, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextSection
	g.nextSection++

	sec := newSection(id, words)
	if err := sec.compile(g.helpers, g.emitOptions()); err != nil {
		return 0, err
	}
	g.sections[id] = sec

	if g.artifacts != nil && g.cfg.SaveCompiled {
		key := artifacts.Key{Section: id}
		if err := g.artifacts.SaveCode(key, sec.code); err != nil {
			return 0, fmt.Errorf("jitcore: %w", err)
		}
	}

	if len(sec.code) == 0 {
		return 0, nil
	}
	return uintptr(unsafe.Pointer(&sec.code[0])), nil
}

// InterpretBytecode implements interpret_bytecode(code_ptr, word_count) ->
// value (spec.md §6) at the level this module is responsible for: deciding
// whether compiled code should run at all. The host runtime owns actually
// transferring control to execPtr (through its own C-ABI trampoline) and
// to the legacy interpreter when execPtr is zero or UseJIT is false; this
// module has no portable way to jump into raw machine code itself.
func (g *GlobalState) InterpretBytecode(sectionID uint32) (execPtr uintptr, useCompiled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cfg.UseJIT {
		return 0, false
	}
	sec, ok := g.sections[sectionID]
	if !ok || len(sec.code) == 0 {
		return 0, false
	}
	return uintptr(unsafe.Pointer(&sec.code[0])), true
}

// OnBytecodeReleased implements on_bytecode_released(code_ptr, word_count)
// (spec.md §6): destroys the section, unmapping its executable memory.
func (g *GlobalState) OnBytecodeReleased(sectionID uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sec, ok := g.sections[sectionID]
	if !ok {
		return nil
	}
	delete(g.sections, sectionID)
	return sec.Close()
}

// OnShutdown implements on_shutdown() (spec.md §6): flushes statistics and
// releases every remaining section.
func (g *GlobalState) OnShutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var firstErr error
	if g.cfg.SaveInstructionCounts && g.cfg.OutputDir != "" {
		if err := g.counters.WriteInstructionCounts(g.cfg.OutputDir); err != nil {
			firstErr = err
		}
	}
	for id, sec := range g.sections {
		if err := sec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.sections, id)
	}
	return firstErr
}

// OpcodeCounts returns a snapshot of per-opcode execution counts
// (Supplemented features #1).
func (g *GlobalState) OpcodeCounts() [opcode.NumOpcodes]uint64 {
	return g.counters.Snapshot()
}

// LastSectionID returns the id LoadSection most recently assigned. Callers
// that need to associate a section with some identity of their own (the
// root package keys sections by the host's code_ptr) call this
// immediately after a successful LoadSection.
func (g *GlobalState) LastSectionID() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextSection - 1
}

func (g *GlobalState) emitOptions() emit.Options {
	opts := emit.Options{CaptureInstructions: g.cfg.SaveCompiled}
	switch {
	case g.cfg.Trace:
		opts.PrintTraces = emit.TraceInstruction
	case g.cfg.CallTrace:
		opts.PrintTraces = emit.TraceCall
	}
	if g.cfg.HotThresholdEnabled {
		t := g.cfg.HotThreshold
		opts.HotThreshold = &t
	}
	return opts
}
