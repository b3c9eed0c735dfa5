package camljit

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/camljit/camljit/internal/jitcore"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// JIT is the handle the host runtime drives through the on_startup /
// on_bytecode_loaded / interpret_bytecode / on_bytecode_released /
// on_shutdown contract (spec.md §6). It layers C-ABI pointer identity on
// top of internal/jitcore's section-id-keyed GlobalState: the host only
// ever hands back the code_ptr it was given at load time, never the
// section id jitcore assigns internally.
type JIT struct {
	state *jitcore.GlobalState

	mu       sync.Mutex
	sections map[uintptr]uint32 // code_ptr -> jitcore section id
}

// Start implements on_startup(): initializes globals against the host's
// resolved helper addresses and the options in effect for this process.
// opts may be nil, in which case NewOptions()'s defaults apply.
func Start(opts *Options, helpers runtimebridge.HelperAddrs) *JIT {
	if opts == nil {
		opts = NewOptions()
	}
	return &JIT{
		state:    jitcore.New(opts.toCoordinatorConfig(), helpers),
		sections: make(map[uintptr]uint32),
	}
}

// OnBytecodeLoaded implements on_bytecode_loaded(code_ptr, word_count) ->
// exec_ptr: codePtr is the host's original bytecode buffer address, used
// only as the identity later calls key off of, never dereferenced by this
// method itself beyond the unsafe.Slice view handed to the coordinator.
func (j *JIT) OnBytecodeLoaded(codePtr uintptr, wordCount int) (execPtr uintptr, err error) {
	if !JITSupported {
		return 0, nil // no section is registered, so the legacy interpreter runs it
	}
	words := unsafe.Slice((*int32)(unsafe.Pointer(codePtr)), wordCount)

	execPtr, err = j.state.LoadSection(words)
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	j.sections[codePtr] = j.state.LastSectionID()
	j.mu.Unlock()
	return execPtr, nil
}

// InterpretBytecode implements interpret_bytecode(code_ptr, word_count) ->
// value at the level this module owns: whether to hand the host execPtr
// for compiled code, or defer to the legacy interpreter. wordCount is
// accepted to match the host contract but unused, since section identity
// comes entirely from codePtr (spec.md §6).
func (j *JIT) InterpretBytecode(codePtr uintptr, wordCount int) (execPtr uintptr, useCompiled bool) {
	j.mu.Lock()
	id, ok := j.sections[codePtr]
	j.mu.Unlock()
	if !ok {
		return 0, false
	}
	return j.state.InterpretBytecode(id)
}

// OnBytecodeReleased implements on_bytecode_released(code_ptr, word_count):
// destroys the section the matching on_bytecode_loaded call created.
func (j *JIT) OnBytecodeReleased(codePtr uintptr, wordCount int) error {
	j.mu.Lock()
	id, ok := j.sections[codePtr]
	if ok {
		delete(j.sections, codePtr)
	}
	j.mu.Unlock()
	if !ok {
		return nil
	}
	return j.state.OnBytecodeReleased(id)
}

// OnShutdown implements on_shutdown(): flushes statistics and releases
// every remaining section.
func (j *JIT) OnShutdown() error {
	j.mu.Lock()
	j.sections = make(map[uintptr]uint32)
	j.mu.Unlock()
	return j.state.OnShutdown()
}

// PromoteClosure is the Go-native counterpart of the apply stub's
// PromoteClosure helper call (runtimebridge.HelperAddrs.PromoteClosure): a
// host trampoline resolves the triggering closure's (section,
// bytecode_offset) from its metadata pointer and calls this to run the
// optimizing tier under the global mutex (spec.md §5 "Hot-tier
// promotion"). Exposed as a method rather than invoked automatically,
// since nothing in pure Go can itself be the target of a call emitted
// into machine code; see DESIGN.md.
func (j *JIT) PromoteClosure(codePtr uintptr, bytecodeOffset int32) error {
	j.mu.Lock()
	id, ok := j.sections[codePtr]
	j.mu.Unlock()
	if !ok {
		return fmt.Errorf("camljit: unknown section for code_ptr %#x", codePtr)
	}
	return j.state.Promote(id, bytecodeOffset)
}

func (o *Options) toCoordinatorConfig() jitcore.Config {
	threshold, enabled := o.HotThreshold()
	return jitcore.Config{
		UseJIT:                 o.JIT(),
		Trace:                  o.Trace(),
		CallTrace:              o.CallTrace(),
		TraceFormat:            o.TraceFormat(),
		OutputDir:              o.OutputDir(),
		SaveCompiled:           o.SaveCompiled(),
		SaveInstructionCounts:  o.SaveInstructionCounts(),
		HotThreshold:           threshold,
		HotThresholdEnabled:    enabled,
		CraneliftErrorHandling: o.CraneliftErrorHandling(),
	}
}
