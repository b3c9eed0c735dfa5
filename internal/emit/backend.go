package emit

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/camljit/camljit/internal/closurescan"
	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// Result is the baseline emitter's output for one section (spec.md §4.D).
type Result struct {
	Code                []byte
	EntrypointOffset     int64
	FirstInstructionAddr int64
	Metadata             map[int32]Metadata // keyed by bytecode entry offset
	Instructions         []decode.Instruction[int] // populated iff Options.CaptureInstructions
}

// Backend is the single-pass baseline x86-64 translator. One Backend
// compiles one section's worth of code: the shared entrypoint, the apply/
// return/trap/event stubs, and every closure discovered by the
// closure-scanner pre-pass (spec.md §4.C), each with a Metadata record
// returned in Result.Metadata rather than placed in the buffer.
type Backend struct {
	bd      *builder
	opts    Options
	helpers runtimebridge.HelperAddrs
	words   []int32
	ins     []decode.Instruction[int]

	section uint32

	// shared stub anchors, resolved lazily exactly like per-instruction
	// labels (spec.md §4.D "shared stubs").
	applyStub      *obj.Prog
	returnStub     *obj.Prog
	processEvents  *obj.Prog
	restartStub    *obj.Prog
	raiseStub      *obj.Prog

	metaTable map[int32]Metadata
}

// Compile translates one section's decoded instruction sequence (already
// relocated to instruction-index labels via Relocate) into an executable
// buffer. closures is the closure-scanner's pre-pass output, so every
// entry point's label and Metadata record are allocated before any jump
// into it is emitted (spec.md §4.C).
func Compile(section uint32, words []int32, parsed []decode.Instruction[int], offsets map[int32]decode.Span, closures map[int32]closurescan.Entry, helpers runtimebridge.HelperAddrs, opts Options) (*Result, error) {
	bd, err := newBuilder()
	if err != nil {
		return nil, fmt.Errorf("emit: %w", err)
	}
	b := &Backend{
		bd: bd, opts: opts, helpers: helpers, words: words, ins: parsed,
		section: section, metaTable: make(map[int32]Metadata),
	}

	b.applyStub = b.bd.new()
	b.applyStub.As = obj.ANOP
	b.returnStub = b.bd.new()
	b.returnStub.As = obj.ANOP
	b.processEvents = b.bd.new()
	b.processEvents.As = obj.ANOP
	b.restartStub = b.bd.new()
	b.restartStub.As = obj.ANOP
	b.raiseStub = b.bd.new()
	b.raiseStub.As = obj.ANOP

	b.emitEntry()

	// Pre-allocate each closure's entry label before the instruction loop
	// reaches it, so its anchor Prog exists to read .Pc off of once
	// assembly has fixed every instruction's address (spec.md §4.C:
	// metadata precedes any jump into the closure).
	anchors := make(map[int32]*obj.Prog, len(closures))
	for off, entry := range closures {
		idx := 0
		if span, ok := offsets[off]; ok {
			idx = int(span.Start)
		}
		anchors[off] = b.bd.label(idx)
		b.metaTable[off] = Metadata{
			Status:            0,
			Section:           section,
			BytecodeOffset:    uint32(off),
			RequiredExtraArgs: uint64(entry.Arity - 1),
		}
	}

	for i, ins := range b.ins {
		b.bd.anchorAt(i)
		if b.opts.PrintTraces == TraceInstruction {
			b.emitTraceCall(i)
		}
		if err := b.emitInstruction(i, ins); err != nil {
			return nil, err
		}
	}

	b.emitApplyStub()
	b.emitReturnStub()
	b.emitProcessEventsStub()
	b.emitRestartStub()
	b.emitRaiseStub()

	code := b.bd.assemble()

	for off, p := range anchors {
		m := b.metaTable[off]
		m.CodeAddr = uint64(p.Pc)
		b.metaTable[off] = m
	}

	res := &Result{Code: code, Metadata: b.metaTable}
	if opts.CaptureInstructions {
		res.Instructions = b.ins
	}
	return res, nil
}

// emitEntry emits the entrypoint(initial_state_ptr) prologue (spec.md
// §4.D "Entry/exit prologue"): save the host's VM-register values and the
// caller's frame pointer, push the initial-state pointer, seed the four VM
// registers plus the domain-state base pointer, and snapshot trap_sp so
// Raise can later tell whether this invocation installed a local handler.
func (b *Backend) emitEntry() {
	b.bd.pushReg(x86.REG_BP) // caller's frame pointer; restored in emitExit
	for _, r := range vmRegs {
		b.bd.pushReg(r)
	}
	b.bd.pushReg(x86.REG_DI) // initial_state_ptr, passed in RDI as arg0

	b.bd.movConstReg(1, RegAccu) // TagInt(0)
	b.bd.movMemReg(x86.REG_DI, 0, RegEnv) // *initial_state.atom0 (placeholder load)
	b.bd.movConstReg(0, RegExtraArgs)
	b.bd.movMemReg(x86.REG_DI, 8, RegSP) // *initial_state.initial_sp
	b.bd.movMemReg(x86.REG_DI, 16, RegDomainState) // domain-state base pointer (spec.md §4.I)

	// Entry trap_sp snapshot (spec.md §4.D "Raise"): pushed onto the real
	// machine stack rather than a domain-state field, since it's private to
	// this one invocation. No other code pushes/pops the real machine
	// stack outside matched windows inside emitClosureAlloc, so this slot
	// sits at a fixed [machine RSP+0] at every instruction boundary.
	b.bd.movMemReg(RegDomainState, int64(runtimebridge.OffsetTrapSP), x86.REG_AX)
	b.bd.pushReg(x86.REG_AX)
}

// emitExit emits the Stop epilogue: notify the host, move accu into the
// return-value register, unwind the prologue, and return.
func (b *Backend) emitExit() {
	b.bd.movRegReg(RegAccu, x86.REG_AX)
	b.bd.binOpConstReg(x86.AADDQ, 8, x86.REG_SP) // discard the entry trap_sp snapshot
	b.bd.popReg(x86.REG_DI)
	for i := len(vmRegs) - 1; i >= 0; i-- {
		b.bd.popReg(vmRegs[i])
	}
	b.bd.popReg(x86.REG_BP)
	b.bd.ret()
}

func (b *Backend) emitTraceCall(idx int) {
	if b.opts.TraceHelperAddr == 0 {
		return // no trace helper resolved; skip rather than emit a dangling call
	}
	// The trace helper conforms to the C ABI and the VM registers are
	// callee-saved there, so no register save is needed around the call
	// (spec.md §4.D).
	b.bd.movConstReg(int64(idx), x86.REG_DI)
	b.bd.callAddr(b.opts.TraceHelperAddr)
}
