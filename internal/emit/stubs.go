package emit

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/camljit/camljit/internal/runtimebridge"
)

// emitApplyStub emits the shared `apply` stub every Apply*/ApplyTerm
// dispatches through (spec.md §4.D): move accu into env, check for stack
// overflow, inspect the target closure's metadata, and either restart,
// build a partial application, optimize-and-dispatch, or jump straight to
// the closure's code.
func (b *Backend) emitApplyStub() {
	b.bd.add(b.applyStub)

	// Closure layout: field 0 = code addr, field 1 = metadata pointer.
	b.bd.movMemReg(RegEnv, 8, RegScratch1) // metadata pointer
	b.bd.movMemReg(RegScratch1, 0, RegScratch0) // status

	b.bd.cmpRegConst(RegScratch0, StatusRestart)
	b.bd.jumpToProg(x86.AJEQ, b.restartStub)

	if b.opts.HotThreshold != nil && *b.opts.HotThreshold > 0 {
		notOptimized := b.bd.new()
		notOptimized.As = obj.ANOP
		p := b.bd.new()
		p.As = x86.AJLT // status < 0 means already-optimized(-2) or failed(-3); skip the bump
		p.To.Type = obj.TYPE_BRANCH
		p.To.SetTarget(notOptimized)
		b.bd.cmpRegConst(RegScratch0, 0)
		b.bd.add(p)
		b.bd.binOpConstReg(x86.AADDQ, 1, RegScratch0)
		b.bd.movRegMem(RegScratch0, RegScratch1, 0)
		b.bd.cmpRegConst(RegScratch0, int64(*b.opts.HotThreshold))
		skipPromote := b.bd.new()
		skipPromote.As = obj.ANOP
		p2 := b.bd.new()
		p2.As = x86.AJLT
		p2.To.Type = obj.TYPE_BRANCH
		p2.To.SetTarget(skipPromote)
		b.bd.add(p2)
		// Promotion itself runs on the host thread under the global
		// mutex (spec.md §5 "Hot-tier promotion"); RegScratch1 still
		// holds the triggering closure's metadata pointer, which the
		// trampoline uses to recover (section, bytecode_offset) without
		// this shared stub needing to know either at emission time.
		if b.helpers.PromoteClosure != 0 {
			b.bd.movRegReg(RegScratch1, x86.REG_DI)
			b.bd.callAddr(b.helpers.PromoteClosure)
		}
		b.bd.add(skipPromote)
		b.bd.add(notOptimized)
	}

	// Compare extra_args against the closure's required_extra_args (field
	// order per emit.Metadata: status@0, code_addr@8, section@16,
	// bytecode_offset@20, required_extra_args@24) to decide between a full
	// dispatch and a re-grab partial application; the partial-application
	// path is built by the same BuildPartialClosure helper Grab uses,
	// reached via restartStub's argument-frame reconstruction.
	b.bd.movMemReg(RegScratch1, 24, RegScratch0) // required_extra_args
	p := b.bd.new()
	p.As = x86.ACMPQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = RegScratch0
	p.To.Type = obj.TYPE_REG
	p.To.Reg = RegExtraArgs
	b.bd.add(p)
	b.bd.jumpToProg(x86.AJGT, b.restartStub)

	b.bd.binOpRegReg(x86.ASUBQ, RegScratch0, RegExtraArgs) // extra_args -= required_extra_args
	b.bd.movMemReg(RegEnv, 0, RegScratch0) // closure's code address
	jmp := b.bd.new()
	jmp.As = obj.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = RegScratch0
	b.bd.add(jmp)
}

// emitReturnStub implements Return(n)'s non-terminal half: if extra_args
// is zero, pop the return frame and jump to the saved return address;
// otherwise decrement extra_args and tail-dispatch through accu's closure
// (over-application).
func (b *Backend) emitReturnStub() {
	b.bd.add(b.returnStub)
	b.bd.cmpRegConst(RegExtraArgs, 0)
	overApplied := b.bd.new()
	overApplied.As = obj.ANOP
	p := b.bd.new()
	p.As = x86.AJNE
	p.To.Type = obj.TYPE_BRANCH
	p.To.SetTarget(overApplied)
	b.bd.add(p)

	b.bd.movMemReg(RegSP, 16, RegScratch0) // saved extra_args
	b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0) // untag
	b.bd.movMemReg(RegSP, 8, RegEnv)
	b.bd.movMemReg(RegSP, 0, RegScratch1) // return address
	b.bd.binOpConstReg(x86.AADDQ, 24, RegSP)
	b.bd.movRegReg(RegScratch0, RegExtraArgs)
	jmp := b.bd.new()
	jmp.As = obj.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = RegScratch1
	b.bd.add(jmp)

	b.bd.add(overApplied)
	b.bd.binOpConstReg(x86.ASUBQ, 1, RegExtraArgs)
	b.bd.movRegReg(RegAccu, RegEnv)
	b.jumpToStub(b.applyStub)
}

// emitProcessEventsStub saves the VM state as a 6-slot event frame, calls
// the host's pending-action handler, then restores from the frame
// (spec.md §4.D).
func (b *Backend) emitProcessEventsStub() {
	b.bd.add(b.processEvents)
	b.bd.binOpConstReg(x86.ASUBQ, 48, RegSP)
	b.bd.movRegMem(RegAccu, RegSP, 0)
	b.bd.movRegMem(RegEnv, RegSP, 8)
	b.bd.movRegMem(RegExtraArgs, RegSP, 16)
	if b.helpers.ProcessPendingActions != 0 {
		b.bd.callAddr(b.helpers.ProcessPendingActions)
	}
	b.bd.movMemReg(RegSP, 0, RegAccu)
	b.bd.movMemReg(RegSP, 8, RegEnv)
	b.bd.movMemReg(RegSP, 16, RegExtraArgs)
	b.bd.binOpConstReg(x86.AADDQ, 48, RegSP)
	ret := b.bd.new()
	ret.As = obj.ARET
	b.bd.add(ret)
}

// emitRestartStub rebuilds a partial application's original argument
// frame (spec.md §4.D "re-grab"): RegEnv holds the partial closure Grab's
// BuildPartialClosure call built, laid out as {resume_code_addr@0,
// metadata_ptr@8, tagged_captured_count@16, saved_env@24,
// saved_args[count]@32..}. Pushes the saved args back onto the VM stack
// in their original order, restores env and extra_args, and jumps to the
// resume address — reached both by Restart's direct dispatch and the
// apply stub's status==StatusRestart branch.
func (b *Backend) emitRestartStub() {
	b.bd.add(b.restartStub)

	b.bd.movMemReg(RegEnv, 16, RegScratch0)       // tagged captured count
	b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0) // raw count
	b.bd.movRegReg(RegScratch0, RegScratch1)
	b.bd.binOpConstReg(x86.ASHLQ, 3, RegScratch1) // bytes = count*8
	b.bd.binOpRegReg(x86.ASUBQ, RegScratch1, RegSP) // make room for the saved args

	// Copy the count saved-arg words from the closure back onto the VM
	// stack, preserving their relative order (a straight forward copy).
	b.bd.movRegReg(RegSP, RegScratch1) // dst cursor
	b.bd.movRegReg(RegEnv, RegScratch2)
	b.bd.binOpConstReg(x86.AADDQ, 32, RegScratch2) // src cursor

	loop := b.bd.new()
	loop.As = obj.ANOP
	done := b.bd.new()
	done.As = obj.ANOP
	b.bd.add(loop)
	b.bd.cmpRegConst(RegScratch0, 0)
	b.bd.jumpToProg(x86.AJEQ, done)
	b.bd.movMemReg(RegScratch2, 0, x86.REG_R8)
	b.bd.movRegMem(x86.REG_R8, RegScratch1, 0)
	b.bd.binOpConstReg(x86.AADDQ, 8, RegScratch1)
	b.bd.binOpConstReg(x86.AADDQ, 8, RegScratch2)
	b.bd.binOpConstReg(x86.ASUBQ, 1, RegScratch0)
	b.bd.jumpToProg(obj.AJMP, loop)
	b.bd.add(done)

	// extra_args += captured count (reload: the loop above consumed
	// RegScratch0).
	b.bd.movMemReg(RegEnv, 16, RegScratch0)
	b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0)
	b.bd.binOpRegReg(x86.AADDQ, RegScratch0, RegExtraArgs)

	// Read the resume address and saved env out of the closure before
	// RegEnv itself is overwritten, then jump to the resume point.
	b.bd.movMemReg(RegEnv, 0, RegScratch0)  // resume code_addr
	b.bd.movMemReg(RegEnv, 24, RegScratch1) // saved original env
	b.bd.movRegReg(RegScratch1, RegEnv)
	jmp := b.bd.new()
	jmp.As = obj.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = RegScratch0
	b.bd.add(jmp)
}

// emitRaiseStub implements Raise (spec.md §4.D): if trap_sp has moved
// since this invocation's entry, a PushTrap installed a handler reachable
// by a direct jump within this same invocation (every OCaml-level call
// during one entrypoint invocation is a jump, never a machine CALL, so any
// live trap frame was pushed by this invocation); otherwise there is no
// local handler and the host's caml_raise must unwind further up.
func (b *Backend) emitRaiseStub() {
	b.bd.add(b.raiseStub)

	b.bd.movMemReg(RegDomainState, int64(runtimebridge.OffsetTrapSP), RegScratch0)
	b.bd.movMemReg(x86.REG_SP, 0, RegScratch1) // entry trap_sp snapshot (emitEntry)
	b.bd.cmpRegReg(RegScratch0, RegScratch1)
	noLocalHandler := b.bd.new()
	noLocalHandler.As = obj.ANOP
	b.bd.jumpToProg(x86.AJEQ, noLocalHandler)

	// RegScratch0 is the trap frame's VM-stack address:
	// {prev_trap_sp@0, env@8, Val_long(extra_args)@16, handler_pc@24},
	// matching emitPushTrap.
	b.bd.movMemReg(RegScratch0, 0, RegScratch1)
	b.bd.movRegMem(RegScratch1, RegDomainState, int64(runtimebridge.OffsetTrapSP))
	b.bd.movMemReg(RegScratch0, 8, RegEnv)
	b.bd.movMemReg(RegScratch0, 16, RegExtraArgs)
	b.bd.binOpConstReg(x86.ASARQ, 1, RegExtraArgs) // untag
	b.bd.movMemReg(RegScratch0, 24, RegScratch1)   // handler_pc
	b.bd.movRegReg(RegScratch0, RegSP)
	b.bd.binOpConstReg(x86.AADDQ, 32, RegSP)
	jmp := b.bd.new()
	jmp.As = obj.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = RegScratch1
	b.bd.add(jmp)

	b.bd.add(noLocalHandler)
	if b.helpers.Raise != 0 {
		b.bd.movRegReg(RegAccu, x86.REG_DI)
		b.bd.callAddr(b.helpers.Raise)
	}
	b.bd.ret()
}
