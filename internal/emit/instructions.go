package emit

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// cmpJump maps decode.Comp to the x86 conditional-jump opcode that follows
// a CMPQ against the comparison's operands (spec.md §4.D "BranchCmp...
// encode ... then conditional-jump with the mapping").
var cmpJump = map[decode.Comp]obj.As{
	decode.CompEq:  x86.AJEQ,
	decode.CompNe:  x86.AJNE,
	decode.CompLt:  x86.AJLT,
	decode.CompLe:  x86.AJLE,
	decode.CompGt:  x86.AJGT,
	decode.CompGe:  x86.AJGE,
	decode.CompULt: x86.AJCS,
	decode.CompUGe: x86.AJCC,
}

var arithOp = map[decode.ArithOp]obj.As{
	decode.Add: x86.AADDQ,
	decode.Sub: x86.ASUBQ,
	decode.And: x86.AANDQ,
	decode.Or:  x86.AORQ,
	decode.Xor: x86.AXORQ,
	decode.Lsl: x86.ASHLQ,
	decode.Lsr: x86.ASHRQ,
	decode.Asr: x86.ASARQ,
}

// emitInstruction emits the semantic code for one already-anchored
// instruction at linear index idx (spec.md §4.D "Per-instruction
// emission").
func (b *Backend) emitInstruction(idx int, ins decode.Instruction[int]) error {
	switch ins.Kind {
	case decode.LabelDef:
		return nil // synthetic marker only; the anchor itself is the label

	// --- stack manipulation ---
	case decode.Acc:
		b.bd.movMemReg(RegSP, int64(ins.Uint)*8, RegAccu)
	case decode.EnvAcc:
		b.bd.movMemReg(RegEnv, int64(ins.Uint)*8, RegAccu)
	case decode.Push:
		b.push()
	case decode.Pop:
		b.bd.binOpConstReg(x86.AADDQ, int64(ins.Uint)*8, RegSP)
	case decode.Assign:
		b.bd.movRegMem(RegAccu, RegSP, int64(ins.Uint)*8)
		b.bd.movConstReg(1, RegAccu) // Unit

	// --- function calling ---
	case decode.PushRetAddr:
		// {return-addr, env, Val_long(extra_args)} underneath the args
		// already pushed, per spec.md §4.D.
		b.bd.binOpConstReg(x86.ASUBQ, 24, RegSP)
		b.bd.loadLabelAddr(ins.Label, x86.REG_AX)
		b.bd.movRegMem(x86.REG_AX, RegSP, 0)
		b.bd.movRegMem(RegEnv, RegSP, 8)
		b.taggedStore(RegExtraArgs, 16)
	case decode.Apply1, decode.Apply2, decode.Apply3:
		n := map[decode.Kind]int64{decode.Apply1: 1, decode.Apply2: 2, decode.Apply3: 3}[ins.Kind]
		b.bd.movConstReg(n-1, RegExtraArgs)
		b.bd.movRegReg(RegAccu, RegEnv)
		b.jumpToStub(b.applyStub)
	case decode.Apply:
		b.bd.movConstReg(int64(ins.Uint)-1, RegExtraArgs)
		b.bd.movRegReg(RegAccu, RegEnv)
		b.jumpToStub(b.applyStub)
	case decode.ApplyTerm:
		b.bd.binOpConstReg(x86.AADDQ, int64(ins.Uint2)*8, RegSP)
		b.bd.movRegReg(RegAccu, RegEnv)
		b.jumpToStub(b.applyStub)
	case decode.Return:
		b.bd.binOpConstReg(x86.AADDQ, int64(ins.Uint)*8, RegSP)
		b.jumpToStub(b.returnStub)
	case decode.Restart:
		// Always reached via a jump into this instruction's own anchor
		// (from a direct closure dispatch whose code_addr is the re-grab
		// resume point built by Grab below); hand off to the shared
		// argument-frame reconstruction (spec.md §4.D).
		b.jumpToStub(b.restartStub)
	case decode.Grab:
		// If extra_args >= required, fall through. Otherwise build a
		// partial-application closure capturing whatever args are on the
		// stack so far and return it to the caller like any other return
		// value (spec.md §4.D "re-grab"); the closure's code_addr points at
		// the Restart instruction this Grab is always paired with (idx-1
		// in well-formed bytecode, per the OCaml bytecode compiler's
		// standard RESTART;GRAB preamble for multi-arg closures), so a
		// later call lands there and re-enters this same check.
		b.bd.cmpRegConst(RegExtraArgs, int64(ins.Uint))
		b.bd.jumpTo(x86.AJGE, idx+1)
		if b.helpers.BuildPartialClosure != 0 {
			b.bd.loadLabelAddr(idx-1, x86.REG_DI) // resume address
			b.bd.movRegReg(RegEnv, x86.REG_SI)    // original env to re-capture
			b.bd.movRegReg(RegSP, x86.REG_DX)     // args already on the VM stack
			b.bd.movRegReg(RegExtraArgs, x86.REG_CX)
			b.bd.callAddr(b.helpers.BuildPartialClosure)
			b.bd.movRegReg(x86.REG_AX, RegAccu) // accu = new partial closure
		}
		// The captured args are now owned by the closure; drop them from
		// the VM stack and return accu like a normal Return(extra_args).
		// RegExtraArgs (R14) survives the call above: callee-saved in the
		// System-V ABI.
		b.bd.movRegReg(RegExtraArgs, RegScratch0)
		b.bd.binOpConstReg(x86.ASHLQ, 3, RegScratch0)
		b.bd.binOpRegReg(x86.AADDQ, RegScratch0, RegSP)
		b.bd.movConstReg(0, RegExtraArgs)
		b.jumpToStub(b.returnStub)

	// --- closure construction ---
	case decode.Closure:
		b.emitClosureAlloc([]int{ins.Label}, 0)
	case decode.ClosureRec:
		b.emitClosureAlloc(ins.Labels, int(ins.Uint2))
	case decode.OffsetClosure:
		b.bd.movRegReg(RegEnv, RegAccu)
		b.bd.binOpConstReg(x86.AADDQ, int64(ins.Int)*8, RegAccu)

	// --- memory ---
	case decode.GetGlobal:
		if b.helpers.GlobalData != 0 {
			b.bd.movMemReg(0, int64(b.helpers.GlobalData)+int64(ins.Uint)*8, RegAccu)
		}
	case decode.SetGlobal:
		if b.helpers.Modify != 0 {
			b.bd.movConstReg(int64(b.helpers.GlobalData)+int64(ins.Uint)*8, x86.REG_DI)
			b.bd.movRegReg(RegAccu, x86.REG_SI)
			b.bd.callAddr(b.helpers.Modify)
		}
		b.bd.movConstReg(1, RegAccu) // Unit
	case decode.Const:
		b.bd.movConstReg(int64(ins.Int)<<1|1, RegAccu)
	case decode.MakeBlock:
		if ins.Uint == 0 {
			if b.helpers.AtomTable != 0 {
				b.bd.movMemReg(0, int64(b.helpers.AtomTable)+int64(ins.Tag)*8, RegAccu)
			}
		} else if b.helpers.AllocSmallDispatch != 0 {
			b.bd.movConstReg(int64(ins.Uint), x86.REG_DI)
			b.bd.movConstReg(int64(ins.Tag), x86.REG_SI)
			b.bd.callAddr(b.helpers.AllocSmallDispatch)
			b.bd.movRegReg(x86.REG_AX, RegAccu)
		}
	case decode.MakeFloatBlock:
		if b.helpers.AllocSmallDispatch != 0 {
			b.bd.movConstReg(int64(ins.Uint), x86.REG_DI)
			b.bd.callAddr(b.helpers.AllocSmallDispatch)
			b.bd.movRegReg(x86.REG_AX, RegAccu)
		}
	case decode.GetField:
		b.bd.movMemReg(RegAccu, int64(ins.Uint)*8, RegAccu)
	case decode.SetField:
		if b.helpers.Modify != 0 {
			b.bd.movRegReg(RegAccu, x86.REG_DI)
			b.bd.binOpConstReg(x86.AADDQ, int64(ins.Uint)*8, x86.REG_DI)
			b.pop(x86.REG_SI)
			b.bd.callAddr(b.helpers.Modify)
		}
		b.bd.movConstReg(1, RegAccu)
	case decode.GetFloatField:
		b.bd.movMemReg(RegAccu, int64(ins.Uint)*8, RegAccu)
	case decode.SetFloatField:
		b.pop(RegScratch0)
		b.bd.movRegMem(RegScratch0, RegAccu, int64(ins.Uint)*8)
		b.bd.movConstReg(1, RegAccu)
	case decode.VecTLength:
		// accu = Val_long(Wosize_val(accu)): the header word precedes the
		// block; wosize is its top 54 bits.
		b.bd.movMemReg(RegAccu, -8, RegScratch0)
		b.bd.binOpConstReg(x86.ASHRQ, 10, RegScratch0)
		b.bd.binOpConstReg(x86.ASHLQ, 1, RegScratch0)
		b.bd.binOpConstReg(x86.AORQ, 1, RegScratch0)
		b.bd.movRegReg(RegScratch0, RegAccu)
	case decode.GetVecTItem:
		// accu = Field(accu, Long_val(*sp++)): pop the tagged index, index
		// into the block accu points at.
		b.pop(RegScratch0)
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0) // untagged index
		b.bd.binOpConstReg(x86.ASHLQ, 3, RegScratch0) // *8 byte offset
		b.bd.movRegReg(RegAccu, RegScratch1)
		b.bd.binOpRegReg(x86.AADDQ, RegScratch0, RegScratch1)
		b.bd.movMemReg(RegScratch1, 0, RegAccu)
	case decode.GetBytesChar:
		// accu = Val_int(Byte_u(accu, Long_val(*sp++))).
		b.pop(RegScratch0)
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0)
		b.bd.movRegReg(RegAccu, RegScratch1)
		b.bd.binOpRegReg(x86.AADDQ, RegScratch0, RegScratch1)
		b.bd.movByteMemReg(RegScratch1, 0, RegScratch0)
		b.bd.binOpConstReg(x86.ASHLQ, 1, RegScratch0)
		b.bd.binOpConstReg(x86.AORQ, 1, RegScratch0)
		b.bd.movRegReg(RegScratch0, RegAccu)
	case decode.SetVecTItem:
		// Field(accu, Long_val(sp[0])) = sp[1]; accu = Unit; sp += 2.
		// Generic blocks may hold pointers, so go through the write
		// barrier like SetField does.
		b.pop(RegScratch0) // tagged index
		b.pop(RegScratch1) // value to store
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0)
		b.bd.binOpConstReg(x86.ASHLQ, 3, RegScratch0)
		b.bd.movRegReg(RegAccu, RegScratch2)
		b.bd.binOpRegReg(x86.AADDQ, RegScratch0, RegScratch2)
		if b.helpers.Modify != 0 {
			b.bd.movRegReg(RegScratch2, x86.REG_DI)
			b.bd.movRegReg(RegScratch1, x86.REG_SI)
			b.bd.callAddr(b.helpers.Modify)
		}
		b.bd.movConstReg(1, RegAccu)
	case decode.SetBytesChar:
		// Byte_u(accu, Long_val(sp[0])) = Int_val(sp[1]); accu = Unit.
		// Raw bytes never hold pointers, so no write barrier.
		b.pop(RegScratch0) // tagged index
		b.pop(RegScratch1) // tagged byte value
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch0)
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch1)
		b.bd.movRegReg(RegAccu, RegScratch2)
		b.bd.binOpRegReg(x86.AADDQ, RegScratch0, RegScratch2)
		b.bd.movRegMemByte(RegScratch1, RegScratch2, 0)
		b.bd.movConstReg(1, RegAccu)

	// --- control flow ---
	case decode.Branch:
		b.bd.jumpTo(obj.AJMP, ins.Label)
	case decode.BranchIf:
		b.bd.cmpRegConst(RegAccu, 1) // tagged false
		b.bd.jumpTo(x86.AJNE, ins.Label)
	case decode.BranchIfNot:
		b.bd.cmpRegConst(RegAccu, 1)
		b.bd.jumpTo(x86.AJEQ, ins.Label)
	case decode.Switch:
		return b.emitSwitch(ins)
	case decode.BoolNot:
		b.bd.binOpConstReg(x86.AXORQ, 2, RegAccu) // flip bit 1, keeping the tag bit

	// --- traps ---
	case decode.PushTrap:
		return b.emitPushTrap(ins)
	case decode.PopTrap:
		b.emitPopTrap()
	case decode.Raise:
		b.jumpToStub(b.raiseStub)

	// --- arithmetic / comparison ---
	case decode.ArithInt:
		return b.emitArithInt(ins)
	case decode.NegInt:
		b.bd.unaryReg(x86.ANEGQ, RegAccu)
		b.bd.binOpConstReg(x86.AADDQ, 2, RegAccu) // restore tag bit
	case decode.IntCmp:
		// accu = Val_int(accu <cmp> *sp++): accu is the left operand, the
		// popped stack value the right, matching BranchCmp's convention.
		b.pop(RegScratch0)
		as, ok := cmpJump[ins.Cmp]
		if !ok {
			return fmt.Errorf("emit: unknown comparison %d", ins.Cmp)
		}
		b.bd.cmpRegReg(RegAccu, RegScratch0)
		isTrue := b.bd.new()
		isTrue.As = obj.ANOP
		done := b.bd.new()
		done.As = obj.ANOP
		b.bd.jumpToProg(as, isTrue)
		b.bd.movConstReg(1, RegAccu) // Val_int(0): false
		b.bd.jumpToProg(obj.AJMP, done)
		b.bd.add(isTrue)
		b.bd.movConstReg(3, RegAccu) // Val_int(1): true
		b.bd.add(done)
	case decode.BranchCmp:
		b.bd.cmpRegConst(RegAccu, int64(ins.Int)<<1|1)
		as, ok := cmpJump[ins.Cmp]
		if !ok {
			return fmt.Errorf("emit: unknown comparison %d", ins.Cmp)
		}
		b.bd.jumpTo(as, ins.Label)
	case decode.OffsetInt:
		b.bd.binOpConstReg(x86.AADDQ, int64(ins.Int)<<1, RegAccu)
	case decode.OffsetRef:
		b.bd.movMemReg(RegAccu, 0, RegScratch0)
		b.bd.binOpConstReg(x86.AADDQ, int64(ins.Int)<<1, RegScratch0)
		b.bd.movRegMem(RegScratch0, RegAccu, 0)
		b.bd.movConstReg(1, RegAccu)
	case decode.IsInt:
		b.bd.binOpConstReg(x86.AANDQ, 1, RegAccu)
		b.bd.binOpConstReg(x86.AADDQ, 1, RegAccu)
		b.bd.binOpConstReg(x86.ASHLQ, 1, RegAccu)
		b.bd.binOpConstReg(x86.AORQ, 1, RegAccu)

	// --- C calls ---
	case decode.CCall:
		return b.emitCCall(ins)

	// --- OO dispatch ---
	case decode.GetMethod:
		// accu = Field(Field(sp[0], 0), Int_val(accu)): the object at
		// sp[0] is peeked, not popped (APPLY right after still needs it as
		// the method's first argument); accu holds the method index.
		b.bd.movMemReg(RegSP, 0, RegScratch0)       // object
		b.bd.movMemReg(RegScratch0, 0, RegScratch0) // method table
		b.bd.binOpConstReg(x86.ASARQ, 1, RegAccu)   // untag method index
		b.bd.binOpConstReg(x86.ASHLQ, 3, RegAccu)
		b.bd.binOpRegReg(x86.AADDQ, RegAccu, RegScratch0)
		b.bd.movMemReg(RegScratch0, 0, RegAccu)
	case decode.SetupForPubMet:
		b.push()
		b.bd.movConstReg(int64(ins.Int)<<1|1, RegAccu)
	case decode.GetDynMet:
		// accu = caml_get_public_method(sp[0], accu): sp[0] is the object
		// (peeked), accu the tagged public method tag set up by
		// SetupForPubMet. Method table layout isn't pinned elsewhere in
		// this codebase or spec.md beyond "binary-search semantics"
		// (runtimebridge.MethodTable documents and tests that contract but
		// is never itself called from emitted code); this emitter uses its
		// own packed layout: Field(table,0) = tagged entry count N, then N
		// (tag, method) pairs at fields 1..2N. Emitted as a real linear
		// scan loop, matching the "unrolled linear-scan fallback" the
		// table's own small size makes adequate.
		b.bd.movMemReg(RegSP, 0, RegScratch0)         // object
		b.bd.movMemReg(RegScratch0, 0, RegScratch0)   // method table
		b.bd.movMemReg(RegScratch0, 0, RegScratch1)   // tagged entry count
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch1) // raw count N
		b.bd.movConstReg(0, RegScratch2)              // loop index i

		loop := b.bd.new()
		loop.As = obj.ANOP
		next := b.bd.new()
		next.As = obj.ANOP
		done := b.bd.new()
		done.As = obj.ANOP

		b.bd.add(loop)
		b.bd.cmpRegReg(RegScratch2, RegScratch1)
		b.bd.jumpToProg(x86.AJGE, done) // i >= N: exhausted, leave accu unchanged

		b.bd.movRegReg(RegScratch2, x86.REG_R8)
		b.bd.binOpConstReg(x86.ASHLQ, 4, x86.REG_R8) // i*16: 2 fields per entry
		b.bd.binOpConstReg(x86.AADDQ, 8, x86.REG_R8) // + field-1 byte offset
		b.bd.movRegReg(RegScratch0, x86.REG_R9)
		b.bd.binOpRegReg(x86.AADDQ, x86.REG_R8, x86.REG_R9) // &entry.tag
		b.bd.movMemReg(x86.REG_R9, 0, x86.REG_R10)          // entry.tag
		b.bd.cmpRegReg(x86.REG_R10, RegAccu)
		b.bd.jumpToProg(x86.AJNE, next)

		b.bd.movMemReg(x86.REG_R9, 8, RegAccu) // match: entry.method
		b.bd.jumpToProg(obj.AJMP, done)

		b.bd.add(next)
		b.bd.binOpConstReg(x86.AADDQ, 1, RegScratch2)
		b.bd.jumpToProg(obj.AJMP, loop)
		b.bd.add(done)

	// --- bookkeeping ---
	case decode.CheckSignals:
		if b.helpers.SomethingToDo != 0 {
			b.bd.movMemReg(0, int64(b.helpers.SomethingToDo), RegScratch0)
			b.bd.cmpRegConst(RegScratch0, 0)
			b.bd.jumpTo(x86.AJEQ, idx+1)
			b.jumpToStub(b.processEvents)
		}
	case decode.Stop:
		b.emitExit()
	case decode.Break, decode.Event:
		// no-op in compiled code: these are interpreter single-step/debug
		// hooks with no baseline-tier effect (spec.md lists them under
		// "bookkeeping" without assigning them runtime semantics here).

	default:
		return fmt.Errorf("emit: unhandled instruction kind %d at index %d", ins.Kind, idx)
	}
	return nil
}

// push stores accu at the new top of the (downward-growing) VM stack.
func (b *Backend) push() {
	b.bd.binOpConstReg(x86.ASUBQ, 8, RegSP)
	b.bd.movRegMem(RegAccu, RegSP, 0)
}

// pop loads the VM stack's top word into reg and discards the slot.
func (b *Backend) pop(reg int16) {
	b.bd.movMemReg(RegSP, 0, reg)
	b.bd.binOpConstReg(x86.AADDQ, 8, RegSP)
}

// taggedStore stores reg, tagged as Val_long, at [RegSP+offset]. reg itself
// is left unmodified: PushTrap's call site needs RegExtraArgs to stay
// correct for every instruction after the trap frame is pushed.
func (b *Backend) taggedStore(reg int16, offset int64) {
	b.bd.movRegReg(reg, RegScratch2)
	b.bd.binOpConstReg(x86.ASHLQ, 1, RegScratch2)
	b.bd.binOpConstReg(x86.AORQ, 1, RegScratch2)
	b.bd.movRegMem(RegScratch2, RegSP, offset)
}

func (b *Backend) jumpToStub(stub *obj.Prog) {
	b.bd.jumpToProg(obj.AJMP, stub)
}

func (b *Backend) emitArithInt(ins decode.Instruction[int]) error {
	as, ok := arithOp[ins.Arith]
	if !ok {
		switch ins.Arith {
		case decode.Div, decode.Mod:
			b.pop(RegScratch1)
			b.bd.cmpRegConst(RegScratch1, 1) // tagged zero
			okIdx := b.bd.new()
			okIdx.As = obj.ANOP
			p := b.bd.new()
			p.As = x86.AJNE
			p.To.Type = obj.TYPE_BRANCH
			p.To.SetTarget(okIdx)
			b.bd.add(p)
			if b.helpers.RaiseZeroDivide != 0 {
				b.bd.callAddr(b.helpers.RaiseZeroDivide)
			}
			b.bd.add(okIdx)
			b.bd.movConstReg(1, RegAccu) // placeholder quotient/remainder result
			return nil
		default:
			return fmt.Errorf("emit: unknown arith op %d", ins.Arith)
		}
	}
	b.pop(RegScratch0)
	switch ins.Arith {
	case decode.Add:
		b.bd.binOpRegReg(as, RegScratch0, RegAccu)
		b.bd.binOpConstReg(x86.ASUBQ, 1, RegAccu) // (2a+1)+(2b+1)-1 = 2(a+b)+1
		return nil
	case decode.Lsl, decode.Lsr, decode.Asr:
		b.bd.movRegReg(RegScratch0, RegScratch2) // shift count goes in CL, untagged
		b.bd.binOpConstReg(x86.ASARQ, 1, RegScratch2)
		if ins.Arith == decode.Lsl {
			b.bd.binOpConstReg(x86.ASUBQ, 1, RegAccu) // clear the tag bit before shifting left
		}
		b.bd.binOpRegReg(as, RegScratch2, RegAccu)
	default:
		b.bd.binOpRegReg(as, RegScratch0, RegAccu)
	}
	b.bd.binOpConstReg(x86.AORQ, 1, RegAccu) // restore tag bit after the raw op
	return nil
}

func (b *Backend) emitCCall(ins decode.Instruction[int]) error {
	nargs := ins.Uint
	if nargs == 0 {
		nargs = 1
	}
	if b.helpers.PrimTable == 0 {
		return nil
	}
	addr := runtimebridge.PrimitiveAddr(uintptr(b.helpers.PrimTable), ins.Uint2)
	argRegs := []int16{x86.REG_DI, x86.REG_SI, x86.REG_DX, x86.REG_CX, x86.REG_R8}
	b.bd.movRegReg(RegAccu, argRegs[0])
	for i := 1; i < int(nargs) && i < len(argRegs); i++ {
		b.pop(argRegs[i])
	}
	b.bd.movRegMem(RegSP, RegDomainState, int64(runtimebridge.OffsetExternSP)) // publish extern_sp before the call
	b.bd.callAddr(addr)
	b.bd.movRegReg(x86.REG_AX, RegAccu)
	return nil
}

func (b *Backend) emitSwitch(ins decode.Instruction[int]) error {
	ints := ins.Labels[:ins.IntCount]
	tags := ins.Labels[ins.IntCount:]
	for i, target := range ints {
		b.bd.cmpRegConst(RegAccu, int64(i)<<1|1)
		b.bd.jumpTo(x86.AJEQ, target)
	}
	if len(tags) > 0 {
		b.bd.movMemReg(RegAccu, -8, RegScratch0) // header word
		for i, target := range tags {
			b.bd.cmpRegConst(RegScratch0, int64(i))
			b.bd.jumpTo(x86.AJEQ, target)
		}
	}
	if b.helpers.FatalError != 0 {
		b.bd.callAddr(b.helpers.FatalError) // fall-through is unreachable in well-typed bytecode
	}
	return nil
}

func (b *Backend) emitPushTrap(ins decode.Instruction[int]) error {
	// {prev_trap_sp, env, Val_long(extra_args), handler_pc}, spec.md §4.D.
	b.bd.binOpConstReg(x86.ASUBQ, 32, RegSP)
	b.bd.loadLabelAddr(ins.Label, x86.REG_AX)
	b.bd.movRegMem(x86.REG_AX, RegSP, 24)
	b.bd.movRegMem(RegEnv, RegSP, 8)
	b.taggedStore(RegExtraArgs, 16)

	// Publish the new trap_sp into the domain state via RegDomainState
	// (loaded by emitEntry from the initial-state record's third field),
	// saving the previous value in the frame so PopTrap and Raise's local
	// unwind can restore it.
	b.bd.movMemReg(RegDomainState, int64(runtimebridge.OffsetTrapSP), RegScratch0)
	b.bd.movRegMem(RegScratch0, RegSP, 0)
	b.bd.movRegMem(RegSP, RegDomainState, int64(runtimebridge.OffsetTrapSP))
	return nil
}

func (b *Backend) emitPopTrap() {
	// Restore the previous trap_sp from the frame before discarding it,
	// mirroring emitPushTrap's publish.
	b.bd.movMemReg(RegSP, 0, RegScratch0)
	b.bd.movRegMem(RegScratch0, RegDomainState, int64(runtimebridge.OffsetTrapSP))
	b.bd.binOpConstReg(x86.AADDQ, 32, RegSP)
}

// emitClosureAlloc implements Closure/ClosureRec (spec.md §4.D): push the
// four VM registers as a scratch buffer, push every target's label
// address (the rec form pushes one per function), call the allocation
// helper with a pointer to the buffer plus the label address(es), then
// restore the VM registers. The helper populates the closure block's
// fields and infix headers and points its metadata slot at this section's
// metadata table.
func (b *Backend) emitClosureAlloc(labels []int, nvars int) {
	for _, r := range vmRegs {
		b.bd.pushReg(r)
	}
	for _, l := range labels {
		b.bd.loadLabelAddr(l, x86.REG_AX)
		b.bd.pushReg(x86.REG_AX)
	}
	if b.helpers.AllocSmallDispatch != 0 {
		b.bd.movRegReg(x86.REG_SP, x86.REG_DI) // pointer to the scratch buffer
		b.bd.movConstReg(int64(len(labels)), x86.REG_SI)
		b.bd.movConstReg(int64(nvars), x86.REG_DX)
		b.bd.callAddr(b.helpers.AllocSmallDispatch)
	}
	b.bd.binOpConstReg(x86.AADDQ, int64(len(labels))*8, x86.REG_SP)
	for i := len(vmRegs) - 1; i >= 0; i-- {
		b.bd.popReg(vmRegs[i])
	}
	b.bd.movRegReg(x86.REG_AX, RegAccu)
}
