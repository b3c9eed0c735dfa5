package ir

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/camljit/camljit/internal/blocks"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// ErrorHandling governs what happens when lowering or codegen panics
// (spec.md §6 `cranelift_error_handling`).
type ErrorHandling uint8

const (
	ErrorHandlingLog ErrorHandling = iota
	ErrorHandlingIgnore
	ErrorHandlingPanic
)

// Result is the optimizing tier's output for one closure.
type Result struct {
	Code      []byte
	StackMaps []StackMapEntry
}

// CompileClosure implements the two-tier contract spec.md §7 names:
// compile_closure(closure, primitives) -> Result<code_ptr, Unsupported|Error>.
// Lowering and codegen panics are recovered here rather than crashing the
// process; policy governs whether a recovered panic is also logged, left
// silent, or (for development builds) re-raised. A re-raised panic returns
// no *Error; jitcore.Promote marks the closure -3 as the panic passes
// through it.
func CompileClosure(closure *blocks.Closure, helpers runtimebridge.HelperAddrs, policy ErrorHandling) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if policy == ErrorHandlingPanic {
				panic(r)
			}
			if policy == ErrorHandlingLog {
				fmt.Printf("camljit: optimizing-tier codegen panic recovered: %v\n", r)
			}
			res, err = nil, &Error{Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	fn, lerr := Lower(closure)
	if lerr != nil {
		return nil, lerr
	}
	return compileFunc(fn, helpers)
}

// compileFunc assembles fn's IR through golang-asm, the same builder/Prog
// pattern the baseline emitter (internal/emit) uses.
func compileFunc(fn *Func, helpers runtimebridge.HelperAddrs) (*Result, error) {
	b, err := goasm.NewBuilder("amd64", 256)
	if err != nil {
		return nil, fmt.Errorf("ir: %w", err)
	}

	labels := make(map[int]*obj.Prog, len(fn.Blocks))
	label := func(id int) *obj.Prog {
		if p, ok := labels[id]; ok {
			return p
		}
		p := b.NewProg()
		p.As = obj.ANOP
		labels[id] = p
		return p
	}

	afterCall := make(map[int]*obj.Prog, len(fn.StackMaps))
	for _, blk := range fn.Blocks {
		b.AddInstruction(label(blk.ID))
		for _, op := range blk.Ops {
			if err := emitOp(b, label, op, helpers); err != nil {
				return nil, err
			}
			if op.StackMapID >= 0 {
				p := b.NewProg() // anchors the post-call return offset
				p.As = obj.ANOP
				b.AddInstruction(p)
				afterCall[op.StackMapID] = p
			}
		}
	}

	code := b.Assemble()
	stackMaps := make([]StackMapEntry, len(fn.StackMaps))
	copy(stackMaps, fn.StackMaps)
	for id, p := range afterCall {
		stackMaps[id].Offset = p.Pc
	}
	return &Result{Code: code, StackMaps: stackMaps}, nil
}

// varReg maps an IR variable to a physical register. The accumulator and
// extra-args pin to the same registers the baseline emitter uses (r13/r14)
// so a tail-dispatch between tiers needs no shuffle; stack-slot variables
// spill through a single scratch register since this backend does not do
// full register allocation.
func varReg(v Var) int16 {
	switch v {
	case VarAccu:
		return x86.REG_R13
	case VarExtraArgs:
		return x86.REG_R14
	case VarResult:
		return x86.REG_AX
	default:
		return x86.REG_BX
	}
}

func emitOp(b *goasm.Builder, label func(int) *obj.Prog, op Op, helpers runtimebridge.HelperAddrs) error {
	switch op.Kind {
	case OpMove:
		p := b.NewProg()
		p.As = x86.AMOVQ
		p.From.Type = obj.TYPE_REG
		p.From.Reg = varReg(op.A)
		p.To.Type = obj.TYPE_REG
		p.To.Reg = varReg(op.Dst)
		b.AddInstruction(p)

	case OpLoadConst:
		p := b.NewProg()
		p.As = x86.AMOVQ
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = op.Const<<1 | 1
		p.To.Type = obj.TYPE_REG
		p.To.Reg = varReg(op.Dst)
		b.AddInstruction(p)

	case OpBinArith:
		p := b.NewProg()
		p.As = x86.AADDQ
		p.From.Type = obj.TYPE_REG
		p.From.Reg = varReg(op.B)
		p.To.Type = obj.TYPE_REG
		p.To.Reg = varReg(op.Dst)
		b.AddInstruction(p)

	case OpCompare:
		p := b.NewProg()
		p.As = x86.ACMPQ
		p.From.Type = obj.TYPE_REG
		p.From.Reg = varReg(op.A)
		p.To.Type = obj.TYPE_REG
		p.To.Reg = varReg(op.B)
		b.AddInstruction(p)

	case OpCall:
		if helpers.PrimTable == 0 {
			break
		}
		addr := runtimebridge.PrimitiveAddr(uintptr(helpers.PrimTable), op.Prim)
		p := b.NewProg()
		p.As = obj.ACALL
		p.To.Type = obj.TYPE_CONST
		p.To.Offset = int64(addr)
		b.AddInstruction(p)

	case OpBranch:
		p := b.NewProg()
		p.As = obj.AJMP
		p.To.Type = obj.TYPE_BRANCH
		p.To.SetTarget(label(op.Target))
		b.AddInstruction(p)

	case OpBranchIf, OpBranchCmp:
		p := b.NewProg()
		p.As = x86.AJNE
		p.To.Type = obj.TYPE_BRANCH
		p.To.SetTarget(label(op.Target))
		b.AddInstruction(p)
		e := b.NewProg()
		e.As = obj.AJMP
		e.To.Type = obj.TYPE_BRANCH
		e.To.SetTarget(label(op.Else))
		b.AddInstruction(e)

	case OpReturn, OpTailCall, OpStop:
		p := b.NewProg()
		p.As = obj.ARET
		b.AddInstruction(p)

	case OpRaise:
		if helpers.Raise != 0 {
			p := b.NewProg()
			p.As = obj.ACALL
			p.To.Type = obj.TYPE_CONST
			p.To.Offset = int64(helpers.Raise)
			b.AddInstruction(p)
		}
		r := b.NewProg()
		r.As = obj.ARET
		b.AddInstruction(r)

	default:
		return fmt.Errorf("ir: unhandled op kind %d", op.Kind)
	}
	return nil
}
