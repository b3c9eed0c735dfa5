package emit

import (
	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// builder wraps a golang-asm *goasm.Builder with the label bookkeeping the
// baseline emitter needs: a lazily-created NOP anchor per linear
// instruction index (spec.md §4.D "allocates a dynamic label at the
// instruction's index, creating it lazily on first reference so forward
// branches resolve"), resolved the same way wazero's
// internal/asm/golang_asm wrapper resolves jump targets
// (prog.To.SetTarget(anchorProg)).
type builder struct {
	b      *goasm.Builder
	labels map[int]*obj.Prog
}

func newBuilder() (*builder, error) {
	b, err := goasm.NewBuilder("amd64", 256)
	if err != nil {
		return nil, err
	}
	return &builder{b: b, labels: make(map[int]*obj.Prog)}, nil
}

func (bd *builder) new() *obj.Prog { return bd.b.NewProg() }

func (bd *builder) add(p *obj.Prog) { bd.b.AddInstruction(p) }

// label returns the NOP anchor Prog for instruction index idx, creating it
// (unattached) on first reference. anchorAt must later attach it to the
// instruction stream at idx's actual emission point.
func (bd *builder) label(idx int) *obj.Prog {
	if p, ok := bd.labels[idx]; ok {
		return p
	}
	p := bd.new()
	p.As = obj.ANOP
	bd.labels[idx] = p
	return p
}

// anchorAt emits (or re-emits) idx's label anchor at the current position
// in the instruction stream.
func (bd *builder) anchorAt(idx int) {
	p := bd.label(idx)
	bd.add(p)
}

// jumpToProg emits a conditional jump whose target is an already-known
// *obj.Prog anchor (a shared stub, rather than a lazily-allocated linear
// instruction label).
func (bd *builder) jumpToProg(as obj.As, target *obj.Prog) {
	p := bd.new()
	p.As = as
	p.To.Type = obj.TYPE_BRANCH
	p.To.SetTarget(target)
	bd.add(p)
}

// jumpTo emits an unconditional or conditional jump whose target is idx's
// label, allocating the label lazily if idx has not been reached yet.
func (bd *builder) jumpTo(as obj.As, idx int) {
	p := bd.new()
	p.As = as
	p.To.Type = obj.TYPE_BRANCH
	target := bd.label(idx)
	p.To.SetTarget(target)
	bd.add(p)
}

func (bd *builder) assemble() []byte { return bd.b.Assemble() }

// loadLabelAddr emits `LEAQ target(PC), to`: loads the absolute code
// address of idx's label anchor into to, the pattern PushRetAddr, Closure
// and PushTrap use to capture a return/handler/entry address as data
// rather than as a branch target.
func (bd *builder) loadLabelAddr(idx int, to int16) {
	p := bd.new()
	p.As = x86.ALEAQ
	p.From.Type = obj.TYPE_BRANCH
	p.From.SetTarget(bd.label(idx))
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

// --- small helpers shared by instruction emission ---

func (bd *builder) movRegReg(from, to int16) {
	p := bd.new()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = from
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

func (bd *builder) movConstReg(v int64, to int16) {
	p := bd.new()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = v
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

// movMemReg loads [base+offset] into to.
func (bd *builder) movMemReg(base int16, offset int64, to int16) {
	p := bd.new()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = base
	p.From.Offset = offset
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

// movRegMem stores from into [base+offset].
func (bd *builder) movRegMem(from int16, base int16, offset int64) {
	p := bd.new()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = from
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = base
	p.To.Offset = offset
	bd.add(p)
}

func (bd *builder) binOpRegReg(as obj.As, from, to int16) {
	p := bd.new()
	p.As = as
	p.From.Type = obj.TYPE_REG
	p.From.Reg = from
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

func (bd *builder) binOpConstReg(as obj.As, v int64, to int16) {
	p := bd.new()
	p.As = as
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = v
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

func (bd *builder) unaryReg(as obj.As, reg int16) {
	p := bd.new()
	p.As = as
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	bd.add(p)
}

func (bd *builder) cmpRegConst(reg int16, v int64) {
	p := bd.new()
	p.As = x86.ACMPQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	p.To.Type = obj.TYPE_CONST
	p.To.Offset = v
	bd.add(p)
}

// cmpRegReg computes from-to, the same operand order cmpRegConst uses, so
// cmpJump's conditions read the same way regardless of which side is a
// register and which is a constant.
func (bd *builder) cmpRegReg(from, to int16) {
	p := bd.new()
	p.As = x86.ACMPQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = from
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

// movByteMemReg zero-extends the byte at [base+offset] into to.
func (bd *builder) movByteMemReg(base int16, offset int64, to int16) {
	p := bd.new()
	p.As = x86.AMOVBQZX
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = base
	p.From.Offset = offset
	p.To.Type = obj.TYPE_REG
	p.To.Reg = to
	bd.add(p)
}

// movRegMemByte stores from's low byte into [base+offset].
func (bd *builder) movRegMemByte(from int16, base int16, offset int64) {
	p := bd.new()
	p.As = x86.AMOVB
	p.From.Type = obj.TYPE_REG
	p.From.Reg = from
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = base
	p.To.Offset = offset
	bd.add(p)
}

func (bd *builder) callAddr(addr uintptr) {
	p := bd.new()
	p.As = obj.ACALL
	p.To.Type = obj.TYPE_CONST
	p.To.Offset = int64(addr)
	bd.add(p)
}

func (bd *builder) ret() {
	p := bd.new()
	p.As = obj.ARET
	bd.add(p)
}

func (bd *builder) pushReg(reg int16) {
	p := bd.new()
	p.As = x86.APUSHQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = reg
	bd.add(p)
}

func (bd *builder) popReg(reg int16) {
	p := bd.new()
	p.As = x86.APOPQ
	p.To.Type = obj.TYPE_REG
	p.To.Reg = reg
	bd.add(p)
}
