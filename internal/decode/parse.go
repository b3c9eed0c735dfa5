package decode

import "github.com/camljit/camljit/internal/opcode"

// Span locates the decoded instructions produced from one original word: a
// half-open range [Start, Start+Count) of indices into ParsedInstructions.
// Count is 0 for an interior word of a multi-word instruction (an offset
// that was consumed as an operand, not as the start of an instruction).
type Span struct {
	Start int32
	Count int32
}

// ParsedInstructions is the decoder's output: the desugared instruction
// sequence (with labels as absolute word offsets) plus a lookup from every
// original word offset to the span of instructions it produced.
type ParsedInstructions struct {
	Instructions []Instruction[int32]
	OffsetMap    map[int32]Span
}

type parser struct {
	words []int32
	pos   int32
	out   ParsedInstructions
}

// Parse decodes a full word stream. sizeHint pre-sizes the output slices
// and need not be exact.
func Parse(words []int32, sizeHint int) (*ParsedInstructions, error) {
	p := &parser{
		words: words,
		out: ParsedInstructions{
			Instructions: make([]Instruction[int32], 0, sizeHint),
			OffsetMap:    make(map[int32]Span, sizeHint),
		},
	}
	for !p.atEnd() {
		if err := p.decodeOne(); err != nil {
			return &p.out, err
		}
	}
	return &p.out, nil
}

func (p *parser) atEnd() bool { return int(p.pos) >= len(p.words) }

func (p *parser) readWord() (int32, bool) {
	if p.atEnd() {
		return 0, false
	}
	w := p.words[p.pos]
	p.pos++
	return w, true
}

func (p *parser) fail(reason ErrorReason, badValue int32) error {
	partial := p.out
	return &ParseError{Reason: reason, CurrentPosition: p.pos, BadValue: badValue, Partial: &partial}
}

func (p *parser) emit(ins Instruction[int32]) { p.out.Instructions = append(p.out.Instructions, ins) }

// label resolves a displacement read relative to anchor, rejecting negative
// absolute offsets.
func (p *parser) label(anchor int32) (int32, error) {
	disp, ok := p.readWord()
	if !ok {
		return 0, p.fail(UnexpectedEnd, 0)
	}
	abs := anchor + disp
	if abs < 0 {
		return 0, p.fail(NegativeLabel, abs)
	}
	return abs, nil
}

func (p *parser) u32() (uint32, error) {
	w, ok := p.readWord()
	if !ok {
		return 0, p.fail(UnexpectedEnd, 0)
	}
	return uint32(w), nil
}

func (p *parser) i32() (int32, error) {
	w, ok := p.readWord()
	if !ok {
		return 0, p.fail(UnexpectedEnd, 0)
	}
	return w, nil
}

// decodeOne decodes and desugars the single original instruction starting
// at the current position, appending its expansion (including the leading
// synthetic LabelDef) to p.out.Instructions and recording the offset-map
// span for it.
func (p *parser) decodeOne() error {
	startInputPos := p.pos
	startOutputPos := int32(len(p.out.Instructions))
	p.emit(Instruction[int32]{Kind: LabelDef, Label: startInputPos})

	opWord, ok := p.readWord()
	if !ok {
		return p.fail(UnexpectedEnd, 0)
	}
	op, ok := opcode.FromInt32(opWord)
	if !ok {
		return p.fail(BadOpcode, opWord)
	}

	if err := p.decodeBody(op); err != nil {
		return err
	}

	count := int32(len(p.out.Instructions)) - startOutputPos
	p.out.OffsetMap[startInputPos] = Span{Start: startOutputPos, Count: count}
	return nil
}

func push() Instruction[int32] { return Instruction[int32]{Kind: Push} }

func acc(n uint32) Instruction[int32]     { return Instruction[int32]{Kind: Acc, Uint: n} }
func envAcc(n uint32) Instruction[int32]  { return Instruction[int32]{Kind: EnvAcc, Uint: n} }
func constI(v int32) Instruction[int32]   { return Instruction[int32]{Kind: Const, Int: v} }
func offClos(i int32) Instruction[int32]  { return Instruction[int32]{Kind: OffsetClosure, Int: i} }
func makeBlock(size uint32, tag uint8) Instruction[int32] {
	return Instruction[int32]{Kind: MakeBlock, Uint: size, Tag: tag}
}
func getGlobal(idx uint32) Instruction[int32] { return Instruction[int32]{Kind: GetGlobal, Uint: idx} }
func getField(n uint32) Instruction[int32]    { return Instruction[int32]{Kind: GetField, Uint: n} }

// decodeBody reads op's operands per its shape, desugars composite forms,
// and appends the resulting instruction(s).
func (p *parser) decodeBody(op opcode.Opcode) error {
	switch op {
	// --- short forms needing individual handling (not a 1:1 shape lookup) ---
	case opcode.Acc0, opcode.Acc1, opcode.Acc2, opcode.Acc3, opcode.Acc4, opcode.Acc5, opcode.Acc6, opcode.Acc7:
		p.emit(acc(uint32(op - opcode.Acc0)))
		return nil
	case opcode.PushAcc0, opcode.PushAcc1, opcode.PushAcc2, opcode.PushAcc3, opcode.PushAcc4, opcode.PushAcc5, opcode.PushAcc6, opcode.PushAcc7:
		p.emit(push())
		p.emit(acc(uint32(op - opcode.PushAcc0)))
		return nil
	case opcode.EnvAcc1, opcode.EnvAcc2, opcode.EnvAcc3, opcode.EnvAcc4:
		p.emit(envAcc(uint32(op-opcode.EnvAcc1) + 1))
		return nil
	case opcode.PushEnvAcc1, opcode.PushEnvAcc2, opcode.PushEnvAcc3, opcode.PushEnvAcc4:
		p.emit(push())
		p.emit(envAcc(uint32(op-opcode.PushEnvAcc1) + 1))
		return nil
	case opcode.Apply1:
		p.emit(Instruction[int32]{Kind: Apply1})
		return nil
	case opcode.Apply2:
		p.emit(Instruction[int32]{Kind: Apply2})
		return nil
	case opcode.Apply3:
		p.emit(Instruction[int32]{Kind: Apply3})
		return nil
	case opcode.AppTerm1, opcode.AppTerm2, opcode.AppTerm3:
		slot, err := p.u32()
		if err != nil {
			return err
		}
		k := uint32(op-opcode.AppTerm1) + 1
		p.emit(Instruction[int32]{Kind: ApplyTerm, Uint: k, Uint2: slot})
		return nil
	case opcode.Restart:
		p.emit(Instruction[int32]{Kind: Restart})
		return nil
	case opcode.OffsetClosureM2, opcode.OffsetClosure0, opcode.OffsetClosure2:
		p.emit(offClos(offsetClosureImm(op)))
		return nil
	case opcode.PushOffsetClosureM2, opcode.PushOffsetClosure0, opcode.PushOffsetClosure2:
		p.emit(push())
		p.emit(offClos(offsetClosureImm(op)))
		return nil
	case opcode.Atom0:
		p.emit(makeBlock(0, 0))
		return nil
	case opcode.PushAtom0:
		p.emit(push())
		p.emit(makeBlock(0, 0))
		return nil
	case opcode.MakeBlock1, opcode.MakeBlock2, opcode.MakeBlock3:
		tagWord, err := p.u32()
		if err != nil {
			return err
		}
		size := uint32(op-opcode.MakeBlock1) + 1
		p.emit(makeBlock(size, uint8(tagWord)))
		return nil
	case opcode.GetField0, opcode.GetField1, opcode.GetField2, opcode.GetField3:
		p.emit(getField(uint32(op - opcode.GetField0)))
		return nil
	case opcode.SetField0, opcode.SetField1, opcode.SetField2, opcode.SetField3:
		p.emit(Instruction[int32]{Kind: SetField, Uint: uint32(op - opcode.SetField0)})
		return nil
	case opcode.Const0, opcode.Const1, opcode.Const2, opcode.Const3:
		p.emit(constI(int32(op - opcode.Const0)))
		return nil
	case opcode.PushConst0, opcode.PushConst1, opcode.PushConst2, opcode.PushConst3:
		p.emit(push())
		p.emit(constI(int32(op - opcode.PushConst0)))
		return nil
	case opcode.NegInt:
		p.emit(Instruction[int32]{Kind: NegInt})
		return nil
	case opcode.AddInt, opcode.SubInt, opcode.MulInt, opcode.DivInt, opcode.ModInt,
		opcode.AndInt, opcode.OrInt, opcode.XorInt, opcode.LslInt, opcode.LsrInt, opcode.AsrInt:
		p.emit(Instruction[int32]{Kind: ArithInt, Arith: ArithOp(op - opcode.AddInt)})
		return nil
	case opcode.Eq, opcode.Neq, opcode.LtInt, opcode.LeInt, opcode.GtInt, opcode.GeInt:
		p.emit(Instruction[int32]{Kind: IntCmp, Cmp: Comp(op - opcode.Eq)})
		return nil
	case opcode.ULtInt:
		p.emit(Instruction[int32]{Kind: IntCmp, Cmp: CompULt})
		return nil
	case opcode.UGeInt:
		p.emit(Instruction[int32]{Kind: IntCmp, Cmp: CompUGe})
		return nil
	case opcode.BEq, opcode.BNeq, opcode.BLtInt, opcode.BLeInt, opcode.BGtInt, opcode.BGeInt:
		return p.decodeBranchCmp(Comp(op - opcode.BEq))
	case opcode.BULtInt:
		return p.decodeBranchCmp(CompULt)
	case opcode.BUGeInt:
		return p.decodeBranchCmp(CompUGe)
	case opcode.CCall1, opcode.CCall2, opcode.CCall3, opcode.CCall4, opcode.CCall5:
		id, err := p.u32()
		if err != nil {
			return err
		}
		nargs := uint32(op-opcode.CCall1) + 1
		p.emit(Instruction[int32]{Kind: CCall, Uint: nargs, Uint2: id})
		return nil
	case opcode.ReRaise:
		p.emit(Instruction[int32]{Kind: Raise, Raise: RaiseReRaise})
		return nil
	case opcode.RaiseNoTrace:
		p.emit(Instruction[int32]{Kind: Raise, Raise: RaiseNoTrace})
		return nil
	case opcode.Raise:
		p.emit(Instruction[int32]{Kind: Raise, Raise: RaiseRegular})
		return nil
	case opcode.GetStringChar:
		// Alias of GetBytesChar in this bytecode generation.
		p.emit(Instruction[int32]{Kind: GetBytesChar})
		return nil
	}

	// --- everything else follows directly from the opcode's declared shape ---
	switch op.Shape() {
	case opcode.ShapeNone:
		p.emit(Instruction[int32]{Kind: noneKind(op)})
		return nil
	case opcode.ShapeUint:
		return p.decodeUintShape(op)
	case opcode.ShapeInt:
		return p.decodeIntShape(op)
	case opcode.ShapeUintUint:
		return p.decodeUintUintShape(op)
	case opcode.ShapeDisp:
		return p.decodeDispShape(op)
	case opcode.ShapeUintDisp:
		return p.decodeClosure()
	case opcode.ShapeGetGlobal:
		return p.decodeGetGlobal(op)
	case opcode.ShapeGetGlobalUint:
		return p.decodeGetGlobalField(op)
	case opcode.ShapeSetGlobal:
		idx, err := p.u32()
		if err != nil {
			return err
		}
		p.emit(Instruction[int32]{Kind: SetGlobal, Uint: idx})
		return nil
	case opcode.ShapePrimitive:
		// Handled above via the explicit CCall1..5 cases.
		return nil
	case opcode.ShapeUintPrimitive:
		nargs, err := p.u32()
		if err != nil {
			return err
		}
		id, err := p.u32()
		if err != nil {
			return err
		}
		p.emit(Instruction[int32]{Kind: CCall, Uint: nargs, Uint2: id})
		return nil
	case opcode.ShapeSwitch:
		return p.decodeSwitch()
	case opcode.ShapeClosureRec:
		return p.decodeClosureRec()
	case opcode.ShapePubMet:
		return p.decodeGetPubMet()
	}
	return nil
}

func offsetClosureImm(op opcode.Opcode) int32 {
	switch op {
	case opcode.OffsetClosureM2, opcode.PushOffsetClosureM2:
		return -2
	case opcode.OffsetClosure2, opcode.PushOffsetClosure2:
		return 2
	default:
		return 0
	}
}

// noneKind maps a no-operand opcode directly to its Kind for the remaining
// 1:1 cases not covered by the explicit switch above.
func noneKind(op opcode.Opcode) Kind {
	switch op {
	case opcode.Push:
		return Push
	case opcode.VecTLength:
		return VecTLength
	case opcode.GetVecTItem:
		return GetVecTItem
	case opcode.SetVecTItem:
		return SetVecTItem
	case opcode.GetBytesChar:
		return GetBytesChar
	case opcode.SetBytesChar:
		return SetBytesChar
	case opcode.BoolNot:
		return BoolNot
	case opcode.PopTrap:
		return PopTrap
	case opcode.CheckSignals:
		return CheckSignals
	case opcode.IsInt:
		return IsInt
	case opcode.GetMethod:
		return GetMethod
	case opcode.GetDynMet:
		return GetDynMet
	case opcode.Stop:
		return Stop
	case opcode.Event:
		return Event
	case opcode.Break:
		return Break
	default:
		return Stop
	}
}

func (p *parser) decodeUintShape(op opcode.Opcode) error {
	n, err := p.u32()
	if err != nil {
		return err
	}
	switch op {
	case opcode.Acc:
		p.emit(acc(n))
	case opcode.PushAcc:
		p.emit(push())
		p.emit(acc(n))
	case opcode.Pop:
		p.emit(Instruction[int32]{Kind: Pop, Uint: n})
	case opcode.Assign:
		p.emit(Instruction[int32]{Kind: Assign, Uint: n})
	case opcode.EnvAcc:
		p.emit(envAcc(n))
	case opcode.PushEnvAcc:
		p.emit(push())
		p.emit(envAcc(n))
	case opcode.Apply:
		p.emit(Instruction[int32]{Kind: Apply, Uint: n})
	case opcode.Return:
		p.emit(Instruction[int32]{Kind: Return, Uint: n})
	case opcode.Grab:
		p.emit(Instruction[int32]{Kind: Grab, Uint: n})
	case opcode.Atom:
		p.emit(makeBlock(0, uint8(n)))
	case opcode.PushAtom:
		p.emit(push())
		p.emit(makeBlock(0, uint8(n)))
	case opcode.MakeFloatBlock:
		p.emit(Instruction[int32]{Kind: MakeFloatBlock, Uint: n})
	case opcode.GetField:
		p.emit(getField(n))
	case opcode.GetFloatField:
		p.emit(Instruction[int32]{Kind: GetFloatField, Uint: n})
	case opcode.SetField:
		p.emit(Instruction[int32]{Kind: SetField, Uint: n})
	case opcode.SetFloatField:
		p.emit(Instruction[int32]{Kind: SetFloatField, Uint: n})
	}
	return nil
}

func (p *parser) decodeIntShape(op opcode.Opcode) error {
	v, err := p.i32()
	if err != nil {
		return err
	}
	switch op {
	case opcode.OffsetClosure:
		p.emit(offClos(v))
	case opcode.PushOffsetClosure:
		p.emit(push())
		p.emit(offClos(v))
	case opcode.ConstInt:
		p.emit(constI(v))
	case opcode.PushConstInt:
		p.emit(push())
		p.emit(constI(v))
	case opcode.OffsetInt:
		p.emit(Instruction[int32]{Kind: OffsetInt, Int: v})
	case opcode.OffsetRef:
		p.emit(Instruction[int32]{Kind: OffsetRef, Int: v})
	}
	return nil
}

func (p *parser) decodeUintUintShape(op opcode.Opcode) error {
	a, err := p.u32()
	if err != nil {
		return err
	}
	b, err := p.u32()
	if err != nil {
		return err
	}
	switch op {
	case opcode.AppTerm:
		p.emit(Instruction[int32]{Kind: ApplyTerm, Uint: a, Uint2: b})
	case opcode.MakeBlock:
		p.emit(makeBlock(a, uint8(b)))
	}
	return nil
}

func (p *parser) decodeDispShape(op opcode.Opcode) error {
	anchor := p.pos
	label, err := p.label(anchor)
	if err != nil {
		return err
	}
	switch op {
	case opcode.PushRetAddr:
		p.emit(Instruction[int32]{Kind: PushRetAddr, Label: label})
	case opcode.Branch:
		p.emit(Instruction[int32]{Kind: Branch, Label: label})
	case opcode.BranchIf:
		p.emit(Instruction[int32]{Kind: BranchIf, Label: label})
	case opcode.BranchIfNot:
		p.emit(Instruction[int32]{Kind: BranchIfNot, Label: label})
	case opcode.PushTrap:
		p.emit(Instruction[int32]{Kind: PushTrap, Label: label})
	}
	return nil
}

func (p *parser) decodeBranchCmp(cmp Comp) error {
	imm, err := p.i32()
	if err != nil {
		return err
	}
	anchor := p.pos
	label, err := p.label(anchor)
	if err != nil {
		return err
	}
	p.emit(Instruction[int32]{Kind: BranchCmp, Cmp: cmp, Int: imm, Label: label})
	return nil
}

func (p *parser) decodeClosure() error {
	nvars, err := p.u32()
	if err != nil {
		return err
	}
	anchor := p.pos
	label, err := p.label(anchor)
	if err != nil {
		return err
	}
	p.emit(Instruction[int32]{Kind: Closure, Uint: nvars, Label: label})
	return nil
}

func (p *parser) decodeGetGlobal(op opcode.Opcode) error {
	idx, err := p.u32()
	if err != nil {
		return err
	}
	if op == opcode.PushGetGlobal {
		p.emit(push())
	}
	p.emit(getGlobal(idx))
	return nil
}

func (p *parser) decodeGetGlobalField(op opcode.Opcode) error {
	idx, err := p.u32()
	if err != nil {
		return err
	}
	field, err := p.u32()
	if err != nil {
		return err
	}
	if op == opcode.PushGetGlobalField {
		p.emit(push())
	}
	p.emit(getGlobal(idx))
	p.emit(getField(field))
	return nil
}

func (p *parser) decodeSwitch() error {
	header, err := p.u32()
	if err != nil {
		return err
	}
	intCount := header & 0xFFFF
	tagCount := (header >> 16) & 0xFFFF
	anchor := p.pos

	labels := make([]int32, 0, intCount+tagCount)
	for i := uint32(0); i < intCount+tagCount; i++ {
		l, err := p.label(anchor)
		if err != nil {
			return err
		}
		labels = append(labels, l)
	}
	p.emit(Instruction[int32]{Kind: Switch, Labels: labels, IntCount: intCount})
	return nil
}

func (p *parser) decodeClosureRec() error {
	nfuncs, err := p.u32()
	if err != nil {
		return err
	}
	nvars, err := p.u32()
	if err != nil {
		return err
	}
	anchor := p.pos
	labels := make([]int32, 0, nfuncs)
	for i := uint32(0); i < nfuncs; i++ {
		l, err := p.label(anchor)
		if err != nil {
			return err
		}
		labels = append(labels, l)
	}
	p.emit(Instruction[int32]{Kind: ClosureRec, Labels: labels, Uint2: nvars})
	return nil
}

func (p *parser) decodeGetPubMet() error {
	tag, err := p.i32()
	if err != nil {
		return err
	}
	if _, err := p.u32(); err != nil { // cache word, discarded per spec open question
		return err
	}
	p.emit(Instruction[int32]{Kind: SetupForPubMet, Int: tag})
	p.emit(Instruction[int32]{Kind: GetDynMet})
	return nil
}
