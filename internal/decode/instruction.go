// Package decode turns a stream of 32-bit bytecode words into a typed,
// desugared instruction sequence plus a bidirectional offset map, per the
// Zinc/ZAM2 decoder contract.
package decode

// ArithOp is the operand of ArithInt.
type ArithOp uint8

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
	And
	Or
	Xor
	Lsl
	Lsr
	Asr
)

// Comp is the operand of IntCmp and BranchCmp.
type Comp uint8

const (
	CompEq Comp = iota
	CompNe
	CompLt
	CompLe
	CompGt
	CompGe
	CompULt
	CompUGe
)

// RaiseKind is the operand of Raise.
type RaiseKind uint8

const (
	RaiseRegular RaiseKind = iota
	RaiseReRaise
	RaiseNoTrace
)

// Kind identifies which decoded/desugared operation an Instruction carries.
// Short forms (Acc0, PushAcc3, GetField1, ...) are normalized away by the
// decoder into their general counterparts with an explicit immediate, so
// Kind only ever takes one of these values, never a raw opcode.Opcode.
type Kind uint8

const (
	LabelDef Kind = iota
	Acc
	EnvAcc
	Push
	Pop
	Assign
	PushRetAddr
	Apply1
	Apply2
	Apply3
	Apply
	ApplyTerm
	Return
	Restart
	Grab
	Closure
	ClosureRec
	OffsetClosure
	GetGlobal
	SetGlobal
	Const
	MakeBlock
	MakeFloatBlock
	GetField
	SetField
	GetFloatField
	SetFloatField
	VecTLength
	GetVecTItem
	SetVecTItem
	GetBytesChar
	SetBytesChar
	Branch
	BranchIf
	BranchIfNot
	Switch
	BoolNot
	PushTrap
	PopTrap
	Raise
	CheckSignals
	CCall
	ArithInt
	NegInt
	IntCmp
	BranchCmp
	OffsetInt
	OffsetRef
	IsInt
	GetMethod
	SetupForPubMet
	GetDynMet
	Stop
	Break
	Event
)

// Instruction is a single decoded/desugared operation. It is generic over
// its label representation L: raw decoding produces Instruction[int32] with L
// holding an absolute word offset into the source stream; relocation passes
// (§4.F) rewrite L to a parsed-instruction index or a basic-block id.
//
// Only the fields relevant to Kind are populated; the rest are left zero.
// This mirrors the source decoder's tagged-sum Instruction<L>, represented
// here as a single struct since Go has no sum types.
type Instruction[L any] struct {
	Kind Kind

	Uint   uint32 // Acc, EnvAcc, Pop, Assign, Apply, ApplyTerm n, Return, Grab,
	// Closure nvars, GetGlobal, SetGlobal, MakeBlock size, MakeFloatBlock,
	// GetField, SetField, GetFloatField, SetFloatField, CCall nargs
	Uint2 uint32 // ApplyTerm slot size, CCall primitive id, ClosureRec nvars
	Int   int32  // OffsetClosure, Const, OffsetInt, OffsetRef, SetupForPubMet, BranchCmp immediate
	Tag   uint8  // MakeBlock tag

	Label  L   // PushRetAddr, Closure, Branch, BranchIf, BranchIfNot, BranchCmp, PushTrap, LabelDef
	Labels []L // ClosureRec function labels, Switch ints then tags (split via IntCount)

	IntCount uint32 // Switch: number of leading Labels entries that are int-cases

	Arith ArithOp
	Cmp   Comp
	Raise RaiseKind
}

// MapLabels returns a copy of in with every label converted via f.
func MapLabels[L1, L2 any](in Instruction[L1], f func(L1) L2) Instruction[L2] {
	out := Instruction[L2]{
		Kind: in.Kind, Uint: in.Uint, Uint2: in.Uint2, Int: in.Int, Tag: in.Tag,
		IntCount: in.IntCount, Arith: in.Arith, Cmp: in.Cmp, Raise: in.Raise,
	}
	switch in.Kind {
	case LabelDef, PushRetAddr, Closure, Branch, BranchIf, BranchIfNot, BranchCmp, PushTrap:
		out.Label = f(in.Label)
	case ClosureRec, Switch:
		out.Labels = make([]L2, len(in.Labels))
		for i, l := range in.Labels {
			out.Labels[i] = f(l)
		}
	}
	return out
}
