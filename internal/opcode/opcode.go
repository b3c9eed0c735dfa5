// Package opcode defines the fixed numeric opcode space of the Zinc/ZAM2
// bytecode instruction set: the mapping from a raw byte value to its
// symbolic name and operand shape.
package opcode

// Opcode is one of the 149 numeric instruction tags. The zero value is a
// valid opcode (Acc0), so callers must use FromInt32 rather than comparing
// against the zero value to detect "no opcode".
type Opcode uint8

// NumOpcodes is the size of the dense opcode space, 0..NumOpcodes-1.
const NumOpcodes = 149

const (
	Acc0 Opcode = iota
	Acc1
	Acc2
	Acc3
	Acc4
	Acc5
	Acc6
	Acc7
	Acc
	Push
	PushAcc0
	PushAcc1
	PushAcc2
	PushAcc3
	PushAcc4
	PushAcc5
	PushAcc6
	PushAcc7
	PushAcc
	Pop
	Assign
	EnvAcc1
	EnvAcc2
	EnvAcc3
	EnvAcc4
	EnvAcc
	PushEnvAcc1
	PushEnvAcc2
	PushEnvAcc3
	PushEnvAcc4
	PushEnvAcc
	PushRetAddr
	Apply
	Apply1
	Apply2
	Apply3
	AppTerm
	AppTerm1
	AppTerm2
	AppTerm3
	Return
	Restart
	Grab
	Closure
	ClosureRec
	OffsetClosureM2
	OffsetClosure0
	OffsetClosure2
	OffsetClosure
	PushOffsetClosureM2
	PushOffsetClosure0
	PushOffsetClosure2
	PushOffsetClosure
	GetGlobal
	PushGetGlobal
	GetGlobalField
	PushGetGlobalField
	SetGlobal
	Atom0
	Atom
	PushAtom0
	PushAtom
	MakeBlock
	MakeBlock1
	MakeBlock2
	MakeBlock3
	MakeFloatBlock
	GetField0
	GetField1
	GetField2
	GetField3
	GetField
	GetFloatField
	SetField0
	SetField1
	SetField2
	SetField3
	SetField
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
	CCall1
	CCall2
	CCall3
	CCall4
	CCall5
	CCallN
	Const0
	Const1
	Const2
	Const3
	ConstInt
	PushConst0
	PushConst1
	PushConst2
	PushConst3
	PushConstInt
	NegInt
	AddInt
	SubInt
	MulInt
	DivInt
	ModInt
	AndInt
	OrInt
	XorInt
	LslInt
	LsrInt
	AsrInt
	Eq
	Neq
	LtInt
	LeInt
	GtInt
	GeInt
	OffsetInt
	OffsetRef
	IsInt
	GetMethod
	BEq
	BNeq
	BLtInt
	BLeInt
	BGtInt
	BGeInt
	ULtInt
	UGeInt
	BULtInt
	BUGeInt
	GetPubMet
	GetDynMet
	Stop
	Event
	Break
	ReRaise
	RaiseNoTrace
	GetStringChar
)

// FromInt32 looks up the opcode for v, returning ok=false if v is outside
// the dense 0..NumOpcodes range.
func FromInt32(v int32) (op Opcode, ok bool) {
	if v < 0 || v >= NumOpcodes {
		return 0, false
	}
	return Opcode(v), true
}

// Name returns the opcode's static symbolic name (e.g. "PUSHACC3").
func (o Opcode) Name() string {
	if int(o) >= len(metadata) {
		return "INVALID"
	}
	return metadata[o].name
}

// Shape returns the operand layout that follows this opcode in the word
// stream.
func (o Opcode) Shape() Shape {
	if int(o) >= len(metadata) {
		return ShapeNone
	}
	return metadata[o].shape
}

func (o Opcode) String() string { return o.Name() }
