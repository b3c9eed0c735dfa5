package opcode

// Shape enumerates the operand layouts an opcode can be followed by in the
// 32-bit word stream.
type Shape uint8

const (
	// ShapeNone: no operand words.
	ShapeNone Shape = iota
	// ShapeUint: one unsigned integer operand.
	ShapeUint
	// ShapeInt: one signed integer operand.
	ShapeInt
	// ShapeUintUint: two unsigned integer operands.
	ShapeUintUint
	// ShapeDisp: one label (PC-relative displacement) operand.
	ShapeDisp
	// ShapeUintDisp: an unsigned integer followed by a label.
	ShapeUintDisp
	// ShapeIntDisp: a signed integer followed by a label.
	ShapeIntDisp
	// ShapeGetGlobal: a global-table index operand.
	ShapeGetGlobal
	// ShapeGetGlobalUint: a global-table index followed by a field index.
	ShapeGetGlobalUint
	// ShapeSetGlobal: a global-table index operand (write).
	ShapeSetGlobal
	// ShapePrimitive: a primitive-table index operand.
	ShapePrimitive
	// ShapeUintPrimitive: an argument count followed by a primitive index.
	ShapeUintPrimitive
	// ShapeSwitch: a switch header word (low16=int-cases, high16=tag-cases)
	// followed by that many label words.
	ShapeSwitch
	// ShapeClosureRec: a ClosureRec header (nfuncs, nvars) followed by
	// nfuncs label words.
	ShapeClosureRec
	// ShapePubMet: a method tag followed by a (discarded) cache word.
	ShapePubMet
)

type opcodeInfo struct {
	name  string
	shape Shape
}

// metadata is indexed by Opcode; metadata[i].shape mirrors the decoder's
// description of each instruction's operand layout (spec.md §4.A/§4.B).
var metadata = [NumOpcodes]opcodeInfo{
	Acc0:                {"ACC0", ShapeNone},
	Acc1:                {"ACC1", ShapeNone},
	Acc2:                {"ACC2", ShapeNone},
	Acc3:                {"ACC3", ShapeNone},
	Acc4:                {"ACC4", ShapeNone},
	Acc5:                {"ACC5", ShapeNone},
	Acc6:                {"ACC6", ShapeNone},
	Acc7:                {"ACC7", ShapeNone},
	Acc:                 {"ACC", ShapeUint},
	Push:                {"PUSH", ShapeNone},
	PushAcc0:            {"PUSHACC0", ShapeNone},
	PushAcc1:            {"PUSHACC1", ShapeNone},
	PushAcc2:            {"PUSHACC2", ShapeNone},
	PushAcc3:            {"PUSHACC3", ShapeNone},
	PushAcc4:            {"PUSHACC4", ShapeNone},
	PushAcc5:            {"PUSHACC5", ShapeNone},
	PushAcc6:            {"PUSHACC6", ShapeNone},
	PushAcc7:            {"PUSHACC7", ShapeNone},
	PushAcc:             {"PUSHACC", ShapeUint},
	Pop:                 {"POP", ShapeUint},
	Assign:              {"ASSIGN", ShapeUint},
	EnvAcc1:             {"ENVACC1", ShapeNone},
	EnvAcc2:             {"ENVACC2", ShapeNone},
	EnvAcc3:             {"ENVACC3", ShapeNone},
	EnvAcc4:             {"ENVACC4", ShapeNone},
	EnvAcc:              {"ENVACC", ShapeUint},
	PushEnvAcc1:         {"PUSHENVACC1", ShapeNone},
	PushEnvAcc2:         {"PUSHENVACC2", ShapeNone},
	PushEnvAcc3:         {"PUSHENVACC3", ShapeNone},
	PushEnvAcc4:         {"PUSHENVACC4", ShapeNone},
	PushEnvAcc:          {"PUSHENVACC", ShapeUint},
	PushRetAddr:         {"PUSH_RETADDR", ShapeDisp},
	Apply:               {"APPLY", ShapeUint},
	Apply1:              {"APPLY1", ShapeNone},
	Apply2:              {"APPLY2", ShapeNone},
	Apply3:              {"APPLY3", ShapeNone},
	AppTerm:             {"APPTERM", ShapeUintUint},
	AppTerm1:            {"APPTERM1", ShapeUint},
	AppTerm2:            {"APPTERM2", ShapeUint},
	AppTerm3:            {"APPTERM3", ShapeUint},
	Return:              {"RETURN", ShapeUint},
	Restart:             {"RESTART", ShapeNone},
	Grab:                {"GRAB", ShapeUint},
	Closure:             {"CLOSURE", ShapeUintDisp},
	ClosureRec:          {"CLOSUREREC", ShapeClosureRec},
	OffsetClosureM2:     {"OFFSETCLOSUREM2", ShapeNone},
	OffsetClosure0:      {"OFFSETCLOSURE0", ShapeNone},
	OffsetClosure2:      {"OFFSETCLOSURE2", ShapeNone},
	OffsetClosure:       {"OFFSETCLOSURE", ShapeInt},
	PushOffsetClosureM2: {"PUSHOFFSETCLOSUREM2", ShapeNone},
	PushOffsetClosure0:  {"PUSHOFFSETCLOSURE0", ShapeNone},
	PushOffsetClosure2:  {"PUSHOFFSETCLOSURE2", ShapeNone},
	PushOffsetClosure:   {"PUSHOFFSETCLOSURE", ShapeInt},
	GetGlobal:           {"GETGLOBAL", ShapeGetGlobal},
	PushGetGlobal:       {"PUSHGETGLOBAL", ShapeGetGlobal},
	GetGlobalField:      {"GETGLOBALFIELD", ShapeGetGlobalUint},
	PushGetGlobalField:  {"PUSHGETGLOBALFIELD", ShapeGetGlobalUint},
	SetGlobal:           {"SETGLOBAL", ShapeSetGlobal},
	Atom0:               {"ATOM0", ShapeNone},
	Atom:                {"ATOM", ShapeUint},
	PushAtom0:           {"PUSHATOM0", ShapeNone},
	PushAtom:            {"PUSHATOM", ShapeUint},
	MakeBlock:           {"MAKEBLOCK", ShapeUintUint},
	MakeBlock1:          {"MAKEBLOCK1", ShapeUint},
	MakeBlock2:          {"MAKEBLOCK2", ShapeUint},
	MakeBlock3:          {"MAKEBLOCK3", ShapeUint},
	MakeFloatBlock:      {"MAKEFLOATBLOCK", ShapeUint},
	GetField0:           {"GETFIELD0", ShapeNone},
	GetField1:           {"GETFIELD1", ShapeNone},
	GetField2:           {"GETFIELD2", ShapeNone},
	GetField3:           {"GETFIELD3", ShapeNone},
	GetField:            {"GETFIELD", ShapeUint},
	GetFloatField:       {"GETFLOATFIELD", ShapeUint},
	SetField0:           {"SETFIELD0", ShapeNone},
	SetField1:           {"SETFIELD1", ShapeNone},
	SetField2:           {"SETFIELD2", ShapeNone},
	SetField3:           {"SETFIELD3", ShapeNone},
	SetField:            {"SETFIELD", ShapeUint},
	SetFloatField:       {"SETFLOATFIELD", ShapeUint},
	VecTLength:          {"VECTLENGTH", ShapeNone},
	GetVecTItem:         {"GETVECTITEM", ShapeNone},
	SetVecTItem:         {"SETVECTITEM", ShapeNone},
	GetBytesChar:        {"GETBYTESCHAR", ShapeNone},
	SetBytesChar:        {"SETBYTESCHAR", ShapeNone},
	Branch:              {"BRANCH", ShapeDisp},
	BranchIf:            {"BRANCHIF", ShapeDisp},
	BranchIfNot:         {"BRANCHIFNOT", ShapeDisp},
	Switch:              {"SWITCH", ShapeSwitch},
	BoolNot:             {"BOOLNOT", ShapeNone},
	PushTrap:            {"PUSHTRAP", ShapeDisp},
	PopTrap:             {"POPTRAP", ShapeNone},
	Raise:               {"RAISE", ShapeNone},
	CheckSignals:        {"CHECK_SIGNALS", ShapeNone},
	CCall1:              {"C_CALL1", ShapePrimitive},
	CCall2:              {"C_CALL2", ShapePrimitive},
	CCall3:              {"C_CALL3", ShapePrimitive},
	CCall4:              {"C_CALL4", ShapePrimitive},
	CCall5:              {"C_CALL5", ShapePrimitive},
	CCallN:              {"C_CALLN", ShapeUintPrimitive},
	Const0:              {"CONST0", ShapeNone},
	Const1:              {"CONST1", ShapeNone},
	Const2:              {"CONST2", ShapeNone},
	Const3:              {"CONST3", ShapeNone},
	ConstInt:            {"CONSTINT", ShapeInt},
	PushConst0:          {"PUSHCONST0", ShapeNone},
	PushConst1:          {"PUSHCONST1", ShapeNone},
	PushConst2:          {"PUSHCONST2", ShapeNone},
	PushConst3:          {"PUSHCONST3", ShapeNone},
	PushConstInt:        {"PUSHCONSTINT", ShapeInt},
	NegInt:              {"NEGINT", ShapeNone},
	AddInt:              {"ADDINT", ShapeNone},
	SubInt:              {"SUBINT", ShapeNone},
	MulInt:              {"MULINT", ShapeNone},
	DivInt:              {"DIVINT", ShapeNone},
	ModInt:              {"MODINT", ShapeNone},
	AndInt:              {"ANDINT", ShapeNone},
	OrInt:               {"ORINT", ShapeNone},
	XorInt:              {"XORINT", ShapeNone},
	LslInt:              {"LSLINT", ShapeNone},
	LsrInt:              {"LSRINT", ShapeNone},
	AsrInt:              {"ASRINT", ShapeNone},
	Eq:                  {"EQ", ShapeNone},
	Neq:                 {"NEQ", ShapeNone},
	LtInt:               {"LTINT", ShapeNone},
	LeInt:               {"LEINT", ShapeNone},
	GtInt:               {"GTINT", ShapeNone},
	GeInt:               {"GEINT", ShapeNone},
	OffsetInt:           {"OFFSETINT", ShapeInt},
	OffsetRef:           {"OFFSETREF", ShapeInt},
	IsInt:               {"ISINT", ShapeNone},
	GetMethod:           {"GETMETHOD", ShapeNone},
	BEq:                 {"BEQ", ShapeIntDisp},
	BNeq:                {"BNEQ", ShapeIntDisp},
	BLtInt:              {"BLTINT", ShapeIntDisp},
	BLeInt:              {"BLEINT", ShapeIntDisp},
	BGtInt:              {"BGTINT", ShapeIntDisp},
	BGeInt:              {"BGEINT", ShapeIntDisp},
	ULtInt:              {"ULTINT", ShapeNone},
	UGeInt:              {"UGEINT", ShapeNone},
	BULtInt:             {"BULTINT", ShapeIntDisp},
	BUGeInt:             {"BUGEINT", ShapeIntDisp},
	GetPubMet:           {"GETPUBMET", ShapePubMet},
	GetDynMet:           {"GETDYNMET", ShapeNone},
	Stop:                {"STOP", ShapeNone},
	Event:               {"EVENT", ShapeNone},
	Break:               {"BREAK", ShapeNone},
	ReRaise:             {"RERAISE", ShapeNone},
	RaiseNoTrace:        {"RAISE_NOTRACE", ShapeNone},
	GetStringChar:       {"GETSTRINGCHAR", ShapeNone},
}
