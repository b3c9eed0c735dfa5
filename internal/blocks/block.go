// Package blocks reconstructs a control-flow graph of basic blocks from a
// closure's linear decoded instruction sequence, with stack-depth
// verification (spec.md §4.F).
package blocks

import "github.com/camljit/camljit/internal/decode"

// Type classifies a block's role.
type Type uint8

const (
	Normal Type = iota
	First
	Trap
)

// Exit is the terminal control-transfer of a block. Only the fields
// relevant to Kind are populated.
type Exit struct {
	Kind ExitKind

	Then, Else int // BranchIf (normalized so the true branch is always Then)
	Target     int // Branch

	Cmp   decode.Comp // BranchCmp
	Const int32       // BranchCmp

	Ints, Tags []int // Switch block ids

	Normal, Trap int // PushTrap block ids

	Pop  uint32 // Return(npop)
	Args uint32 // TailCall
	ToPop uint32 // TailCall

	Raise decode.RaiseKind
}

type ExitKind uint8

const (
	ExitBranch ExitKind = iota
	ExitBranchIf
	ExitBranchCmp
	ExitSwitch
	ExitPushTrap
	ExitReturn
	ExitTailCall
	ExitRaise
	ExitStop
)

// Block is one maximal straight-line instruction sequence with a single
// entry and single exit.
type Block struct {
	ID              int
	Type            Type
	Predecessors    []int
	Instructions    []decode.Instruction[int32]
	Exit            Exit
	StartStackSize  int
	EndStackSize    int
	SealedBlocks    []int
}

// Closure is the block-level view of one compiled function.
type Closure struct {
	Arity          uint32
	Blocks         []*Block // reverse-post-order, entry first (id 0)
	UsedClosures   []int32  // entry offsets of closures referenced from this one
	MaxStackSize   int
	HasTrapHandlers bool
}
