// Package emit is the baseline code generator (spec.md §4.D): a
// single-pass translator from a decoded, offset-mapped instruction
// sequence to x86-64 machine code, threading the four dedicated VM
// registers and the shared apply/return/trap/process-events stubs.
//
// Grounded on go-interpreter/wagon's exec/internal/compile backend
// (backend_amd64.go): both build a stream of *obj.Prog through a
// golang-asm *asm.Builder and call Assemble() to get the final bytes.
// Label/branch resolution follows wazero's internal/asm/golang_asm
// wrapper pattern (a NOP Prog as the label anchor, jump targets resolved
// via prog.To.SetTarget(anchor)), since wagon's own backend never branches.
package emit

import (
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// VM register convention (spec.md §4.D, System-V x86-64, callee-saved):
const (
	RegAccu      = x86.REG_R13 // accumulator
	RegEnv       = x86.REG_R12 // environment pointer
	RegExtraArgs = x86.REG_R14 // extra-arguments counter
	RegSP        = x86.REG_R15 // VM stack pointer

	// Scratch registers used freely between VM-register-carrying
	// instructions; never live across a call into the host runtime unless
	// explicitly saved.
	RegScratch0 = x86.REG_AX
	RegScratch1 = x86.REG_BX
	RegScratch2 = x86.REG_CX
	RegScratch3 = x86.REG_DX

	// RegDomainState holds the host's per-domain state base pointer
	// (runtimebridge.DomainState) for the duration of one entrypoint
	// invocation (spec.md §4.D, §4.I). BP is callee-saved in the System-V
	// ABI and otherwise unused here; R12-R15 are already the four VM
	// registers. Deliberately kept out of vmRegs: emitEntry/emitExit save
	// and restore it as its own explicit step, since it isn't one of "the
	// four VM registers" other stubs' frame-math comments count by name.
	RegDomainState = x86.REG_BP
)

// vmRegs are the four registers the entry prologue saves (pushes the
// host's incoming values) and the exit epilogue restores, in save order
// (spec.md §4.D "push the four VM registers").
var vmRegs = []int16{RegAccu, RegEnv, RegExtraArgs, RegSP}
