package codearena

import "unsafe"

// callEntry calls into code (the first byte of a previously AllocateExec'd
// slice) as a System-V amd64 function of one pointer argument, returning
// its RAX result. Implemented in invoke_amd64.s: a func-pointer cast alone
// is not enough here, since Go itself never calls through an arbitrary raw
// code address this way (go-interpreter/wagon's own native_exec.go goes
// through an equivalent hand-written jitcall assembly stub rather than a
// cast, for the same reason).
func callEntry(code unsafe.Pointer, arg uintptr) int64

// Invoke calls code (as produced by AllocateExec) as a camljit entrypoint
// function, passing arg in RDI (the initial_state_ptr argument emit's
// emitEntry expects) and returning accu's tagged value from RAX.
func Invoke(code []byte, arg uintptr) int64 {
	return callEntry(unsafe.Pointer(&code[0]), arg)
}
