package runtimebridge

// HelperAddrs holds the resolved addresses of the host runtime helpers that
// emitted code calls into directly (spec.md §6 "Host primitives consumed").
// The host runtime supplies these once at on_startup; nothing in this
// module ever calls them as Go functions — the baseline emitter and IR
// backend encode them as direct-call targets in generated machine code.
type HelperAddrs struct {
	AllocSmallDispatch    uintptr // caml_alloc_small_dispatch
	AllocShr              uintptr // caml_alloc_shr
	Initialize            uintptr // caml_initialize
	Modify                uintptr // caml_modify (write barrier)
	Raise                 uintptr // caml_raise
	RaiseZeroDivide       uintptr // caml_raise_zero_divide
	FatalError            uintptr // caml_fatal_error
	ProcessPendingActions uintptr // caml_process_pending_actions
	PrimTable             uintptr // caml_prim_table base address
	GlobalData            uintptr // caml_global_data root block
	AtomTable             uintptr // caml_atom_table base address
	SomethingToDo         uintptr // caml_something_to_do signal flag

	// PromoteClosure is a host-supplied trampoline the apply stub calls,
	// passing the triggering closure's metadata pointer, once a closure's
	// call count crosses hot_threshold (spec.md §5 "Hot-tier promotion").
	// It is resolved independently of Resolved()'s set: a host that never
	// wires it simply never sees promotion attempted, since the apply stub
	// skips the call when this is zero (see internal/emit/stubs.go).
	PromoteClosure uintptr

	// BuildPartialClosure is a host-supplied allocator Grab's insufficient-
	// args path calls to build a partial-application closure (spec.md
	// §4.D "re-grab"): given (resume_addr, env, args_base, arg_count), it
	// allocates a heap block capturing the arg_count words already sitting
	// on the VM stack at args_base, stamps its metadata pointer at the
	// shared per-section restart sentinel (status StatusRestart), and
	// returns the new closure's address in RAX. Resolved independently of
	// Resolved()'s set, like PromoteClosure: a host that never wires it
	// simply never sees partial application handled (see
	// internal/emit/instructions.go's Grab case).
	BuildPartialClosure uintptr
}

// Resolved reports whether every helper address the baseline emitter
// depends on has been supplied by the host. The IR backend additionally
// requires PrimTable entries to be resolvable per call site; that check is
// per-primitive (see PrimitiveAddr) since not every closure uses every id.
func (h HelperAddrs) Resolved() bool {
	return h.AllocSmallDispatch != 0 && h.AllocShr != 0 && h.Initialize != 0 &&
		h.Modify != 0 && h.Raise != 0 && h.RaiseZeroDivide != 0 &&
		h.FatalError != 0 && h.ProcessPendingActions != 0 &&
		h.PrimTable != 0 && h.GlobalData != 0 && h.AtomTable != 0 &&
		h.SomethingToDo != 0
}

// PrimitiveAddr returns the address of the index-th entry of
// caml_prim_table, the table CCall*'s immediate operand indexes into
// (spec.md §6). Each entry is one pointer-width slot.
func PrimitiveAddr(primTableBase uintptr, index uint32) uintptr {
	return primTableBase + uintptr(index)*8
}
