package runtimebridge

import "unsafe"

// DomainState mirrors the host runtime's per-domain state struct
// (`Caml_state` in spec.md §6), in the field order the original C/Rust
// runtime defines it. The baseline emitter and IR backend never allocate
// or populate this struct themselves — the host runtime owns the single
// instance and publishes its address to the JIT at entry — but they need
// its field byte offsets to emit direct loads/stores through a register
// holding the base pointer, computed here via unsafe.Offsetof rather than
// hand-maintained magic numbers.
type DomainState struct {
	YoungPtr   unsafe.Pointer
	YoungLimit unsafe.Pointer

	ExceptionPointer unsafe.Pointer

	YoungBase        unsafe.Pointer
	YoungStart       unsafe.Pointer
	YoungEnd         unsafe.Pointer
	YoungAllocStart  unsafe.Pointer
	YoungAllocEnd    unsafe.Pointer
	YoungAllocMid    unsafe.Pointer
	YoungTrigger     unsafe.Pointer
	MinorHeapWsz     uint64
	InMinorCollection int64
	ExtraHeapResourcesMinor float64
	RefTable         unsafe.Pointer
	EpheRefTable     unsafe.Pointer
	CustomTable      unsafe.Pointer

	StackLow       unsafe.Pointer
	StackHigh      unsafe.Pointer
	StackThreshold unsafe.Pointer
	ExternSP       uint64
	TrapSP         uint64
	TrapBarrier    unsafe.Pointer
	ExternalRaise  uint64
	ExnBucket      Value

	TopOfStack        unsafe.Pointer
	BottomOfStack     unsafe.Pointer
	LastReturnAddress uint64
	GCRegs            unsafe.Pointer

	BacktraceActive   int64
	BacktracePos      int64
	BacktraceBuffer   unsafe.Pointer
	BacktraceLastExn  Value

	CompareUnordered      int64
	RequestedMajorSlice   int64
	RequestedMinorGC      int64
	LocalRoots            uint64
}

// Field byte offsets within DomainState, used by the baseline emitter and
// IR backend when addressing domain-state fields relative to the
// base-pointer register (spec.md: "domain state accessors").
var (
	OffsetYoungPtr   = unsafe.Offsetof(DomainState{}.YoungPtr)
	OffsetYoungLimit = unsafe.Offsetof(DomainState{}.YoungLimit)
	OffsetExternSP   = unsafe.Offsetof(DomainState{}.ExternSP)
	OffsetTrapSP     = unsafe.Offsetof(DomainState{}.TrapSP)
	OffsetStackHigh  = unsafe.Offsetof(DomainState{}.StackHigh)
	OffsetLocalRoots = unsafe.Offsetof(DomainState{}.LocalRoots)
	OffsetExternalRaise = unsafe.Offsetof(DomainState{}.ExternalRaise)
)

// AtomTable models `caml_atom_table`: a 255-entry table of zero-sized block
// values shared by tag, indexed by Tag.
type AtomTable [255]Value

// Atom returns the shared zero-sized block value for tag.
func (t *AtomTable) Atom(tag Tag) Value { return t[tag] }
