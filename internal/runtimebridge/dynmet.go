package runtimebridge

import "sort"

// MethodTable is the reference (non-JIT) semantics of the polymorphic
// method-cache probe that GetDynMet performs at runtime: a block whose
// fields alternate (tag, method) pairs sorted by tag, searched by binary
// search. Emitted code does not call this type or perform this search:
// the baseline emitter's GetDynMet does a linear scan over its own packed
// (count, tag, method...) layout, and its GetMethod indexes the method
// table directly.
//
// spec.md's Open Questions note GetPubMet's cache word is discarded by the
// decoder and the visible result must match re-deriving the method on
// every call; this type is that re-derivation.
type MethodTable struct {
	Tags    []int64
	Methods []Value
}

// Lookup finds the method registered for tag, returning ok=false if no
// entry matches (a call to an unbound public method — a runtime-fatal
// condition in the host, per spec.md §7).
func (m MethodTable) Lookup(tag int64) (Value, bool) {
	i := sort.Search(len(m.Tags), func(i int) bool { return m.Tags[i] >= tag })
	if i < len(m.Tags) && m.Tags[i] == tag {
		return m.Methods[i], true
	}
	return 0, false
}

// VectorLength returns a block's wosize header field as a plain
// (untagged) integer: the element count of a VecT block, one Value per
// field. Bytes blocks need their padding byte as well; see BytesLength.
func VectorLength(h Header) int64 {
	return int64(h.Wosize())
}

// BytesLength decodes a Bytes block's header plus its last-byte padding
// count into its true byte length.
func BytesLength(h Header, lastByte byte) int64 {
	wosize := int64(h.Wosize())
	if wosize == 0 {
		return 0
	}
	return wosize*8 - 1 - int64(lastByte)
}
