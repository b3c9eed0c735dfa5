package emit

import (
	"github.com/camljit/camljit/internal/u32"
	"github.com/camljit/camljit/internal/u64"
)

// Status sentinels for a closure's metadata record (spec.md §3
// ClosureMetadata, §4.D "status semantics").
const (
	StatusRestart          int64 = -1 // restart sentinel: never optimize
	StatusOptimized        int64 = -2 // already optimized
	StatusOptimizeFailed   int64 = -3 // optimization failed, do not retry
)

// MetadataSize is the fixed, pointer-aligned size in bytes of one
// ClosureMetadata record (spec.md §3).
const MetadataSize = 32

// Metadata is the 32-byte record kept for every closure entry point
// (spec.md §3 ClosureMetadata, §4.D "Per-closure metadata table"). Compile
// returns these records in Result.Metadata, keyed by bytecode entry offset;
// it does not write them into the executable buffer, and Bytes is the only
// serialization of one.
type Metadata struct {
	Status              int64
	CodeAddr            uint64
	Section             uint32
	BytecodeOffset      uint32
	RequiredExtraArgs   uint64
}

// Bytes serializes m in the field order spec.md §3 defines.
func (m Metadata) Bytes() [MetadataSize]byte {
	var out [MetadataSize]byte
	copy(out[0:8], u64.LeBytes(uint64(m.Status)))
	copy(out[8:16], u64.LeBytes(m.CodeAddr))
	copy(out[16:20], u32.LeBytes(m.Section))
	copy(out[20:24], u32.LeBytes(m.BytecodeOffset))
	copy(out[24:32], u64.LeBytes(m.RequiredExtraArgs))
	return out
}
