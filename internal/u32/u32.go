// Package u32 provides little-endian byte conversions for uint32, used when
// writing 32-bit fields into the executable buffer and artifact files.
package u32

// LeBytes returns v encoded as 4 little-endian bytes.
func LeBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
