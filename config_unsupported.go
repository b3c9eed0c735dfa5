//go:build !amd64 || !(darwin || linux || windows)

package camljit

// JITSupported is false on architectures/OSes the baseline emitter does
// not target; on_bytecode_loaded always falls back to the legacy
// interpreter on such builds regardless of Options.JIT().
const JITSupported = false
