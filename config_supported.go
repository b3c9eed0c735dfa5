// Note: the build constraint below tracks exactly what internal/emit and
// internal/ir can target: amd64 codegen on the host OSes golang-asm's
// obj/x86 package supports producing relocatable machine code for.
//go:build amd64 && (darwin || linux || windows)

package camljit

// JITSupported reports whether this build can compile bytecode to native
// code. on_bytecode_loaded checks this before honoring Options.JIT(),
// falling back to the legacy interpreter otherwise (spec.md §6).
const JITSupported = true
