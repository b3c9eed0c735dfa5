package emit

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/camljit/camljit/internal/closurescan"
	"github.com/camljit/camljit/internal/codearena"
	"github.com/camljit/camljit/internal/decode"
	"github.com/camljit/camljit/internal/runtimebridge"
)

// testInitialState mirrors the three fields emitEntry reads from
// initial_state_ptr (spec.md §4.D): the seed value for env, the VM stack's
// initial top, and the domain-state base pointer.
type testInitialState struct {
	atom0       uint64
	initialSP   uint64
	domainState uint64
}

// invoke compiles parsed, maps it into executable memory via codearena
// (mirroring internal/jitcore's own compile path), and actually calls the
// generated machine code as a function pointer (grounded on
// go-interpreter/wagon's backend_amd64_test.go, which invokes through its
// own native_exec.go trampoline rather than trusting the emitter output to
// merely assemble without error).
func invoke(t *testing.T, parsed []decode.Instruction[int], helpers runtimebridge.HelperAddrs) int64 {
	t.Helper()

	res, err := Compile(0, nil, parsed, nil, map[int32]closurescan.Entry{}, helpers, Options{})
	require.NoError(t, err)

	arena := &codearena.Allocator{}
	defer arena.Close()
	exec, err := arena.AllocateExec(res.Code)
	require.NoError(t, err)

	stack := make([]byte, 4096)
	var ds runtimebridge.DomainState
	state := testInitialState{
		initialSP:   uint64(uintptr(unsafe.Pointer(&stack[len(stack)-1])) + 1),
		domainState: uint64(uintptr(unsafe.Pointer(&ds))),
	}

	got := codearena.Invoke(exec, uintptr(unsafe.Pointer(&state)))
	runtime.KeepAlive(stack)
	runtime.KeepAlive(ds)
	runtime.KeepAlive(state)
	return got
}

func TestInvoke_Arithmetic(t *testing.T) {
	parsed := []decode.Instruction[int]{
		{Kind: decode.Const, Int: 5},
		{Kind: decode.Push},
		{Kind: decode.Const, Int: 3},
		{Kind: decode.ArithInt, Arith: decode.Add},
		{Kind: decode.Stop},
	}
	got := invoke(t, parsed, runtimebridge.HelperAddrs{})
	require.EqualValues(t, 8<<1|1, got)
}

func TestInvoke_IntCmp(t *testing.T) {
	gt := []decode.Instruction[int]{
		{Kind: decode.Const, Int: 3},
		{Kind: decode.Push},
		{Kind: decode.Const, Int: 5},
		{Kind: decode.IntCmp, Cmp: decode.CompGt}, // 5 > 3
		{Kind: decode.Stop},
	}
	require.EqualValues(t, 3, invoke(t, gt, runtimebridge.HelperAddrs{})) // Val_int(1): true

	lt := []decode.Instruction[int]{
		{Kind: decode.Const, Int: 3},
		{Kind: decode.Push},
		{Kind: decode.Const, Int: 5},
		{Kind: decode.IntCmp, Cmp: decode.CompLt}, // 5 < 3
		{Kind: decode.Stop},
	}
	require.EqualValues(t, 1, invoke(t, lt, runtimebridge.HelperAddrs{})) // Val_int(0): false
}

// Exercises PushTrap/Raise's local-unwind fast path (spec.md §4.D): a
// handler installed earlier in the same invocation must be reached by a
// direct jump, restoring env/extra_args from the trap frame, without ever
// calling the host's caml_raise.
func TestInvoke_PushTrapRaiseLocalUnwind(t *testing.T) {
	parsed := []decode.Instruction[int]{
		{Kind: decode.PushTrap, Label: 3}, // idx0: handler at idx3 (Stop)
		{Kind: decode.Const, Int: 1},      // idx1: accu = Val_int(1), the "raised" value
		{Kind: decode.Raise},              // idx2
		{Kind: decode.Stop},               // idx3: handler lands here
	}
	got := invoke(t, parsed, runtimebridge.HelperAddrs{})
	require.EqualValues(t, 1<<1|1, got)
}

func TestInvoke_GetDynMet(t *testing.T) {
	const methodSentinel = int64(0x4242)
	table := []int64{
		2<<1 | 1, // tagged entry count
		10<<1 | 1, methodSentinel + 100, // tag 10 -> unrelated method
		20<<1 | 1, methodSentinel, // tag 20 -> the one we search for
	}
	obj := []int64{int64(uintptr(unsafe.Pointer(&table[0])))}
	global := []int64{int64(uintptr(unsafe.Pointer(&obj[0])))}

	helpers := runtimebridge.HelperAddrs{GlobalData: uintptr(unsafe.Pointer(&global[0]))}
	parsed := []decode.Instruction[int]{
		{Kind: decode.GetGlobal, Uint: 0}, // accu = object pointer
		{Kind: decode.Push},               // sp[0] = object
		{Kind: decode.Const, Int: 20},     // accu = tagged search tag
		{Kind: decode.GetDynMet},
		{Kind: decode.Stop},
	}
	got := invoke(t, parsed, helpers)
	require.Equal(t, methodSentinel, got)
	runtime.KeepAlive(table)
	runtime.KeepAlive(obj)
	runtime.KeepAlive(global)
}
