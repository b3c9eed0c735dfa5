package ir

import "fmt"

// UnsupportedClosure reports a closure the IR backend declined to lower,
// naming the offending block and reason (spec.md §4.G "Failure modes":
// unsupported instruction -> structured UnsupportedClosure).
type UnsupportedClosure struct {
	BlockID int
	Reason  string
}

func (e *UnsupportedClosure) Error() string {
	return fmt.Sprintf("ir: unsupported at block %d: %s", e.BlockID, e.Reason)
}

// Error wraps a lowering or codegen panic without crashing the process
// (spec.md §4.G); CompileClosure's caller installs status -3 in the
// closure's metadata whenever this is returned.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("ir: %v", e.Cause) }
func (e *Error) Unwrap() error { return e.Cause }
