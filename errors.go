package ringloop

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/ringloop/ringloop/internal/ftable"
)

// ErrCancelled is returned by a blocking operation (or surfaces from Join)
// when the fiber awaiting it was cancelled. Callers may compare against it
// with errors.Is.
var ErrCancelled = errors.New("ringloop: fiber cancelled")

// SyscallError wraps a syscall.Errno returned by a completed io_uring
// operation with the fiber and op that were waiting on it.
type SyscallError struct {
	Fiber ftable.ID
	Op    string
	Errno syscall.Errno
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("ringloop: %s (fiber %s): %s", e.Op, e.Fiber, e.Errno)
}

func (e *SyscallError) Unwrap() error {
	return e.Errno
}

// PanicError wraps a recovered panic from a fiber's entry function,
// preserving the original panic value so a joiner can re-inspect it.
type PanicError struct {
	Fiber   ftable.ID
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("ringloop: fiber %s panicked: %v", e.Fiber, e.Value)
}

// ResourceExhaustedError reports failure to acquire a scheduler resource.
// The runtime returns it when a fiber stack cannot be acquired; there is no
// retry.
type ResourceExhaustedError struct {
	Resource string
	Err      error
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("ringloop: %s exhausted: %v", e.Resource, e.Err)
}

func (e *ResourceExhaustedError) Unwrap() error {
	return e.Err
}

// ProgrammingError indicates the caller violated a runtime invariant, e.g.
// calling BlockOn re-entrantly on a thread that already has one running,
// joining or cancelling a stale handle, cancelling a finished fiber, or a
// second concurrent Join on the same handle. Unlike the
// other error types here, this always indicates a bug in the caller, not a
// recoverable runtime condition.
type ProgrammingError struct {
	Msg string
}

func (e *ProgrammingError) Error() string {
	return "ringloop: programming error: " + e.Msg
}
