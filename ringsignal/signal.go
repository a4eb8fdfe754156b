// Package ringsignal delivers OS signals to fibers through the reactor
// instead of Go's signal.Notify channel machinery, so waiting on a signal
// suspends a fiber rather than parking a whole goroutine. It blocks the
// target signals in the calling thread's signal mask and polls them via a signalfd submitted
// as an IORING_OP_READ, grounded on the teacher's own reach for
// golang.org/x/sys/unix over the standard os/signal package whenever raw
// kernel control is needed (mount_linux.go talks to the kernel directly
// through unix syscalls rather than a higher-level wrapper).
package ringsignal

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/ringloop/ringloop"
	"github.com/ringloop/ringloop/internal/reactor"
)

// Sequence polls a signalfd for a fixed set of signals, one Wait() call
// per delivered signal.
type Sequence struct {
	rt *ringloop.Runtime
	fd int
}

// Signals blocks sig in the calling OS thread's signal mask
// (pthread_sigmask) and opens a signalfd polling for them, returning a
// Sequence the calling fiber can Wait() on.
func Signals(rt *ringloop.Runtime, sig ...os.Signal) (*Sequence, error) {
	var set unix.Sigset_t
	for _, s := range sig {
		num, err := signum(s)
		if err != nil {
			return nil, err
		}
		addSignal(&set, num)
	}

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return nil, fmt.Errorf("ringsignal: sigprocmask: %w", err)
	}

	fd, err := unix.Signalfd(-1, &set, unix.SFD_CLOEXEC|unix.SFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("ringsignal: signalfd: %w", err)
	}

	return &Sequence{rt: rt, fd: fd}, nil
}

// signum extracts the raw signal number from the concrete os.Signal types
// callers actually pass (syscall.Signal, as returned by the syscall
// package's SIGINT/SIGTERM/etc. constants, or unix.Signal) — os.Signal
// itself exposes no numeric accessor.
func signum(s os.Signal) (int, error) {
	switch v := s.(type) {
	case syscall.Signal:
		return int(v), nil
	case unix.Signal:
		return int(v), nil
	default:
		return 0, fmt.Errorf("ringsignal: unsupported signal type %T", s)
	}
}

func addSignal(set *unix.Sigset_t, sig int) {
	word := (sig - 1) / 64
	bit := uint((sig - 1) % 64)
	set.Val[word] |= 1 << bit
}

// Wait suspends the calling fiber until one of the sequence's signals
// arrives, returning it as a syscall.Signal.
func (s *Sequence) Wait() (os.Signal, error) {
	var info unix.SignalfdSiginfo
	buf := (*[unsafe.Sizeof(unix.SignalfdSiginfo{})]byte)(unsafe.Pointer(&info))[:]

	res, err := s.rt.AwaitIO(reactor.OpRead, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareRead(s.fd, uintptr(unsafe.Pointer(&buf[0])), uint32(len(buf)), 0)
	})
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		errno, _ := res.Err.(syscall.Errno)
		return nil, &ringloop.SyscallError{Fiber: s.rt.CurrentFiberID(), Op: "signalfd-read", Errno: errno}
	}

	return syscall.Signal(info.Signo), nil
}

// Close releases the signalfd. It does not unblock the signals in the
// thread's signal mask; callers that want that back should restore the original
// signal mask themselves.
func (s *Sequence) Close() error {
	return unix.Close(s.fd)
}
