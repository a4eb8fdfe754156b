package ringnet

import (
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/ringloop/ringloop"
	"github.com/ringloop/ringloop/internal/reactor"
)

func bind(fd int, addr *resolvedAddr) error {
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd), uintptr(addr.ptr), uintptr(addr.len))
	if errno != 0 {
		return errno
	}
	return nil
}

// asSyscallError wraps a reactor completion's negative errno into a
// *ringloop.SyscallError tagged with the current fiber and op name.
func asSyscallError(rt *ringloop.Runtime, op string, err error) error {
	if err == nil {
		return nil
	}
	errno, ok := err.(syscall.Errno)
	if !ok {
		return err
	}
	return &ringloop.SyscallError{Fiber: rt.CurrentFiberID(), Op: op, Errno: errno}
}

func closeFD(rt *ringloop.Runtime, fd int) (int, error) {
	res, err := rt.AwaitIO(reactor.OpClose, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareClose(fd)
	})
	if err != nil {
		return 0, err
	}
	return int(res.Res), asSyscallError(rt, "close", res.Err)
}

// ptrOf is a small readability helper for turning a byte slice's backing
// array into the uintptr giouring's PrepareX calls want.
func ptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
