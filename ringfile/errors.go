package ringfile

import (
	"syscall"
	"unsafe"

	"github.com/ringloop/ringloop"
)

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

func ptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
