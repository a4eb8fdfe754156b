package ringnet

import (
	"fmt"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/ringloop/ringloop"
	"github.com/ringloop/ringloop/internal/reactor"
)

// Dial opens a TCP connection to address, suspending the calling fiber
// (via the reactor's IORING_OP_CONNECT) rather than the OS thread while
// the three-way handshake completes.
func Dial(rt *ringloop.Runtime, address string) (*Conn, error) {
	addr, err := resolveTCP(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(addr.domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("ringnet: socket: %w", err)
	}

	res, err := rt.AwaitIO(reactor.OpConnect, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareConnect(fd, uintptr(addr.ptr), uint64(addr.len))
	})
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if res.Err != nil {
		unix.Close(fd)
		return nil, asSyscallError(rt, "connect", res.Err)
	}

	return &Conn{rt: rt, fd: fd}, nil
}
