package ringnet

import (
	"fmt"
	"net"
	"os"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/ringloop/ringloop"
	"github.com/ringloop/ringloop/internal/reactor"
)

// Conn is a connected TCP socket whose Read/Write suspend the calling
// fiber via the runtime's reactor instead of blocking the OS thread.
type Conn struct {
	rt *ringloop.Runtime
	fd int
}

// Accept waits for and returns the next inbound connection.
func (l *Listener) Accept() (*Conn, error) {
	res, err := l.rt.AwaitIO(reactor.OpAccept, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareAccept(l.fd, 0, 0, 0)
	})
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, asSyscallError(l.rt, "accept", res.Err)
	}
	return &Conn{rt: l.rt, fd: int(res.Res)}, nil
}

// Fd returns the connection's raw file descriptor.
func (c *Conn) Fd() int { return c.fd }

// Read reads into buf, returning the number of bytes read. It blocks the
// calling fiber, never the OS thread, via IORING_OP_RECV.
func (c *Conn) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	res, err := c.rt.AwaitIO(reactor.OpRecv, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareRecv(c.fd, ptrOf(buf), uint32(len(buf)), 0)
	})
	if err != nil {
		return 0, err
	}
	if res.Err != nil {
		return 0, asSyscallError(c.rt, "recv", res.Err)
	}
	return int(res.Res), nil
}

// Write writes all of buf, looping over IORING_OP_SEND completions for
// short writes the same way a stream-oriented net.Conn.Write would.
func (c *Conn) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		res, err := c.rt.AwaitIO(reactor.OpSend, func(sqe *giouring.SubmissionQueueEntry) {
			sqe.PrepareSend(c.fd, ptrOf(buf[total:]), uint32(len(buf)-total), 0)
		})
		if err != nil {
			return total, err
		}
		if res.Err != nil {
			return total, asSyscallError(c.rt, "send", res.Err)
		}
		if res.Res == 0 {
			return total, fmt.Errorf("ringnet: connection closed mid-write")
		}
		total += int(res.Res)
	}
	return total, nil
}

// Shutdown half- or fully closes the connection (how is SHUT_RD, SHUT_WR,
// or SHUT_RDWR) without releasing the file descriptor.
func (c *Conn) Shutdown(how int) error {
	res, err := c.rt.AwaitIO(reactor.OpShutdown, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareShutdown(c.fd, how)
	})
	if err != nil {
		return err
	}
	return asSyscallError(c.rt, "shutdown", res.Err)
}

// Close releases the connection's file descriptor through the reactor.
func (c *Conn) Close() error {
	_, err := closeFD(c.rt, c.fd)
	return err
}

// SetTOS sets the IPv4 type-of-service byte on the connection. It briefly
// wraps the (duplicated) fd in a net.Conn to reach golang.org/x/net/ipv4's
// control-option surface, then discards that wrapper — the duplicate fd it
// owns is closed with it, the original fd driving Read/Write is untouched.
func (c *Conn) SetTOS(tos int) error {
	dupFd, err := unix.Dup(c.fd)
	if err != nil {
		return fmt.Errorf("ringnet: dup fd for TOS: %w", err)
	}
	f := os.NewFile(uintptr(dupFd), "ringnet-conn")
	defer f.Close() // closes only the dup, not c.fd

	nc, err := net.FileConn(f)
	if err != nil {
		return fmt.Errorf("ringnet: wrap fd for TOS: %w", err)
	}
	defer nc.Close()

	return ipv4.NewConn(nc).SetTOS(tos)
}
