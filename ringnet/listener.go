// Package ringnet provides fiber-blocking TCP primitives layered on top of
// a ringloop.Runtime's io_uring reactor: Accept/Dial/Read/Write suspend the
// calling fiber (via Runtime.AwaitIO) rather than the OS thread, while
// Listen binds and listens with plain blocking syscalls. Grounded on the pack's io_uring reactor reference
// (prepareStreamSocket/prepareConnect/prepareSend/prepareRecv), generalized
// from that file's raw per-fd callback style into calls that block a fiber
// and return ordinary (n, error) results, the way the teacher's own
// FileSystem methods return plain Go values instead of taking a callback.
package ringnet

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ringloop/ringloop"
)

// Options configures a Listener.
type Options struct {
	// Backlog is the pending-connection queue depth passed to listen(2).
	Backlog int
	// ReusePort sets SO_REUSEPORT so multiple Runtimes (one per OS thread,
	// per spec.md §2's no-work-stealing scaling model) can each bind their
	// own Listener to the same port and let the kernel load-balance
	// incoming connections across them.
	ReusePort bool
}

var DefaultOptions = Options{Backlog: 128}

// Listener accepts inbound TCP connections through the Runtime's reactor.
type Listener struct {
	rt *ringloop.Runtime
	fd int
}

// Listen creates a bound, listening TCP socket on address (host:port).
// Bind and listen themselves are plain blocking syscalls — vanishingly
// cheap compared to accept/read/write, and not worth routing through
// io_uring — only Accept suspends the calling fiber.
func Listen(rt *ringloop.Runtime, address string, opts Options) (*Listener, error) {
	if opts.Backlog <= 0 {
		opts.Backlog = DefaultOptions.Backlog
	}

	addr, err := resolveTCP(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(addr.domain, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("ringnet: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ringnet: setsockopt SO_REUSEADDR: %w", err)
	}
	if opts.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("ringnet: setsockopt SO_REUSEPORT: %w", err)
		}
	}

	if err := bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ringnet: bind: %w", err)
	}
	if err := unix.Listen(fd, opts.Backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ringnet: listen: %w", err)
	}

	return &Listener{rt: rt, fd: fd}, nil
}

// Fd returns the listener's raw file descriptor, for diagnostics or
// SO_REUSEPORT follow-on sockets.
func (l *Listener) Fd() int { return l.fd }

// Close releases the listening socket through the reactor.
func (l *Listener) Close() error {
	_, err := closeFD(l.rt, l.fd)
	return err
}
