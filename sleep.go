package ringloop

import (
	"syscall"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/ringloop/ringloop/internal/reactor"
)

// Sleep suspends the calling fiber for at least d, using an io_uring
// IORING_OP_TIMEOUT so the OS thread itself is never blocked — other ready
// fibers keep running and I/O keeps draining while this fiber waits.
//
// Sleep returns ErrCancelled immediately if the fiber is cancelled while
// waiting; the underlying timeout SQE is left to fire and is harmlessly
// ignored (its cookie's waiter entry is dropped once delivered).
func (rt *Runtime) Sleep(d time.Duration) error {
	if d <= 0 {
		return rt.YieldNow()
	}

	ts := syscall.NsecToTimespec(d.Nanoseconds())
	_, err := rt.AwaitIO(reactor.OpTimeout, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareTimeout(&ts, 0, 0)
	})
	return err
}
