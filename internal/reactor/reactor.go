// Package reactor wraps an io_uring ring (github.com/pawelgaczynski/giouring)
// into the single completion-routing primitive the scheduler needs: submit
// an operation tagged with a fiber's ftable.ID, and later be told which
// fiber to wake with which result. Grounded directly on the pending/submit/
// flushCompletions loop shape of the pack's io_uring reactor reference
// (a hand-rolled event loop keying completions by UserData, deferring
// PrepareX calls to a pending slice when GetSQE returns nil), generalized
// here from ad hoc per-op callbacks to a single cookie-addressed waiter
// table shared with the rest of the runtime.
package reactor

import (
	"fmt"
	"syscall"
	"time"

	"github.com/pawelgaczynski/giouring"

	"github.com/ringloop/ringloop/internal/ftable"
)

// Op names the kind of an operation. It is stored in the waiter entry and
// ORed into the low byte of a cookie before the sequence counter is mixed
// in (see cookie).
type Op uint8

const (
	OpUnknown Op = iota
	OpRead
	OpWrite
	OpAccept
	OpConnect
	OpSend
	OpRecv
	OpClose
	OpShutdown
	OpTimeout
	OpLinkTimeout
	OpCancel
	OpPollAdd
	OpFsync
)

// Result is what a completed operation hands back to its waiter.
type Result struct {
	Res   int32
	Flags uint32
	Err   error
}

// Prepare receives a freshly fetched SQE to fill in with PrepareX and any
// flags the caller needs (e.g. provided-buffer selection).
type Prepare func(sqe *giouring.SubmissionQueueEntry)

type pendingSubmit struct {
	prepare Prepare
}

type waiter struct {
	id     ftable.ID
	op     Op
	notify func(Result)
	multi  bool
}

// Reactor owns one io_uring instance and the cookie -> waiter correlation
// table. It is driven entirely from the single scheduler thread: no
// locking, no atomics, matching spec.md §5's single-threaded model.
type Reactor struct {
	ring *giouring.Ring

	waiters map[uint64]waiter
	nextSeq uint64 // disambiguates cookies that share a fiber ID (multiple concurrent ops per fiber)

	pending []pendingSubmit

	cqeBatch []*giouring.CompletionQueueEvent
}

// Options configures ring construction.
type Options struct {
	// Entries sizes the submission/completion queues. Rounded up to a power
	// of two by the kernel.
	Entries uint32
	// CQEBatch bounds how many completions are drained per PeekBatchCQE
	// call.
	CQEBatch int
}

var DefaultOptions = Options{Entries: 1024, CQEBatch: 256}

// New creates a Reactor backed by a fresh io_uring instance.
func New(opts Options) (*Reactor, error) {
	if opts.Entries == 0 {
		opts.Entries = DefaultOptions.Entries
	}
	if opts.CQEBatch == 0 {
		opts.CQEBatch = DefaultOptions.CQEBatch
	}
	ring, err := giouring.CreateRing(opts.Entries)
	if err != nil {
		return nil, fmt.Errorf("reactor: create ring: %w", err)
	}
	return &Reactor{
		ring:     ring,
		waiters:  make(map[uint64]waiter),
		cqeBatch: make([]*giouring.CompletionQueueEvent, opts.CQEBatch),
	}, nil
}

// Close tears down the ring. Call once block_on has drained every
// outstanding operation.
func (r *Reactor) Close() {
	r.ring.QueueExit()
}

// cookie packs a fiber ID and op tag into the 64-bit SQE user_data, then
// XORs in a sequence counter shifted left by one so a fiber with two
// in-flight ops gets distinct cookies. The XOR overwrites the op tag bits
// from the first call and the generation bits once the counter passes 127,
// so the op tag and generation are not reliably recoverable from a cookie;
// completions are routed only by looking the exact cookie up in waiters.
func (r *Reactor) cookie(id ftable.ID, op Op) uint64 {
	r.nextSeq++
	base := id.Pack() | uint64(op)
	return base ^ (r.nextSeq << 1)
}

// Submit queues one operation for fiber id. prepare fills in the SQE;
// notify is called (possibly more than once, if multi is set — e.g. a
// multishot accept or recv) with each completion's result. Submit never
// blocks; if the submission queue is momentarily full the operation is
// buffered and retried on the next Poll, mirroring the pack reactor's
// pending-slice fallback.
func (r *Reactor) Submit(id ftable.ID, op Op, multi bool, prepare Prepare, notify func(Result)) {
	cookie := r.cookie(id, op)
	r.waiters[cookie] = waiter{id: id, op: op, notify: notify, multi: multi}

	wrapped := func(sqe *giouring.SubmissionQueueEntry) {
		prepare(sqe)
		sqe.UserData = cookie
	}

	sqe := r.ring.GetSQE()
	if sqe == nil {
		r.pending = append(r.pending, pendingSubmit{prepare: wrapped})
		return
	}
	wrapped(sqe)
}

// CancelFd issues an ASYNC_CANCEL against fd's outstanding operations,
// used when a cancelled fiber has I/O in flight that must be interrupted
// rather than waited out (spec.md §4.6: "cancellation uses
// IORING_OP_ASYNC_CANCEL to unblock in-flight syscalls").
func (r *Reactor) CancelFd(fd int, notify func(Result)) {
	r.Submit(ftable.NoID, OpCancel, false, func(sqe *giouring.SubmissionQueueEntry) {
		sqe.PrepareCancelFd(fd, 0)
	}, notify)
}

func (r *Reactor) drainPending() {
	if len(r.pending) == 0 {
		return
	}
	n := 0
	for _, p := range r.pending {
		sqe := r.ring.GetSQE()
		if sqe == nil {
			break
		}
		p.prepare(sqe)
		n++
	}
	if n == len(r.pending) {
		r.pending = nil
	} else {
		r.pending = r.pending[n:]
	}
}

// Poll submits everything queued so far and waits up to timeout for at
// least one completion, then dispatches every completion currently
// available. A nil timeout blocks until something completes; a zero
// duration submits and returns immediately without waiting.
//
// Poll returns the number of completions dispatched.
func (r *Reactor) Poll(timeout *time.Duration) (int, error) {
	r.drainPending()

	var ts *syscall.Timespec
	if timeout != nil {
		t := syscall.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	waitNr := uint32(1)
	if timeout != nil && *timeout == 0 {
		waitNr = 0
	}

	if _, err := r.ring.SubmitAndWait(0); err != nil && !temporary(err) {
		return 0, fmt.Errorf("reactor: submit: %w", err)
	}
	if waitNr > 0 {
		if _, err := r.ring.WaitCQEs(waitNr, ts, nil); err != nil && !temporary(err) {
			return 0, fmt.Errorf("reactor: wait: %w", err)
		}
	}

	return r.dispatch(), nil
}

func (r *Reactor) dispatch() int {
	dispatched := 0
	for {
		peeked := r.ring.PeekBatchCQE(r.cqeBatch)
		for _, cqe := range r.cqeBatch[:peeked] {
			r.handleCompletion(cqe)
			dispatched++
		}
		r.ring.CQAdvance(peeked)
		if peeked < uint32(len(r.cqeBatch)) {
			break
		}
	}
	return dispatched
}

func (r *Reactor) handleCompletion(cqe *giouring.CompletionQueueEvent) {
	w, ok := r.waiters[cqe.UserData]
	if !ok {
		return
	}
	more := cqe.Flags&giouring.CQEFMore != 0
	if !more {
		delete(r.waiters, cqe.UserData)
	}

	res := Result{Res: cqe.Res, Flags: cqe.Flags}
	if cqe.Res < 0 {
		res.Err = syscall.Errno(-cqe.Res)
	}
	w.notify(res)
}

// Pending reports how many operations are awaiting completion, including
// ones still buffered locally because the SQ was full. The scheduler uses
// this to decide whether block_on still has outstanding work to wait on
// when the ready queue has gone empty.
func (r *Reactor) Pending() int {
	return len(r.waiters)
}

func temporary(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EINTR || errno == syscall.EAGAIN || errno == syscall.ETIME
}
