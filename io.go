package ringloop

import (
	"github.com/ringloop/ringloop/internal/ftable"
	"github.com/ringloop/ringloop/internal/reactor"
)

// CurrentFiberID returns the identity of the fiber currently running on
// this Runtime. Domain packages (ringnet, ringfile, ringsignal) use it to
// tag the errors they return.
func (rt *Runtime) CurrentFiberID() ftable.ID {
	return rt.currentFiber().id
}

// AwaitIO submits one io_uring operation tagged with op (for diagnostics
// and cookie encoding) and blocks the calling fiber until it completes,
// returning the raw completion. It returns ErrCancelled without waiting
// further if the fiber is cancelled, either before submission or while
// blocked — the underlying kernel operation is left outstanding and its
// eventual completion is discarded when it arrives.
//
// This is the single chokepoint every blocking call in ringnet, ringfile,
// and ringsignal funnels through; it is exported so those packages, living
// outside this one, can reach the scheduler without reimplementing the
// block/wake dance themselves.
func (rt *Runtime) AwaitIO(op reactor.Op, prepare reactor.Prepare) (reactor.Result, error) {
	f := rt.currentFiber()
	if f.cancelRequested {
		return reactor.Result{}, ErrCancelled
	}

	var res reactor.Result
	done := false
	rt.reactor.Submit(f.id, op, false, prepare, func(r reactor.Result) {
		res = r
		done = true
		rt.wake(f.id)
	})

	for !done && !f.cancelRequested {
		f.status = statusBlockedIO
		rt.switchToScheduler(f)
	}

	if !done {
		return reactor.Result{}, ErrCancelled
	}
	return res, nil
}

// AwaitMultishot is like AwaitIO but for multishot operations (e.g. a
// multishot accept or recv) that deliver more than one completion from a
// single submission. onResult is invoked for each completion; it returns
// false to stop waiting (the operation itself may still be live in the
// kernel — callers that need to fully tear it down should follow up with a
// cancel).
func (rt *Runtime) AwaitMultishot(op reactor.Op, prepare reactor.Prepare, onResult func(reactor.Result) (keepGoing bool)) error {
	f := rt.currentFiber()
	if f.cancelRequested {
		return ErrCancelled
	}

	stop := false
	rt.reactor.Submit(f.id, op, true, prepare, func(r reactor.Result) {
		if stop {
			return
		}
		if !onResult(r) {
			stop = true
		}
		rt.wake(f.id)
	})

	for !stop && !f.cancelRequested {
		f.status = statusBlockedIO
		rt.switchToScheduler(f)
	}

	if f.cancelRequested && !stop {
		return ErrCancelled
	}
	return nil
}
