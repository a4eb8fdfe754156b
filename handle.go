package ringloop

import (
	"github.com/ringloop/ringloop/internal/ftable"
)

// FiberHandle is a weak reference to a spawned fiber: a (slot, generation)
// pair that never resolves to an unrelated, later fiber once its original
// slot has been recycled. Using a handle after that point — joining it
// twice, or cancelling a fiber that has already finished — is a programming
// error, not an ordinary runtime condition, and panics rather than
// returning a sentinel error.
type FiberHandle struct {
	rt *Runtime
	id ftable.ID
}

// ID returns the handle's stable fiber identifier.
func (h *FiberHandle) ID() ftable.ID {
	return h.id
}

// Spawn starts fn as a child fiber of the calling fiber, returning
// immediately with a handle to it. fn runs on its own stack and is first
// scheduled the next time the ready queue is serviced; it never runs
// synchronously inside the call to Spawn.
func (rt *Runtime) Spawn(fn func(*Runtime) (any, error)) *FiberHandle {
	parent := rt.current
	id, err := rt.spawn(parent, func() (any, error) {
		return fn(rt)
	})
	if err != nil {
		panic(err)
	}
	return &FiberHandle{rt: rt, id: id}
}

// Join blocks the calling fiber until h's fiber has finished, then returns
// its result (or error, including a wrapped panic via *PanicError, or
// ErrCancelled if the calling fiber itself was cancelled while waiting).
//
// A FiberHandle may be joined at most once, by at most one waiting fiber at
// a time (spec.md §3). Joining a handle that is already stale — because it
// was already joined before, or never referred to a live fiber — is a
// programming error in the caller and panics with *ProgrammingError rather
// than returning an error value, as is a second, concurrent Join while one
// is already waiting.
func (h *FiberHandle) Join() (any, error) {
	rt := h.rt
	f, ok := rt.table.Get(h.id)
	if !ok {
		panic(&ProgrammingError{Msg: "Join called on a stale fiber handle"})
	}

	for f.status != statusFinished {
		if f.joiner != nil {
			panic(&ProgrammingError{Msg: "fiber already has a joiner waiting (at most one joiner is permitted)"})
		}

		waiter := rt.currentFiber()
		id := waiter.id
		f.joiner = &id
		waiter.status = statusBlockedJoin
		rt.switchToScheduler(waiter)
		f.joiner = nil

		if waiter.cancelRequested {
			return nil, ErrCancelled
		}

		f, ok = rt.table.Get(h.id)
		if !ok {
			panic(&ProgrammingError{Msg: "fiber vanished from the table while a joiner was waiting on it"})
		}
	}

	result, err := f.result, f.err
	rt.table.Remove(h.id)
	return result, err
}

// Cancel requests cancellation of h's fiber and, recursively, every fiber
// in its child scope (spec.md §2: cancellation propagates to descendants).
// Cancellation is cooperative: a running or ready fiber observes it the
// next time it calls YieldNow, Sleep, or an I/O primitive, all of which
// return ErrCancelled instead of blocking further.
func (h *FiberHandle) Cancel() {
	h.rt.cancelTree(h.id)
}
