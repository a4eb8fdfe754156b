package ringloop

import "github.com/ringloop/ringloop/internal/ftable"

// cancelTree marks id and every fiber in its child scope as cancelled,
// depth-first, and wakes any of them currently blocked so they observe the
// request at their next cooperative checkpoint instead of waiting
// indefinitely.
//
// Cancelling a stale handle, or a fiber that has already finished, is a
// programming error (spec.md §3) and panics rather than silently doing
// nothing: a caller that races Cancel against a fiber it still believes is
// live has a structural bug worth surfacing, not a condition to tolerate.
// Recursion into f.children never hits either case itself — finalize
// removes a child from its parent's children set in the same step it
// transitions to Finished, so a child id can only ever appear here while
// still live.
func (rt *Runtime) cancelTree(id ftable.ID) {
	f, ok := rt.table.Get(id)
	if !ok {
		panic(&ProgrammingError{Msg: "Cancel called on a stale fiber handle"})
	}
	if f.status == statusFinished {
		panic(&ProgrammingError{Msg: "Cancel called on a fiber that has already finished"})
	}
	if f.cancelRequested {
		return // already cancelled; avoid re-walking an already-visited subtree
	}
	f.cancelRequested = true
	logger().Debug().Stringer("fiber", id).Stringer("status", f.status).Msg("cancel requested")

	switch f.status {
	case statusBlockedIO, statusBlockedJoin:
		// A blocked-join fiber wakes and its Join returns ErrCancelled; a
		// blocked-io fiber wakes and AwaitIO/AwaitMultishot return
		// ErrCancelled. The pending reactor operation is left outstanding
		// in the kernel and its eventual completion is discarded.
		rt.wake(id)
	}

	for child := range f.children {
		rt.cancelTree(child)
	}
}

// cancelled reports whether the calling fiber has an outstanding
// cancellation request. I/O and sleep primitives consult this before
// (and after) blocking so a cancelled fiber unwinds promptly instead of
// completing whatever it was waiting on.
func (rt *Runtime) cancelled() bool {
	f := rt.currentFiber()
	return f.cancelRequested
}
