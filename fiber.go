package ringloop

import (
	"github.com/ringloop/ringloop/internal/fcontext"
	"github.com/ringloop/ringloop/internal/ftable"
	"github.com/ringloop/ringloop/internal/stack"
)

// status tracks where a fiber sits in its lifecycle. Grounded on the
// teacher's request-lifecycle bookkeeping in connection.go (a request is
// either awaiting a kernel read, dispatched to a handler, or replied to);
// generalized to the fiber scheduler's richer state set, including the
// structured-concurrency "draining" state a fiber passes through while its
// children are still alive.
type status int

const (
	statusReady status = iota
	statusRunning
	statusBlockedIO
	statusBlockedJoin
	statusDraining
	statusFinished
)

func (s status) String() string {
	switch s {
	case statusReady:
		return "ready"
	case statusRunning:
		return "running"
	case statusBlockedIO:
		return "blocked-io"
	case statusBlockedJoin:
		return "blocked-join"
	case statusDraining:
		return "draining"
	case statusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// fiber is the scheduler's internal record for one stackful coroutine.
type fiber struct {
	id     ftable.ID
	parent ftable.ID

	stack *stack.Stack
	ctx   *fcontext.Context

	status status

	// children is the set of this fiber's not-yet-finished direct
	// children, enforcing the structured-concurrency invariant that a
	// fiber cannot become Finished while it has live children (spec.md
	// §2: "a fiber cannot outlive its parent's scope").
	children map[ftable.ID]struct{}

	// joiner is the single fiber blocked in Join against this one, if any
	// (spec.md §3: "a fiber may have at most one joiner; a second attempt
	// is a programming error"). Woken with (value, err) once this fiber
	// finishes.
	joiner *ftable.ID

	cancelRequested bool

	// trace reports this fiber's span to reqtrace, if tracing is linked in
	// and enabled; nil otherwise.
	trace fiberReport

	// panicked is true only when this fiber's own entry function panicked
	// and was recovered by its trampoline — as opposed to err merely
	// holding a *PanicError value that this fiber received from joining one
	// of its own children and chose to return normally. Only a true
	// panicked fiber triggers BlockOn's top-level re-raise.
	panicked bool

	result any
	err    error

	// entry is retained only until it has returned, so the closure (and
	// whatever it captured) can be collected while the fiber drains its
	// scope.
	entry func() (any, error)
}

func newFiber(id, parent ftable.ID, st *stack.Stack, entry func() (any, error)) *fiber {
	return &fiber{
		id:       id,
		parent:   parent,
		stack:    st,
		status:   statusReady,
		children: make(map[ftable.ID]struct{}),
		entry:    entry,
	}
}
