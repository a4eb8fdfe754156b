package ringloop

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ringloop/ringloop/internal/ftable"
)

// BlockOn starts a runtime on the calling OS thread, runs entry as the
// root fiber, and blocks until it (and everything it structurally spawned)
// has finished, returning entry's result.
//
// entry receives the Runtime so it can Spawn children, Sleep, or perform
// I/O through the domain packages (ringnet, ringfile, ringsignal), all of
// which require a *Runtime to reach the scheduler.
//
// Calling BlockOn again from inside entry (directly or transitively) is a
// ProgrammingError: a single OS thread runs exactly one scheduler at a
// time, by design (spec.md §5 — no nested schedulers, no shared state
// across threads).
//
// If the root fiber panics without recovering, BlockOn re-raises the
// original panic value after the runtime has been fully torn down, rather
// than returning it as an ordinary error — there is no structured parent
// above the root to hand it to.
func BlockOn[T any](opts Options, entry func(*Runtime) (T, error)) (T, error) {
	var zero T

	unlock := lockThread()
	defer unlock()

	tid := unix.Gettid()
	if runtimesByThread.load(tid) != nil {
		panic(&ProgrammingError{Msg: "BlockOn called re-entrantly on a thread already running one"})
	}

	rt, err := newRuntime(opts)
	if err != nil {
		return zero, err
	}
	runtimesByThread.store(tid, rt)
	defer runtimesByThread.store(tid, nil)

	rootID, err := rt.spawn(ftable.NoID, func() (any, error) {
		return entry(rt)
	})
	if err != nil {
		rt.close()
		return zero, err
	}
	rt.rootID = rootID
	rootHandle := &FiberHandle{rt: rt, id: rootID}

	rt.runLoop()

	rootFiber, _ := rt.table.Get(rootID)
	rootPanicked := rootFiber != nil && rootFiber.panicked

	raw, joinErr := rootHandle.Join()

	// Any fiber still sitting in the table at this point finished without
	// ever being explicitly Joined (structured draining waited for it, but
	// nobody consumed its result) — if it panicked, that panic has nowhere
	// left to surface except the top level.
	var unconsumed *PanicError
	rt.table.ForEach(func(id ftable.ID, f *fiber) {
		if unconsumed == nil && f.status == statusFinished && f.panicked {
			if pe, ok := f.err.(*PanicError); ok {
				unconsumed = pe
			}
		}
	})

	rt.close()

	if rootPanicked {
		pe := joinErr.(*PanicError)
		panic(pe.Value)
	}
	if unconsumed != nil {
		panic(unconsumed.Value)
	}
	if joinErr != nil {
		return zero, joinErr
	}

	result, _ := raw.(T)
	return result, nil
}

// runtimesByThread tracks which OS thread (by tid) is currently running a
// BlockOn loop, purely to reject re-entrant calls. Multiple Runtimes are
// expected to run concurrently — one per thread, each independent, in
// keeping with the spec's no-work-stealing parallelism model — so this is
// keyed by thread ID rather than a single shared slot; the mutex around it
// only ever guards this bookkeeping map, never anything on the scheduler's
// hot path.
var runtimesByThread = threadRuntimeMap{m: make(map[int]*Runtime)}

type threadRuntimeMap struct {
	mu sync.Mutex
	m  map[int]*Runtime
}

func (t *threadRuntimeMap) load(tid int) *Runtime {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m[tid]
}

func (t *threadRuntimeMap) store(tid int, rt *Runtime) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rt == nil {
		delete(t.m, tid)
		return
	}
	t.m[tid] = rt
}
