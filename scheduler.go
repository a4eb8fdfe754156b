package ringloop

import (
	"runtime/debug"
	"unsafe"

	"github.com/ringloop/ringloop/internal/fcontext"
	"github.com/ringloop/ringloop/internal/ftable"
	"github.com/ringloop/ringloop/internal/stack"
)

func unsafeTop(s *stack.Stack) unsafe.Pointer {
	return unsafe.Pointer(s.Top())
}

// spawn allocates a fiber under parent's scope and enqueues it ready to
// run. parent may be ftable.NoID only for the root fiber created by
// BlockOn.
func (rt *Runtime) spawn(parent ftable.ID, entry func() (any, error)) (ftable.ID, error) {
	st, err := rt.stackAlloc.Acquire(rt.opts.StackSize)
	if err != nil {
		return ftable.ID{}, &ResourceExhaustedError{Resource: "fiber stack", Err: err}
	}

	id := rt.table.Insert((*fiber)(nil))
	f := newFiber(id, parent, st, entry)
	f.trace = startFiberSpan(id)
	rt.table.Set(id, f)

	f.ctx = fcontext.Prepare(unsafeTop(st), uintptr(id.Pack()), func(arg uintptr) {
		rt.runFiberBody(ftable.Unpack(uint64(arg)))
	})

	if p, ok := rt.table.Get(parent); ok {
		p.children[id] = struct{}{}
	}

	rt.enqueue(id)
	logger().Debug().Stringer("fiber", id).Stringer("parent", parent).Msg("spawn")
	return id, nil
}

func (rt *Runtime) enqueue(id ftable.ID) {
	rt.ready = append(rt.ready, id)
}

// currentFiber returns the fiber presently executing on this goroutine's
// call stack, i.e. the one switched into by the scheduler loop.
func (rt *Runtime) currentFiber() *fiber {
	f, ok := rt.table.Get(rt.current)
	if !ok {
		panic(&ProgrammingError{Msg: "no fiber is currently running on this runtime"})
	}
	return f
}

// switchToScheduler suspends the calling fiber (its status must already
// reflect why it is suspending) and transfers control back to the
// scheduler loop. It returns once the scheduler switches back into this
// fiber.
func (rt *Runtime) switchToScheduler(f *fiber) {
	fcontext.Switch(f.ctx, &rt.sched, 0)
}

// runFiberBody is the trampoline entry for every fiber: it runs the
// fiber's closure to completion (recovering a panic into a PanicError),
// then drains the fiber's structured-concurrency scope before finalizing
// it and parking forever.
func (rt *Runtime) runFiberBody(id ftable.ID) {
	f, _ := rt.table.Get(id)

	func() {
		defer func() {
			if r := recover(); r != nil {
				f.err = &PanicError{Fiber: id, Value: r, Stack: capturedStack()}
				f.result = nil
				f.panicked = true
				logger().Debug().Stringer("fiber", id).Interface("recovered", r).Msg("fiber panicked")
			}
		}()
		f.result, f.err = f.entry()
	}()
	f.entry = nil

	f.status = statusDraining
	rt.drainScope(f)

	// rt.drainScope returns only when the fiber had no children, after
	// finalizing it itself; with children, the last child's finalize
	// finalizes this fiber and it is never resumed. Park here forever; this
	// fiber is never switched back into again.
	for {
		rt.switchToScheduler(f)
	}
}

// drainScope blocks the calling fiber (by switching to the scheduler) while
// its children set is non-empty; the finalize of its last child then
// finalizes it, and it is not resumed. Children are waited for, not
// cancelled. If there were no children to begin with, this finalizes
// immediately without switching away — spec.md's invariant is "cannot finish before children
// finish," not "must yield even with no children."
func (rt *Runtime) drainScope(f *fiber) {
	for len(f.children) > 0 {
		rt.switchToScheduler(f)
	}
	rt.finalize(f)
}

// finalize transitions f to Finished, releases its stack, wakes anyone
// blocked in Join, and recursively checks whether its parent's own scope
// has just become empty. It performs no stack switch and may run on behalf
// of a fiber other than the one whose stack is currently active — it is
// pure bookkeeping over shared runtime state.
func (rt *Runtime) finalize(f *fiber) {
	f.status = statusFinished
	logger().Debug().Stringer("fiber", f.id).Msg("finalize")
	if f.trace != nil {
		f.trace(f.err)
		f.trace = nil
	}
	if f.stack != nil {
		rt.stackAlloc.Release(f.stack)
		f.stack = nil
	}

	joiner := f.joiner
	f.joiner = nil
	if joiner != nil {
		rt.wake(*joiner)
	}

	if parent, ok := rt.table.Get(f.parent); ok {
		delete(parent.children, f.id)
		if parent.status == statusDraining && len(parent.children) == 0 {
			rt.finalize(parent)
		}
	}
}

// wake moves a blocked fiber back onto the ready queue.
func (rt *Runtime) wake(id ftable.ID) {
	f, ok := rt.table.Get(id)
	if !ok || f.status == statusFinished {
		return
	}
	f.status = statusReady
	rt.enqueue(id)
}

// runLoop drives the scheduler until the root fiber finishes or the
// runtime deadlocks (no ready fibers and no outstanding I/O — a
// programming error the caller should never actually hit under the
// structured-concurrency invariants, but one the loop must still
// terminate on instead of spinning forever).
func (rt *Runtime) runLoop() {
	for {
		for len(rt.ready) > 0 {
			id := rt.ready[0]
			rt.ready = rt.ready[1:]

			f, ok := rt.table.Get(id)
			if !ok || f.status != statusReady {
				continue
			}

			rt.current = id
			f.status = statusRunning
			fcontext.Switch(&rt.sched, f.ctx, 0)
			rt.current = ftable.NoID

			if root, ok := rt.table.Get(rt.rootID); !ok || root.status == statusFinished {
				return
			}
		}

		if root, ok := rt.table.Get(rt.rootID); !ok || root.status == statusFinished {
			return
		}

		if rt.reactor.Pending() == 0 {
			// Nothing ready, nothing in flight: every live fiber is stuck
			// waiting on something that will never complete.
			return
		}
		if _, err := rt.reactor.Poll(nil); err != nil {
			return
		}
	}
}

func capturedStack() []byte {
	return debug.Stack()
}
