package ringloop

import (
	"runtime"
	"time"

	"github.com/jacobsa/timeutil"

	"github.com/ringloop/ringloop/internal/fcontext"
	"github.com/ringloop/ringloop/internal/ftable"
	"github.com/ringloop/ringloop/internal/reactor"
	"github.com/ringloop/ringloop/internal/stack"
)

// Options configures a Runtime. There is no persisted state here, in
// keeping with the teacher's plain functional-options MountConfig: a value
// struct the caller fills in, not a builder with hidden defaults resolved
// at call sites scattered through the package.
type Options struct {
	// StackSize is the default fiber stack size. Zero selects
	// stack.DefaultSize.
	StackSize int
	// StackAllocator configures the stack allocator; every BlockOn call
	// creates a fresh allocator from these options. A zero MaxCachedPerClass
	// selects stack.DefaultOptions' value.
	StackAllocator stack.Options
	// Reactor configures the underlying io_uring instance.
	Reactor reactor.Options
	// Clock is the runtime's clock, read by Runtime.now. Defaults to the
	// real wall clock. Sleep and reactor timeouts do not consult it: they
	// use the kernel's IORING_OP_TIMEOUT, so a fake clock does not change
	// how long they wait.
	Clock timeutil.Clock
}

func (o Options) withDefaults() Options {
	if o.StackSize == 0 {
		o.StackSize = stack.DefaultSize
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock()
	}
	return o
}

// Runtime is one fiber scheduler bound to the OS thread that created it via
// BlockOn. It owns a single reactor and fiber table; it is never shared
// across threads, and none of its methods are safe to call from a
// goroutine other than the one currently executing inside it.
type Runtime struct {
	opts Options

	table      *ftable.Table[*fiber]
	stackAlloc *stack.Allocator
	reactor    *reactor.Reactor

	ready []ftable.ID // FIFO ready queue

	current ftable.ID  // fiber currently running, or NoID while in the scheduler loop
	sched   fcontext.Context // the scheduler's own context, switched to between fibers

	rootID ftable.ID
}

func newRuntime(opts Options) (*Runtime, error) {
	opts = opts.withDefaults()

	sa := stack.NewAllocator(opts.StackAllocator)
	rc, err := reactor.New(opts.Reactor)
	if err != nil {
		sa.Close()
		return nil, err
	}

	rt := &Runtime{
		opts:       opts,
		table:      ftable.New[*fiber](),
		stackAlloc: sa,
		reactor:    rc,
	}
	return rt, nil
}

func (rt *Runtime) close() {
	rt.reactor.Close()
	_ = rt.stackAlloc.Close()
}

// lockThread pins the calling goroutine to its current OS thread for the
// duration of a BlockOn call. Fiber stacks are raw mmap'd memory addressed
// directly by the saved stack pointer in internal/fcontext: if the Go
// scheduler migrated the goroutine driving the scheduler loop to a
// different OS thread mid-switch, that would not corrupt anything by
// itself, but it would defeat the one-runtime-per-thread parallelism model
// the spec relies on, so BlockOn pins for the whole call instead of
// relying on callers to avoid blocking calls that might trigger a handoff.
func lockThread() func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}

// now returns the current time per the runtime's configured clock.
func (rt *Runtime) now() time.Time {
	return rt.opts.Clock.Now()
}
