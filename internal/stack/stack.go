// Package stack implements the fiber stack allocator: guarded virtual-memory
// regions handed out to fresh fibers and recycled through a size-classed
// free list, grounded on the pooling idiom of the teacher's
// DefaultMessageProvider (a sync.Mutex-guarded free list of same-sized
// buffers reused across requests instead of allocated and freed per op).
package stack

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultSize is the default fiber stack size, matching spec.md's "default
// ~128 KiB".
const DefaultSize = 128 * 1024

// Stack is a fixed-size virtual allocation with a guard page at the low
// end. The guard page is mprotect'd PROT_NONE so a stack overflow faults
// with SIGSEGV instead of silently corrupting an adjacent region.
type Stack struct {
	region []byte // includes the guard page
	usable []byte // the part fibers may actually use
	class  int    // size class, for returning to the right free-list bucket
}

// Top returns the address one past the last usable byte — where
// fcontext.Prepare should start laying out its initial frame, since the
// stack grows down from here.
func (s *Stack) Top() uintptr {
	return uintptr(len(s.usable)) + firstUsableAddr(s)
}

func firstUsableAddr(s *Stack) uintptr {
	return uintptr(unsafe.Pointer(&s.usable[0]))
}

// Allocator acquires and releases fiber stacks, caching released ones in a
// size-classed free list so steady-state fiber churn does not call mmap on
// every spawn.
type Allocator struct {
	mu         sync.Mutex
	free       map[int][]*Stack
	maxPerSize int
	pageSize   int
	hugePages  bool

	created  int64
	reused   int64
	released int64
}

// Options configures an Allocator.
type Options struct {
	// MaxCachedPerClass bounds how many released stacks of a given size
	// class the allocator keeps before it starts munmap-ing them outright.
	MaxCachedPerClass int
	// HugePages requests MAP_HUGETLB backing when the platform supports it.
	// Allocation falls back to regular pages if the kernel rejects the
	// request, rather than failing spawn outright.
	HugePages bool
}

// DefaultOptions mirrors a conservative per-runtime cache: enough stacks to
// absorb a burst of short-lived fibers without pinning unbounded memory.
var DefaultOptions = Options{MaxCachedPerClass: 256}

// NewAllocator creates a stack allocator. One per Runtime, never shared
// across threads (consistent with the runtime's no-shared-state design).
func NewAllocator(opts Options) *Allocator {
	if opts.MaxCachedPerClass <= 0 {
		opts.MaxCachedPerClass = DefaultOptions.MaxCachedPerClass
	}
	return &Allocator{
		free:       make(map[int][]*Stack),
		maxPerSize: opts.MaxCachedPerClass,
		pageSize:   unix.Getpagesize(),
		hugePages:  opts.HugePages,
	}
}

func (a *Allocator) classFor(size int) int {
	ps := a.pageSize
	pages := (size + ps - 1) / ps
	if pages < 1 {
		pages = 1
	}
	return pages * ps
}

// Acquire returns a stack usable for at least size bytes, preferring a
// cached stack of the matching size class over a fresh mmap. A failure here
// is a ResourceExhausted condition for the caller (spec.md §7): the runtime
// does not retry or block, it propagates the error to spawn.
func (a *Allocator) Acquire(size int) (*Stack, error) {
	if size <= 0 {
		size = DefaultSize
	}
	class := a.classFor(size)

	a.mu.Lock()
	if bucket := a.free[class]; len(bucket) > 0 {
		s := bucket[len(bucket)-1]
		a.free[class] = bucket[:len(bucket)-1]
		a.reused++
		a.mu.Unlock()
		return s, nil
	}
	a.mu.Unlock()

	s, err := a.mmapStack(class)
	if err != nil {
		return nil, fmt.Errorf("stack: acquire %d bytes: %w", class, err)
	}
	a.mu.Lock()
	a.created++
	a.mu.Unlock()
	return s, nil
}

// Release returns a stack to the free list for its size class, or unmaps it
// outright if the class's cache is already at capacity.
func (a *Allocator) Release(s *Stack) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := a.free[s.class]
	if len(bucket) >= a.maxPerSize {
		a.released++
		_ = unix.Munmap(s.region)
		return
	}
	a.free[s.class] = append(bucket, s)
}

// Stats reports lifetime allocator counters, for tests and diagnostics.
type Stats struct {
	Created  int64
	Reused   int64
	Released int64
	Cached   int
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	cached := 0
	for _, b := range a.free {
		cached += len(b)
	}
	return Stats{Created: a.created, Reused: a.reused, Released: a.released, Cached: cached}
}

// Close unmaps every cached stack. Call once, after block_on has returned
// and every fiber has been finalized.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	for class, bucket := range a.free {
		for _, s := range bucket {
			if err := unix.Munmap(s.region); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(a.free, class)
	}
	return firstErr
}
