package ringloop

// YieldNow gives up the calling fiber's turn, letting any other ready
// fiber run before this one resumes. Returns ErrCancelled if the fiber was
// cancelled while it was off the stack, so a cooperative loop can check it
// once per iteration without a separate Cancelled() query method.
func (rt *Runtime) YieldNow() error {
	f := rt.currentFiber()
	f.status = statusReady
	rt.enqueue(f.id)
	rt.switchToScheduler(f)

	if f.cancelRequested {
		return ErrCancelled
	}
	return nil
}
