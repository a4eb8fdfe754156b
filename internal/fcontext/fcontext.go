// Package fcontext implements the context-switch primitive a fiber
// executor is built on: preparing a fresh stack so a first switch enters a
// trampoline, and a symmetric save/restore of callee-saved state between
// two fibers.
//
// Only callee-saved registers, the stack pointer, the x87 control word and
// the SSE MMX CSR survive a Switch. Anything caller-saved is the compiler's
// business, not ours; code on either side of a Switch must not assume
// otherwise. There is no third-party package this can be grounded on — it
// is the one place where the implementation has to be hand-written
// per-architecture assembly rather than an imported library (see
// DESIGN.md).
package fcontext

import "unsafe"

// EntryFn is invoked on the trampoline after the first Switch into a
// Prepare'd context. It must never return: a fiber's entry function ends by
// switching away for the last time (see the scheduler's fiber-finish path),
// not by falling off the end of EntryFn.
type EntryFn func(arg uintptr)

// Context is an opaque saved register/stack-pointer state, initially
// produced by Prepare and thereafter mutated in place by Switch. The zero
// Context is not valid; only use one returned by Prepare.
type Context struct {
	sp    uintptr
	entry EntryFn
	arg   uintptr
}

// Prepare lays out, at the top of the supplied stack, a frame such that the
// first Switch into the returned Context begins execution at entry, called
// as entry(arg). stackTop must be 16-byte aligned and point one past the
// last usable byte of the stack (the stack grows down from stackTop).
func Prepare(stackTop unsafe.Pointer, arg uintptr, entry EntryFn) *Context {
	ctx := &Context{entry: entry, arg: arg}
	ctx.sp = prepareAsm(uintptr(stackTop), ctx)
	return ctx
}

// Switch performs a symmetric context switch: it saves the calling fiber's
// callee-saved registers, x87/SSE control words and stack pointer into
// *from, then loads the corresponding state out of to and resumes there.
// When some other fiber later switches back into from, Switch returns,
// yielding the arg that fiber passed.
//
// from must be the Context of the fiber that is currently running; to must
// be the Context of a fiber previously Prepare'd or previously the target
// of a Switch that has not since resumed. Switch does not return until
// another Switch targets from.
func Switch(from *Context, to *Context, arg uintptr) uintptr {
	return switchAsm(from, to, arg)
}

// trampolineDispatch is reached by the assembly trampoline immediately
// after the first Switch into a Prepare'd context lands. ctx is recovered
// from a callee-saved register that prepareAsm seeded, so this is ordinary
// Go code running on the fiber's own stack from this point on.
func trampolineDispatch(ctx *Context) {
	ctx.entry(ctx.arg)
	panic("fcontext: fiber entry function returned")
}
