// Package ringloop implements a single-threaded fiber scheduler that
// multiplexes stackful coroutines over a single io_uring instance.
//
// The primary elements of interest are:
//
//  *  BlockOn, which starts a runtime on the calling OS thread, runs a root
//     fiber to completion, and tears the runtime down.
//
//  *  Runtime.Spawn, which starts a child fiber under the calling fiber's
//     structured-concurrency scope.
//
//  *  FiberHandle, a weak, generation-checked reference to a spawned fiber
//     used to Join or Cancel it.
//
// A Runtime is never shared across OS threads: parallelism is achieved by
// running one Runtime per thread, each with its own reactor and fiber
// table, rather than by work-stealing across a shared scheduler.
package ringloop
