package ringloop

import (
	"context"
	"flag"

	"github.com/jacobsa/reqtrace"

	"github.com/ringloop/ringloop/internal/ftable"
)

var fTraceFibers = flag.Bool(
	"ringloop.trace_fibers",
	false,
	"Enable a hacky mode that uses reqtrace to group each fiber's entire "+
		"lifetime into its own span, the same style of opt-in tracing the "+
		"fuse library this runtime is descended from offered per request.")

// fiberReport is the report callback returned by starting a fiber's trace
// span; nil when tracing isn't both linked in (reqtrace.Enabled()) and
// opted into via -ringloop.trace_fibers, so callers must check it for nil
// before invoking it (finalize does).
type fiberReport = reqtrace.ReportFunc

// startFiberSpan opens a span covering one fiber's entire lifetime, from
// spawn to finalize, closed by calling the returned fiberReport with the
// fiber's terminal error. Grounded on the teacher's commonOp.init, which
// opens a reqtrace.StartSpan bracketing one FUSE op's lifetime the same
// way and reports it when the op finishes.
func startFiberSpan(id ftable.ID) fiberReport {
	if !reqtrace.Enabled() || !*fTraceFibers {
		return nil
	}
	_, report := reqtrace.StartSpan(context.Background(), "fiber "+id.String())
	return report
}
