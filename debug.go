package ringloop

import (
	"flag"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var fEnableDebug = flag.Bool(
	"ringloop.debug",
	false,
	"Write ringloop scheduler/reactor trace messages to stderr.")

var gLogger zerolog.Logger
var gLoggerOnce sync.Once

func initLogger() {
	if !flag.Parsed() {
		panic("initLogger called before flags available.")
	}

	level := zerolog.Disabled
	if *fEnableDebug {
		level = zerolog.DebugLevel
	}

	gLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().Timestamp().Logger()
}

// logger returns the process-wide trace logger, gated behind -ringloop.debug
// and initialized once on first use.
func logger() *zerolog.Logger {
	gLoggerOnce.Do(initLogger)
	return &gLogger
}
