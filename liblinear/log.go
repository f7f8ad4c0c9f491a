package liblinear

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tevino/abool"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().
			Timestamp().
			Str("component", "liblinear").
			Logger()
	quiet = abool.New()
)

// SetLogger replaces the process-wide diagnostic sink. Solvers that were not
// given a logger through Parameter.Logger or WithLogger write here.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// SetQuiet silences the process-wide sink. Explicitly injected loggers are
// not affected.
func SetQuiet(q bool) {
	quiet.SetTo(q)
}

func defaultLogger() zerolog.Logger {
	if quiet.IsSet() {
		return zerolog.Nop()
	}
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func solverLogger(base *zerolog.Logger, solverType *SolverType) zerolog.Logger {
	var l zerolog.Logger
	if base != nil {
		l = *base
	} else {
		l = defaultLogger()
	}
	return l.With().Str("solver", solverType.Name()).Logger()
}
