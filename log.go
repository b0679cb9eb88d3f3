package smoltable

import (
	"os"

	"github.com/rs/zerolog"
)

// LogFuncs is the logging seam every smoltable component writes through,
// one func field per level. Grounded on
// _examples/gholt-valuestore/package.go's LogFunc type: a value store that
// wants to stay agnostic of any particular logging library exposes a bare
// func(string, ...interface{}) and lets the embedder wire it to whatever
// they use. smoltable keeps that same shape (so it is just as embeddable),
// but additionally ships a concrete implementation backed by
// github.com/rs/zerolog — see NewZerologFuncs — rather than leaving every
// caller to hand-write one.
type LogFunc func(format string, args ...interface{})

// LogFuncs groups one LogFunc per severity. A nil field is treated as a
// no-op, so callers may only set the levels they care about.
type LogFuncs struct {
	Trace LogFunc
	Debug LogFunc
	Info  LogFunc
	Warn  LogFunc
	Error LogFunc
}

func (l LogFuncs) Tracef(format string, args ...interface{}) { l.call(l.Trace, format, args...) }
func (l LogFuncs) Debugf(format string, args ...interface{}) { l.call(l.Debug, format, args...) }
func (l LogFuncs) Infof(format string, args ...interface{})  { l.call(l.Info, format, args...) }
func (l LogFuncs) Warnf(format string, args ...interface{})  { l.call(l.Warn, format, args...) }
func (l LogFuncs) Errorf(format string, args ...interface{}) { l.call(l.Error, format, args...) }

func (l LogFuncs) call(fn LogFunc, format string, args ...interface{}) {
	if fn != nil {
		fn(format, args...)
	}
}

// NewZerologFuncs builds a LogFuncs backed by a zerolog.Logger writing to
// os.Stderr, the same ambient-logging choice litetable-db's dependency
// list (rs/zerolog) evidences for this class of storage server.
func NewZerologFuncs(level zerolog.Level) LogFuncs {
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	return LogFuncs{
		Trace: func(format string, args ...interface{}) { logger.Trace().Msgf(format, args...) },
		Debug: func(format string, args ...interface{}) { logger.Debug().Msgf(format, args...) },
		Info:  func(format string, args ...interface{}) { logger.Info().Msgf(format, args...) },
		Warn:  func(format string, args ...interface{}) { logger.Warn().Msgf(format, args...) },
		Error: func(format string, args ...interface{}) { logger.Error().Msgf(format, args...) },
	}
}
