package rtc

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// loggerFactory routes pion's internal logs into zerolog. pion's debug
// output is very chatty, so it lands one level lower than it claims.
type loggerFactory struct{}

func NewLoggerFactory() logging.LoggerFactory { return loggerFactory{} }

func (loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{l: log.With().Str("module", "pion").Str("scope", scope).Logger()}
}

type leveledLogger struct {
	l zerolog.Logger
}

func (z *leveledLogger) Trace(msg string)                  { z.l.Trace().Msg(msg) }
func (z *leveledLogger) Tracef(f string, a ...interface{}) { z.l.Trace().Msgf(f, a...) }
func (z *leveledLogger) Debug(msg string)                  { z.l.Trace().Msg(msg) }
func (z *leveledLogger) Debugf(f string, a ...interface{}) { z.l.Trace().Msgf(f, a...) }
func (z *leveledLogger) Info(msg string)                   { z.l.Debug().Msg(msg) }
func (z *leveledLogger) Infof(f string, a ...interface{})  { z.l.Debug().Msgf(f, a...) }
func (z *leveledLogger) Warn(msg string)                   { z.l.Warn().Msg(msg) }
func (z *leveledLogger) Warnf(f string, a ...interface{})  { z.l.Warn().Msgf(f, a...) }
func (z *leveledLogger) Error(msg string)                  { z.l.Error().Msg(msg) }
func (z *leveledLogger) Errorf(f string, a ...interface{}) { z.l.Error().Msgf(f, a...) }
