package oidcmetadata

import (
	"log"

	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// Logger is the logging interface the Service writes to.
//
// Levels used by the Service:
//   - Debugf: cache misses and successful fetches
//   - Infof: lifecycle, when the Service starts and stops sweeping
//   - Warnf: failed fetches
//   - Errorf: cache store and sweep failures
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultLogger writes level-prefixed lines through a standard library
// logger. The zero value writes to log.Default().
type DefaultLogger struct {
	// Logger receives the lines. Nil means log.Default().
	Logger *log.Logger
}

func (l *DefaultLogger) Debugf(format string, args ...interface{}) { l.printf("DEBUG", format, args) }
func (l *DefaultLogger) Infof(format string, args ...interface{})  { l.printf("INFO", format, args) }
func (l *DefaultLogger) Warnf(format string, args ...interface{})  { l.printf("WARN", format, args) }
func (l *DefaultLogger) Errorf(format string, args ...interface{}) { l.printf("ERROR", format, args) }

func (l *DefaultLogger) printf(level, format string, args []interface{}) {
	out := l.Logger
	if out == nil {
		out = log.Default()
	}
	out.Printf(level+": oidcmetadata: "+format, args...)
}

// nopLogger is used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// NewZapLogger returns a Logger adapter for zap.SugaredLogger.
func NewZapLogger(l *zap.SugaredLogger) Logger {
	return &zapLogger{l}
}

type zapLogger struct{ l *zap.SugaredLogger }

func (z *zapLogger) Debugf(format string, args ...interface{}) { z.l.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})  { z.l.Infof(format, args...) }
func (z *zapLogger) Warnf(format string, args ...interface{})  { z.l.Warnf(format, args...) }
func (z *zapLogger) Errorf(format string, args ...interface{}) { z.l.Errorf(format, args...) }

// NewZerologLogger returns a Logger adapter for zerolog.Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l}
}

type zerologLogger struct{ l zerolog.Logger }

func (z *zerologLogger) Debugf(format string, args ...interface{}) {
	z.l.Debug().Msgf(format, args...)
}
func (z *zerologLogger) Infof(format string, args ...interface{}) {
	z.l.Info().Msgf(format, args...)
}
func (z *zerologLogger) Warnf(format string, args ...interface{}) {
	z.l.Warn().Msgf(format, args...)
}
func (z *zerologLogger) Errorf(format string, args ...interface{}) {
	z.l.Error().Msgf(format, args...)
}

// NewLogrusLogger returns a Logger adapter for logrus.FieldLogger.
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	return &logrusLogger{l}
}

type logrusLogger struct{ l logrus.FieldLogger }

func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.l.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.l.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.l.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.l.Errorf(format, args...) }
