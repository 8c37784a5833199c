package media

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/pion/logging"
)

// loggerFactory routes pion's internal logs through logr. pion info logs are
// debug output for us, so every pion level sits one verbosity step lower.
type loggerFactory struct {
	log logr.Logger
}

// NewLoggerFactory returns a pion LoggerFactory writing to log.
func NewLoggerFactory(log logr.Logger) logging.LoggerFactory {
	return loggerFactory{log: log.WithName("pion")}
}

func (f loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return leveledLogger{log: f.log.WithValues("scope", scope)}
}

type leveledLogger struct {
	log logr.Logger
}

func (l leveledLogger) Trace(msg string) { l.log.V(3).Info(msg) }
func (l leveledLogger) Tracef(format string, args ...interface{}) {
	l.log.V(3).Info(fmt.Sprintf(format, args...))
}
func (l leveledLogger) Debug(msg string) { l.log.V(2).Info(msg) }
func (l leveledLogger) Debugf(format string, args ...interface{}) {
	l.log.V(2).Info(fmt.Sprintf(format, args...))
}
func (l leveledLogger) Info(msg string) { l.log.V(1).Info(msg) }
func (l leveledLogger) Infof(format string, args ...interface{}) {
	l.log.V(1).Info(fmt.Sprintf(format, args...))
}
func (l leveledLogger) Warn(msg string) { l.log.Info(msg, "level", "warn") }
func (l leveledLogger) Warnf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...), "level", "warn")
}
func (l leveledLogger) Error(msg string) { l.log.Error(nil, msg) }
func (l leveledLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(nil, fmt.Sprintf(format, args...))
}
