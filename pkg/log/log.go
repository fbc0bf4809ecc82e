package log

import (
	"github.com/sirupsen/logrus"
)

// InitLogs returns a logger configured for CLI use.
func InitLogs() *logrus.Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return log
}

// PrefixLogger wraps a logrus logger and prepends a fixed component prefix to
// every message.
type PrefixLogger struct {
	*logrus.Logger
	prefix string
}

func NewPrefixLogger(prefix string) *PrefixLogger {
	return &PrefixLogger{
		Logger: InitLogs(),
		prefix: prefix,
	}
}

// NewPrefixLoggerFromLogger shares an existing logger, only changing the prefix.
func NewPrefixLoggerFromLogger(prefix string, log *logrus.Logger) *PrefixLogger {
	return &PrefixLogger{
		Logger: log,
		prefix: prefix,
	}
}

func (l *PrefixLogger) Prefix() string {
	return l.prefix
}

func (l *PrefixLogger) prefixed(format string) string {
	if l.prefix == "" {
		return format
	}
	return l.prefix + ": " + format
}

func (l *PrefixLogger) Tracef(format string, args ...interface{}) {
	l.Logger.Tracef(l.prefixed(format), args...)
}

func (l *PrefixLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debugf(l.prefixed(format), args...)
}

func (l *PrefixLogger) Infof(format string, args ...interface{}) {
	l.Logger.Infof(l.prefixed(format), args...)
}

func (l *PrefixLogger) Warnf(format string, args ...interface{}) {
	l.Logger.Warnf(l.prefixed(format), args...)
}

func (l *PrefixLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Errorf(l.prefixed(format), args...)
}

func (l *PrefixLogger) Error(args ...interface{}) {
	if l.prefix == "" {
		l.Logger.Error(args...)
		return
	}
	l.Logger.Error(append([]interface{}{l.prefix + ": "}, args...)...)
}
