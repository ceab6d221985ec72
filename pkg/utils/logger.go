package utils

import (
	"fmt"

	"github.com/iotaledger/hive.go/logger"
)

// WrappedLogger logs through the wrapped logger if one was passed and drops the message otherwise.
type WrappedLogger struct {
	logger *logger.Logger
}

// NewWrappedLogger creates a new WrappedLogger. The logger may be nil.
func NewWrappedLogger(logger *logger.Logger) *WrappedLogger {
	return &WrappedLogger{logger: logger}
}

// Logger returns the underlying logger.
func (l *WrappedLogger) Logger() *logger.Logger {
	return l.logger
}

// LoggerNamed returns a named child of the underlying logger.
func (l *WrappedLogger) LoggerNamed(name string) *logger.Logger {
	if l.logger == nil {
		return nil
	}
	return l.logger.Named(name)
}

func (l *WrappedLogger) LogDebugf(template string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Debugf(template, args...)
	}
}

func (l *WrappedLogger) LogInfo(args ...interface{}) {
	if l.logger != nil {
		l.logger.Info(args...)
	}
}

func (l *WrappedLogger) LogInfof(template string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Infof(template, args...)
	}
}

func (l *WrappedLogger) LogWarnf(template string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Warnf(template, args...)
	}
}

func (l *WrappedLogger) LogErrorf(template string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Errorf(template, args...)
	}
}

// LogPanicf logs the message and panics. Without a logger it panics with the formatted message.
func (l *WrappedLogger) LogPanicf(template string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Panicf(template, args...)
	}
	panic(fmt.Sprintf(template, args...))
}
