package yolov5

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

// LogLevel indicates the severity of a log message
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarning
	LogError
)

// String returns a readable description of the log level
func (l LogLevel) String() string {
	switch l {
	case LogDebug:
		return "debug"
	case LogInfo:
		return "info"
	case LogWarning:
		return "warning"
	case LogError:
		return "error"
	default:
		return fmt.Sprintf("unknown level %d", int(l))
	}
}

// Logger is the logging sink used by the Detector and its collaborators.
// Implementations must be safe for use from a single Detector instance.
// A custom Logger can be injected at any time through Detector.SetLogger,
// including before Init()
type Logger interface {
	// Log writes a single message at the given level
	Log(level LogLevel, msg string)
	// Logf formats and writes a message at the given level
	Logf(level LogLevel, format string, args ...interface{})
}

// ConsoleLogger is the default Logger, writing formatted messages to a
// console writer.  Messages below MinLevel are discarded
type ConsoleLogger struct {
	// Out is the destination writer
	Out io.Writer
	// MinLevel is the lowest level that will be written
	MinLevel LogLevel

	mu sync.Mutex
}

// NewConsoleLogger returns a ConsoleLogger writing to stderr at info level
// and above
func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{
		Out:      os.Stderr,
		MinLevel: LogInfo,
	}
}

// Log writes a single message to the console
func (c *ConsoleLogger) Log(level LogLevel, msg string) {

	if level < c.MinLevel {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.Out, "[%s] %s\n", level.String(), msg)
}

// Logf formats and writes a message to the console
func (c *ConsoleLogger) Logf(level LogLevel, format string, args ...interface{}) {
	c.Log(level, fmt.Sprintf(format, args...))
}

// ZapLogger adapts a zap logger to the Logger interface so applications
// already using zap can receive the detector's log output
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger returns a Logger backed by the given zap logger
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{
		// skip the adapter frame so call sites are reported correctly
		sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// Log writes a single message through zap
func (z *ZapLogger) Log(level LogLevel, msg string) {
	switch level {
	case LogDebug:
		z.sugar.Debug(msg)
	case LogInfo:
		z.sugar.Info(msg)
	case LogWarning:
		z.sugar.Warn(msg)
	default:
		z.sugar.Error(msg)
	}
}

// Logf formats and writes a message through zap
func (z *ZapLogger) Logf(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LogDebug:
		z.sugar.Debugf(format, args...)
	case LogInfo:
		z.sugar.Infof(format, args...)
	case LogWarning:
		z.sugar.Warnf(format, args...)
	default:
		z.sugar.Errorf(format, args...)
	}
}
