// Package logger provides the process-wide log file used by uiharness.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalLogger = newDiscardLogger()
	logFile      *os.File
	mu           sync.Mutex
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
		logFile = nil
		globalLogger = newDiscardLogger()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	l := logrus.New()
	l.SetOutput(f)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	globalLogger = l

	return nil
}

// EnableVerbose copies every message, debug included, to w. The log file, if
// any, keeps receiving output.
func EnableVerbose(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		globalLogger.SetOutput(io.MultiWriter(logFile, w))
	} else {
		globalLogger.SetOutput(w)
	}
	globalLogger.SetLevel(logrus.DebugLevel)
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = newDiscardLogger()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// WithFields returns an entry carrying structured context such as the
// session id or platform.
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return current().WithFields(logrus.Fields(fields))
}

// GetWriter returns the underlying writer for use by driver processes.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

func current() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}
