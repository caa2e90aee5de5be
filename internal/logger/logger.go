// Package logger provides the process-wide structured logger
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLogLevel is the environment variable holding the log level
const EnvLogLevel = "LOG_LEVEL"

var log = logrus.New()

// InitializeAndConfigure sets up the logger with a JSON formatter on stdout
// and the log level taken from the environment
func InitializeAndConfigure() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	configureLogLevel(os.Getenv(EnvLogLevel))
}

func configureLogLevel(levelStr string) {
	log.SetLevel(logrus.InfoLevel)

	if levelStr == "" {
		return
	}

	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info'", levelStr)
		return
	}

	log.SetLevel(level)
	log.Debugf("Log level set to '%s'", level)
}

// SetOutput redirects log output, mostly useful in tests
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetLevel overrides the current log level
func SetLevel(level logrus.Level) {
	log.SetLevel(level)
}

// WithFields returns an entry carrying the given fields
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return log.WithFields(logrus.Fields(fields))
}

// Debug logs a message at the debug level
func Debug(args ...interface{}) {
	log.Debug(args...)
}

// Info logs a message at the info level
func Info(args ...interface{}) {
	log.Info(args...)
}

// Warn logs a message at the warn level
func Warn(args ...interface{}) {
	log.Warn(args...)
}

// Error logs a message at the error level
func Error(args ...interface{}) {
	log.Error(args...)
}

// Fatal logs a message at the fatal level and exits
func Fatal(args ...interface{}) {
	log.Fatal(args...)
}

// Debugf logs a formatted message at the debug level
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs a formatted message at the info level
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs a formatted message at the warn level
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs a formatted message at the error level
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Fatalf logs a formatted message at the fatal level and exits
func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}

// InfoWithFields logs a message at the info level with additional fields
func InfoWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Info(msg)
}

// DebugWithFields logs a message at the debug level with additional fields
func DebugWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Debug(msg)
}

// WarnWithFields logs a message at the warn level with additional fields
func WarnWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Warn(msg)
}

// ErrorWithFields logs a message at the error level with additional fields
func ErrorWithFields(msg string, fields map[string]interface{}) {
	log.WithFields(logrus.Fields(fields)).Error(msg)
}
