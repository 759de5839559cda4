// Package logger is the level-filtered logger used across the engine.
// It writes through the standard log package so the output can be redirected with SetOutput.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel orders messages by severity. Smaller values are more verbose.
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	// LevelSilent suppresses everything except Fatalf.
	LevelSilent
)

var logLevel atomic.Int32

func init() {
	logLevel.Store(int32(LevelInfo))
}

// SetLogLevel sets the global level from its name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL", "SILENT").
// "TRACE" is treated as DEBUG. Unknown names fall back to INFO.
func SetLogLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		logLevel.Store(int32(LevelDebug))
	case "INFO", "":
		logLevel.Store(int32(LevelInfo))
	case "WARN":
		logLevel.Store(int32(LevelWarn))
	case "ERROR":
		logLevel.Store(int32(LevelError))
	case "FATAL":
		logLevel.Store(int32(LevelFatal))
	case "SILENT":
		logLevel.Store(int32(LevelSilent))
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel.Store(int32(LevelInfo))
	}
}

// GetLogLevel returns the current global level.
func GetLogLevel() LogLevel {
	return LogLevel(logLevel.Load())
}

// IsDebugEnabled reports whether Debugf output is currently written.
func IsDebugEnabled() bool {
	return GetLogLevel() <= LevelDebug
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func enabled(l LogLevel) bool {
	return GetLogLevel() <= l
}

// Debugf logs at DEBUG.
func Debugf(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof logs at INFO.
func Infof(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf logs at WARN.
func Warnf(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf logs at ERROR.
func Errorf(format string, v ...interface{}) {
	if enabled(LevelError) {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs the message and terminates the process with os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
