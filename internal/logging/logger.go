package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const logDirEnvVar = "ARIA_LOG_DIR"

// Logger defines a minimal, printf-style logging contract.
//
// Realtime packages depend on this interface so tests can inject a capture
// logger and library consumers can plug in their own backend.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

var (
	fileOnce   sync.Once
	fileShared *fileSink
)

type fileSink struct {
	mu     sync.Mutex
	logger *log.Logger
	file   *os.File
}

// fileLogger writes component-tagged lines to aria-service.log.
type fileLogger struct {
	sink      *fileSink
	component string
	level     Level
}

// NewComponentLogger returns the default application logger scoped to a component.
// All component loggers share one underlying file handle.
func NewComponentLogger(component string) Logger {
	fileOnce.Do(func() {
		fileShared = openSink()
	})
	return &fileLogger{sink: fileShared, component: component, level: LevelDebug}
}

func openSink() *fileSink {
	dir := strings.TrimSpace(os.Getenv(logDirEnvVar))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return &fileSink{}
		}
		dir = home
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &fileSink{}
	}
	path := filepath.Join(dir, "aria-service.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", path, err)
		return &fileSink{}
	}
	return &fileSink{file: file, logger: log.New(file, "", 0)}
}

func (l *fileLogger) log(level Level, format string, args ...any) {
	if level < l.level || l.sink == nil || l.sink.logger == nil {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	component := l.component
	if component == "" {
		component = "ARIA"
	}

	// Format: 2025-09-30 12:34:56 [INFO] [Component] file.go:123 - Message
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s",
		time.Now().Format("2006-01-02 15:04:05"),
		levelString(level), component, file, line,
		fmt.Sprintf(format, args...))

	l.sink.mu.Lock()
	l.sink.logger.Print(logLine)
	l.sink.mu.Unlock()
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func levelString(level Level) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
