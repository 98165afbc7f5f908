package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging surface every component receives at construction.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// Level filters log output by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name used in log entries.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts a level name (debug, info, warn, error) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

var (
	runID     string
	runIDOnce sync.Once
)

// RunID returns the identifier shared by every log file of this process.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// sink is the destination shared by all component loggers of a process.
type sink struct {
	mu     sync.Mutex
	logger *log.Logger
	file   *os.File
	path   string
	once   sync.Once
}

// FileLogger writes leveled, component-tagged entries to
// <dir>/<run-id>-notebook-mcp.log. It never writes to stdout.
type FileLogger struct {
	component string
	level     Level
	sink      *sink
}

// NewFileLogger creates a logger for component under dir.
//
// If the directory or file cannot be created it returns a logger writing to
// stderr together with the error, so callers can warn and continue.
func NewFileLogger(dir, component string, level Level) (*FileLogger, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return newStderrLogger(component, level), fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".notebook-mcp", "logs")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return newStderrLogger(component, level), fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-notebook-mcp.log", RunID()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newStderrLogger(component, level), fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileLogger{
		component: component,
		level:     level,
		sink: &sink{
			logger: log.New(file, "", 0),
			file:   file,
			path:   path,
		},
	}, nil
}

// NewWriterLogger creates a logger writing to w. Used for stderr output and tests.
func NewWriterLogger(w io.Writer, component string, level Level) *FileLogger {
	return &FileLogger{
		component: component,
		level:     level,
		sink:      &sink{logger: log.New(w, "", 0)},
	}
}

func newStderrLogger(component string, level Level) *FileLogger {
	return NewWriterLogger(os.Stderr, component, level)
}

// With returns a logger for another component sharing the same destination.
func (l *FileLogger) With(component string) *FileLogger {
	return &FileLogger{component: component, level: l.level, sink: l.sink}
}

func (l *FileLogger) write(level Level, format string, v ...interface{}) {
	if level < l.level {
		return
	}
	message := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.logger.Printf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

// Debugf logs a debug-level message
func (l *FileLogger) Debugf(format string, v ...interface{}) { l.write(LevelDebug, format, v...) }

// Infof logs an info-level message
func (l *FileLogger) Infof(format string, v ...interface{}) { l.write(LevelInfo, format, v...) }

// Warnf logs a warning-level message
func (l *FileLogger) Warnf(format string, v ...interface{}) { l.write(LevelWarn, format, v...) }

// Errorf logs an error-level message
func (l *FileLogger) Errorf(format string, v ...interface{}) { l.write(LevelError, format, v...) }

// LogPath returns the path to the log file, or "" when logging to a writer.
func (l *FileLogger) LogPath() string {
	return l.sink.path
}

// Close closes the log file. Safe to call multiple times.
func (l *FileLogger) Close() error {
	var err error
	l.sink.once.Do(func() {
		if l.sink.file != nil {
			err = l.sink.file.Close()
		}
	})
	return err
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}
