package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	defaultSink     *sink
	defaultSinkOnce sync.Once

	levelPaint = map[Level]*color.Color{
		LevelDebug: color.New(color.FgHiBlack),
		LevelInfo:  color.New(color.FgCyan),
		LevelWarn:  color.New(color.FgYellow),
		LevelError: color.New(color.FgRed, color.Bold),
	}
)

// sink is the shared writer behind every component logger: stderr always,
// plus an append-only debug file when one could be opened.
type sink struct {
	mu    sync.Mutex
	level Level
	file  *log.Logger
	fh    *os.File
}

func getSink() *sink {
	defaultSinkOnce.Do(func() {
		defaultSink = &sink{level: ParseLevel(os.Getenv("SCENEFORGE_LOG_LEVEL"))}
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		path := filepath.Join(home, "sceneforge-debug.log")
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return
		}
		defaultSink.fh = fh
		defaultSink.file = log.New(fh, "", 0)
	})
	return defaultSink
}

// SetDefaultLevel adjusts the minimum level of the shared sink.
func SetDefaultLevel(level Level) {
	s := getSink()
	s.mu.Lock()
	s.level = level
	s.mu.Unlock()
}

// ComponentLogger emits leveled, timestamped lines tagged with a component
// name. It satisfies Logger.
type ComponentLogger struct {
	component string
	sink      *sink
}

// NewComponentLogger returns a logger scoped to a component name.
func NewComponentLogger(component string) *ComponentLogger {
	return &ComponentLogger{component: component, sink: getSink()}
}

func (l *ComponentLogger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *ComponentLogger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *ComponentLogger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *ComponentLogger) Error(format string, args ...any) { l.log(LevelError, format, args...) }

func (l *ComponentLogger) log(level Level, format string, args ...any) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "sceneforge"
	}
	message := sanitize(fmt.Sprintf(format, args...))

	// Format: 2026-01-02 15:04:05 [INFO] [bridge] file.go:42 - message
	plain := fmt.Sprintf("%s [%s] [%s] %s:%d - %s",
		timestamp, levelString(level), component, file, line, message)
	if s.file != nil {
		s.file.Print(plain)
	}

	tag := levelString(level)
	if paint, found := levelPaint[level]; found {
		tag = paint.Sprint(tag)
	}
	fmt.Fprintf(os.Stderr, "%s [%s] [%s] %s:%d - %s\n",
		timestamp, tag, component, file, line, message)
}

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
		return "INFO"
	}
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[a-z0-9._\-]{12,}`),
	regexp.MustCompile(`\bsk-[a-zA-Z0-9]{8,}\b`),
}

// sanitize scrubs credential-shaped substrings before a line reaches any sink.
func sanitize(line string) string {
	for _, pattern := range secretPatterns {
		line = pattern.ReplaceAllString(line, "$1[redacted]")
	}
	return line
}

// CloseDefaultSink flushes and closes the shared debug file, if open.
func CloseDefaultSink() error {
	s := getSink()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fh == nil {
		return nil
	}
	err := s.fh.Close()
	s.fh = nil
	s.file = nil
	return err
}
