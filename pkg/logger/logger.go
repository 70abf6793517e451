package logger

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Level represents the severity of a log message
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

var (
	colorTime   = color.New(color.FgHiBlack)
	colorPrefix = color.New(color.FgCyan)
	colorFields = color.New(color.FgHiBlack)
	levelColors = map[Level]*color.Color{
		DebugLevel: color.New(color.FgHiBlack),
		InfoLevel:  color.New(color.FgGreen),
		WarnLevel:  color.New(color.FgYellow),
		ErrorLevel: color.New(color.FgRed),
		FatalLevel: color.New(color.FgRed, color.Bold),
	}
)

// exit is replaced in tests
var exit = os.Exit

// Logger is the main logger interface
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithPrefix(prefix string) Logger
}

// sink is shared by a logger and everything derived from it, so level and
// output changes apply to the whole family
type sink struct {
	mu       sync.Mutex
	level    Level
	out      io.Writer
	file     io.WriteCloser
	noColor  bool
	showTime bool
}

type logger struct {
	sink   *sink
	fields map[string]interface{}
	prefix string
}

// Config holds logger configuration
type Config struct {
	Level    Level
	Writer   io.Writer
	NoColor  bool
	ShowTime bool
}

var defaultLogger = New()

// New creates a stdout logger. Colour is disabled when stdout is not a terminal.
func New() Logger {
	return NewWithConfig(Config{
		Level:    InfoLevel,
		Writer:   os.Stdout,
		NoColor:  !term.IsTerminal(int(os.Stdout.Fd())),
		ShowTime: true,
	})
}

// NewWithConfig creates a logger with custom configuration
func NewWithConfig(cfg Config) Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &logger{
		sink: &sink{
			level:    cfg.Level,
			out:      cfg.Writer,
			noColor:  cfg.NoColor,
			showTime: cfg.ShowTime,
		},
		fields: make(map[string]interface{}),
	}
}

// Default returns the package-level logger
func Default() Logger {
	return defaultLogger
}

func defaultSink() *sink {
	if l, ok := defaultLogger.(*logger); ok {
		return l.sink
	}
	return nil
}

// SetLevel sets the global log level
func SetLevel(level Level) {
	if s := defaultSink(); s != nil {
		s.mu.Lock()
		s.level = level
		s.mu.Unlock()
	}
}

// GetLevel returns the global log level
func GetLevel() Level {
	if s := defaultSink(); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.level
	}
	return InfoLevel
}

// SetNoColor disables color output
func SetNoColor(noColor bool) {
	if s := defaultSink(); s != nil {
		s.mu.Lock()
		s.noColor = noColor
		s.mu.Unlock()
	}
}

// SetOutput redirects console output of the default logger
func SetOutput(w io.Writer) {
	if s := defaultSink(); s != nil && w != nil {
		s.mu.Lock()
		s.out = w
		s.mu.Unlock()
	}
}

// SetLogFile mirrors every line of the default logger to path, without colour.
// An empty path closes the current file.
func SetLogFile(path string) error {
	s := defaultSink()
	if s == nil {
		return nil
	}
	return s.setFile(path)
}

// CloseLogFile closes the file sink of the default logger, if any
func CloseLogFile() error {
	return SetLogFile("")
}

func (s *sink) setFile(path string) error {
	var f *os.File
	if path != "" {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
	}

	s.mu.Lock()
	old := s.file
	s.file = nil
	if f != nil {
		s.file = f
	}
	s.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// Helper methods for the default logger
func Debug(args ...interface{})                       { defaultLogger.Debug(args...) }
func Debugf(format string, args ...interface{})       { defaultLogger.Debugf(format, args...) }
func Info(args ...interface{})                        { defaultLogger.Info(args...) }
func Infof(format string, args ...interface{})        { defaultLogger.Infof(format, args...) }
func Warn(args ...interface{})                        { defaultLogger.Warn(args...) }
func Warnf(format string, args ...interface{})        { defaultLogger.Warnf(format, args...) }
func Error(args ...interface{})                       { defaultLogger.Error(args...) }
func Errorf(format string, args ...interface{})       { defaultLogger.Errorf(format, args...) }
func Fatal(args ...interface{})                       { defaultLogger.Fatal(args...) }
func Fatalf(format string, args ...interface{})       { defaultLogger.Fatalf(format, args...) }
func WithField(key string, value interface{}) Logger  { return defaultLogger.WithField(key, value) }
func WithFields(fields map[string]interface{}) Logger { return defaultLogger.WithFields(fields) }
func WithPrefix(prefix string) Logger                 { return defaultLogger.WithPrefix(prefix) }

// paint applies c unless colour is off
func paint(noColor bool, c *color.Color, s string) string {
	if noColor || c == nil {
		return s
	}
	return c.Sprint(s)
}

// format renders one line; the plain variant feeds the file sink
func (l *logger) format(level Level, message string, noColor, showTime bool, now time.Time) string {
	var parts []string

	if showTime {
		parts = append(parts, paint(noColor, colorTime, "["+now.Format("15:04:05.000")+"]"))
	}
	parts = append(parts, paint(noColor, levelColors[level], fmt.Sprintf("%-5s", strings.ToUpper(level.String()))))

	if l.prefix != "" {
		parts = append(parts, paint(noColor, colorPrefix, "["+l.prefix+"]"))
	}

	if len(l.fields) > 0 {
		keys := slices.Sorted(maps.Keys(l.fields))
		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
		parts = append(parts, paint(noColor, colorFields, strings.Join(fieldParts, " ")))
	}

	parts = append(parts, message)
	return strings.Join(parts, " ")
}

func (l *logger) log(level Level, args ...interface{}) {
	s := l.sink
	s.mu.Lock()
	if level < s.level {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	message := fmt.Sprint(args...)
	_, _ = fmt.Fprintln(s.out, l.format(level, message, s.noColor, s.showTime, now))
	if s.file != nil {
		_, _ = fmt.Fprintln(s.file, l.format(level, message, true, true, now))
	}
	s.mu.Unlock()

	if level == FatalLevel {
		exit(1)
	}
}

func (l *logger) logf(level Level, format string, args ...interface{}) {
	l.log(level, fmt.Sprintf(format, args...))
}

func (l *logger) Debug(args ...interface{})                 { l.log(DebugLevel, args...) }
func (l *logger) Debugf(format string, args ...interface{}) { l.logf(DebugLevel, format, args...) }
func (l *logger) Info(args ...interface{})                  { l.log(InfoLevel, args...) }
func (l *logger) Infof(format string, args ...interface{})  { l.logf(InfoLevel, format, args...) }
func (l *logger) Warn(args ...interface{})                  { l.log(WarnLevel, args...) }
func (l *logger) Warnf(format string, args ...interface{})  { l.logf(WarnLevel, format, args...) }
func (l *logger) Error(args ...interface{})                 { l.log(ErrorLevel, args...) }
func (l *logger) Errorf(format string, args ...interface{}) { l.logf(ErrorLevel, format, args...) }
func (l *logger) Fatal(args ...interface{})                 { l.log(FatalLevel, args...) }
func (l *logger) Fatalf(format string, args ...interface{}) { l.logf(FatalLevel, format, args...) }

// derive copies the logger's fields into a sibling sharing the same sink
func (l *logger) derive(prefix string) *logger {
	fields := maps.Clone(l.fields)
	if fields == nil {
		fields = make(map[string]interface{})
	}
	return &logger{
		sink:   l.sink,
		fields: fields,
		prefix: prefix,
	}
}

func (l *logger) WithField(key string, value interface{}) Logger {
	n := l.derive(l.prefix)
	n.fields[key] = value
	return n
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	n := l.derive(l.prefix)
	maps.Copy(n.fields, fields)
	return n
}

func (l *logger) WithPrefix(prefix string) Logger {
	return l.derive(prefix)
}

// ParseLevel parses a string log level, defaulting to info
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
