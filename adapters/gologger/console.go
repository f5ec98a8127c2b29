package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// ConsoleLogger writes glog calls through a slog handler. Trace maps to
// debug and Fatal logs at error before exiting.
type ConsoleLogger struct {
	logger *slog.Logger
	exit   func(int)
}

type ConsoleOptions struct {
	Format string
	Level  string
	Output io.Writer
}

func NewConsoleLogger(name string, opts ConsoleOptions) *ConsoleLogger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatText) {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	logger := slog.New(handler)
	if name = strings.TrimSpace(name); name != "" {
		logger = logger.With(slog.String("logger", name))
	}
	return &ConsoleLogger{logger: logger, exit: os.Exit}
}

func (l *ConsoleLogger) Trace(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *ConsoleLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *ConsoleLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *ConsoleLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *ConsoleLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *ConsoleLogger) Fatal(msg string, args ...any) {
	l.logger.Error(msg, args...)
	l.exit(1)
}

func (l *ConsoleLogger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *ConsoleLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, slog.Any(key, fields[key]))
	}
	return &ConsoleLogger{logger: l.logger.With(attrs...), exit: l.exit}
}

// GetLogger returns a child logger tagged with name.
func (l *ConsoleLogger) GetLogger(name string) glog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &ConsoleLogger{logger: l.logger.With(slog.String("component", name)), exit: l.exit}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	_ glog.Logger         = (*ConsoleLogger)(nil)
	_ glog.FieldsLogger   = (*ConsoleLogger)(nil)
	_ glog.LoggerProvider = (*ConsoleLogger)(nil)
)
