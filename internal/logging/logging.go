// Package logging builds zerolog loggers from configuration and carries them
// through context.Context.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output and format identifiers accepted in Config.
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputFile   = "file"

	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config describes how a logger should be built.
type Config struct {
	Level  string
	Format string
	Output string
	File   string
	Caller bool
}

// LogPathResult is the outcome of NewLoggerWithPath. When a file was requested
// but could not be opened, the logger falls back to stderr and FallbackUsed is set.
type LogPathResult struct {
	Logger         zerolog.Logger
	UsingFile      bool
	FilePath       string
	FallbackUsed   bool
	FallbackReason string

	file *os.File
}

// Close releases the log file handle, if any.
func (r *LogPathResult) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// NewLogger builds a logger writing to w with the given level and format.
func NewLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// NewLoggerWithPath builds a logger from cfg. File output is opened in append
// mode; failures degrade to stderr rather than aborting the command.
func NewLoggerWithPath(cfg Config) LogPathResult {
	var result LogPathResult
	var w io.Writer = os.Stderr

	switch cfg.Output {
	case OutputStdout:
		w = os.Stdout
	case OutputFile:
		f, err := openLogFile(cfg.File)
		if err != nil {
			result.FallbackUsed = true
			result.FallbackReason = err.Error()
			break
		}
		w = f
		result.file = f
		result.UsingFile = true
		result.FilePath = cfg.File
	}

	format := cfg.Format
	if result.UsingFile && format == "" {
		format = FormatJSON
	}

	logger := NewLogger(w, cfg.Level, format)
	if cfg.Caller {
		logger = logger.With().Caller().Logger()
	}
	result.Logger = logger
	return result
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("log output is %q but no file path is configured", OutputFile)
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
}

// ComponentLogger returns a child logger tagged with a component name.
func ComponentLogger(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// PrintLogPathMessage tells the user where log output is going.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning reports that file logging was requested but unavailable.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: file logging unavailable (%s), logging to stderr\n", reason)
}
