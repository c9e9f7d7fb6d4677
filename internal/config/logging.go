package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rshade/carbonscope/internal/logging"
)

// ToLoggingConfig converts the logging section to logging.Config.
//
//   - Level and Format are copied
//   - a set File selects file output, otherwise output goes to stderr
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
	}
}

// EnsureLogDir creates the directory of the configured log file.
func (lc LoggingConfig) EnsureLogDir() error {
	if lc.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(lc.File), 0o750); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	return nil
}
