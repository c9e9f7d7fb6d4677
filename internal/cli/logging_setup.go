package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/logging"
)

// setupLogging configures logging from the loaded config and CLI flags, and
// stores the logger and a trace id in the command context.
func (a *app) setupLogging(cmd *cobra.Command) {
	loggingCfg := a.cfg.Logging

	if a.debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	// Ensure log directory exists after all overrides have been applied.
	if err := loggingCfg.EnsureLogDir(); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not create log directory: %v\n", err)
	}

	result := logging.NewLoggerWithPath(loggingCfg.ToLoggingConfig())
	a.logResult = &result
	a.baseLogger = result.Logger
	a.logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = a.logger.WithContext(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	cmd.SetContext(ctx)

	a.logger.Debug().Ctx(ctx).Str("command", cmd.CommandPath()).Msg("command started")
}

// cleanupLogging closes the log file handle.
func (a *app) cleanupLogging() error {
	if a.logResult != nil {
		return a.logResult.Close()
	}
	return nil
}
