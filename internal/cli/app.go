package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/config"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/logging"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/storage"
)

// app is the state shared by every command of one invocation.
type app struct {
	debug      bool
	configPath string
	projectDir string
	output     string

	cfg        *config.Config
	baseLogger zerolog.Logger
	logger     zerolog.Logger
	logResult  *logging.LogPathResult
	store      storage.Store
}

// setup loads configuration and logging before any command runs.
func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
		cmd.SetContext(ctx)
	}

	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		cwd, _ := os.Getwd()
		a.cfg = config.NewWithProjectDir(ctx, config.ResolveProjectDir(ctx, a.projectDir, cwd))
	}

	if a.output == "" {
		a.output = a.cfg.Output.DefaultFormat
	}
	if !slices.Contains([]string{config.FormatTable, config.FormatJSON}, a.output) {
		return fmt.Errorf("unsupported output format %q (use table or json)", a.output)
	}

	a.setupLogging(cmd)
	return nil
}

// cleanup releases the store and log file.
func (a *app) cleanup(_ *cobra.Command) error {
	var storeErr error
	if a.store != nil {
		storeErr = a.store.Close()
		a.store = nil
	}
	if err := a.cleanupLogging(); err != nil {
		return err
	}
	return storeErr
}

// engine builds an engine over the reference data named in the config. The
// scenario store is opened only when withStore is set.
func (a *app) engine(ctx context.Context, withStore bool) (*engine.Engine, error) {
	var repo scenario.Repository
	if withStore {
		store, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		repo = store
	}
	return engine.NewFromConfig(ctx, a.cfg, repo)
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := storage.Open(ctx, a.cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("opening scenario store: %w", err)
	}
	a.store = store
	return store, nil
}

// scenarios returns the scenario service over the configured store.
func (a *app) scenarios(ctx context.Context) (*scenario.Service, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return scenario.NewService(store), nil
}

func (a *app) jsonOutput() bool { return a.output == config.FormatJSON }

func (a *app) precision() int {
	if a.cfg == nil {
		return 2
	}
	return a.cfg.Output.Precision
}
