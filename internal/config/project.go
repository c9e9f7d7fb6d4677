package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rshade/carbonscope/internal/logging"
)

// EnvProjectDir overrides project directory discovery.
const EnvProjectDir = "CARBONSCOPE_PROJECT_DIR"

// ResolveProjectDir determines the project-local .carbonscope directory path.
// It checks (in order):
//  1. flagValue (--project-dir CLI flag)
//  2. CARBONSCOPE_PROJECT_DIR env var
//  3. the nearest ancestor of startDir containing a .carbonscope directory
//
// Returns an absolute path, or "" if no project is found. The global config
// directory is never treated as a project. Nothing is created.
func ResolveProjectDir(ctx context.Context, flagValue, startDir string) string {
	if flagValue != "" {
		return toAbsProjectDir(ctx, flagValue)
	}

	if envDir := os.Getenv(EnvProjectDir); envDir != "" {
		return toAbsProjectDir(ctx, envDir)
	}

	if startDir == "" {
		return ""
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	global, _ := filepath.Abs(ResolveConfigDir())
	for {
		candidate := filepath.Join(dir, defaultDirName)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() && candidate != global {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// NewWithProjectDir loads the global config then shallow-merges
// projectDir/config.yaml on top. An empty projectDir behaves like New.
func NewWithProjectDir(ctx context.Context, projectDir string) *Config {
	cfg := New()

	if projectDir == "" {
		return cfg
	}

	overlayPath := filepath.Join(projectDir, configFileName)
	if _, err := os.Stat(overlayPath); err != nil {
		// Missing project config is not an error.
		return cfg
	}

	cfgCopy := New()
	if err := ShallowMergeYAML(cfgCopy, overlayPath); err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Str("operation", "merge_project_config").
			Err(err).
			Str("overlay_path", overlayPath).
			Msg("failed to merge project config, using global defaults")
		return cfg
	}

	// Environment overrides win over the project file too.
	if err := cfgCopy.ApplyEnv(); err != nil {
		return cfg
	}
	return cfgCopy
}

// toAbsProjectDir converts dir to an absolute path ending in .carbonscope.
func toAbsProjectDir(ctx context.Context, dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		logger := logging.FromContext(ctx)
		logger.Warn().
			Str("component", "config").
			Err(err).
			Str("dir", dir).
			Msg("failed to resolve absolute path for project directory")
		abs = dir
	}

	if filepath.Base(abs) == defaultDirName {
		return abs
	}

	return filepath.Join(abs, defaultDirName)
}
