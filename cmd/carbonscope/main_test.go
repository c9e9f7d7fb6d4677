package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rshade/carbonscope/internal/cli"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		assert.Equal(t, "carbonscope", root.Use)
		for _, name := range []string{"inventory", "strategy", "finance", "compliance", "scenario", "config", "serve"} {
			sub, _, err := root.Find([]string{name})
			assert.NoError(t, err, name)
			assert.Equal(t, name, sub.Name())
		}
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"invalid horizon", fmt.Errorf("projecting: %w", finance.ErrInvalidHorizon), exitInvalidInput},
		{"invalid scenario", scenario.ErrInvalidScenario, exitInvalidInput},
		{"conflicting request", fmt.Errorf("computing: %w", engine.ErrConflictingRequest), exitInvalidInput},
		{"not found", scenario.ErrNotFound, exitFailure},
		{"other", errors.New("disk full"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
