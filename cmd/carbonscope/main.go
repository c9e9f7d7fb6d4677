// Command carbonscope is the greenhouse-gas accounting CLI.
package main

import (
	"errors"
	"os"

	"github.com/rshade/carbonscope/internal/cli"
	"github.com/rshade/carbonscope/internal/compare"
	"github.com/rshade/carbonscope/internal/engine"
	"github.com/rshade/carbonscope/internal/finance"
	"github.com/rshade/carbonscope/internal/inventory"
	"github.com/rshade/carbonscope/internal/scenario"
	"github.com/rshade/carbonscope/internal/strategy"
	"github.com/rshade/carbonscope/pkg/version"
)

// Exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitInvalidInput = 2
)

// invalidInput lists errors caused by the caller's input rather than the
// environment.
//
//nolint:gochecknoglobals // Fixed lookup table.
var invalidInput = []error{
	inventory.ErrUnknownCategory,
	inventory.ErrInvalidQuantity,
	strategy.ErrInvalidTarget,
	strategy.ErrStrategyNotFound,
	finance.ErrInvalidDiscountRate,
	finance.ErrInvalidHorizon,
	finance.ErrInvalidAmount,
	compare.ErrInvalidComparisonSize,
	scenario.ErrInvalidScenario,
	engine.ErrConflictingRequest,
}

func run() error {
	return cli.NewRootCmd(version.GetVersion()).Execute()
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	for _, target := range invalidInput {
		if errors.Is(err, target) {
			return exitInvalidInput
		}
	}
	return exitFailure
}

func main() {
	os.Exit(exitCode(run()))
}
