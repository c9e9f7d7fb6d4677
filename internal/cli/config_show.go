package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigShowCmd creates the config show command.
func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), a.cfg)
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
