package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonscope/internal/config"
)

// newConfigInitCmd creates the config init command. Inside a project with a
// .carbonscope directory it writes the project overlay, otherwise the global
// config file.
func newConfigInitCmd(a *app) *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

Inside a project (a directory tree with .carbonscope/, or --project-dir), creates
$PROJECT/.carbonscope/config.yaml with a .gitignore that keeps scenario stores
and logs out of version control. Use --global to write ~/.carbonscope/config.yaml.`,
		Example: `  # Create project-local configuration
  carbonscope config init --project-dir .

  # Create global configuration
  carbonscope config init --global

  # Overwrite an existing file
  carbonscope config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.configPath != "" {
				return writeDefaultConfig(cmd, a.configPath, force)
			}

			cwd, _ := os.Getwd()
			projectDir := config.ResolveProjectDir(cmd.Context(), a.projectDir, cwd)
			if projectDir != "" && !global {
				return initProjectConfig(cmd, projectDir, force)
			}
			return writeDefaultConfig(cmd, config.DefaultConfigPath(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "write the global config even inside a project")

	return cmd
}

// initProjectConfig creates projectDir/config.yaml and its .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	if err := writeDefaultConfig(cmd, filepath.Join(projectDir, "config.yaml"), force); err != nil {
		return err
	}

	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	if created {
		cmd.Printf("Created .gitignore to keep scenario stores out of version control\n")
	}
	return nil
}

func writeDefaultConfig(cmd *cobra.Command, path string, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", path, err)
		}
	}

	if err := config.Defaults().Save(path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	cmd.Printf("Configuration initialized at %s\n", path)
	return nil
}
