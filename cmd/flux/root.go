package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
)

const (
	// defaultConfigPath is read when present; without it defaults apply.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar overrides the config file location.
	configEnvVar = "FLUX_CONFIG"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	envFile    string
}

// newRootCommand creates the flux command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "flux",
		Short:         "Flux LED node configuration API",
		Long:          "Serves display configuration to LED controller nodes and accepts updates from the Flux app.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(opts.envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default $"+configEnvVar+" or "+defaultConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded when present")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newNodesCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flux %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// loadEnvFile loads KEY=value pairs into the environment. Variables that
// are already set win. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the config file: the flag, then FLUX_CONFIG, then
// the default path if it exists. An empty result means defaults only.
func resolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// loadConfig resolves and loads the configuration.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path := resolveConfigPath(opts.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}
