package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shhac/verifai/internal/config"
	"github.com/shhac/verifai/internal/logging"
)

// NewRootCmd creates the root command for verifai.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verifai",
		Short: "Check selected text for manipulation techniques",
		Long: `verifai sends selected text to an analysis service and shows which
manipulation techniques it found, an explanation and any debunked claims.

The service endpoint defaults to ` + config.DefaultAPIURL + `. It can be
persisted with 'verifai config set-endpoint' or overridden through the
` + config.EndpointEnvVar + ` environment variable, which is also read from a
.env file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, err := cmd.Flags().GetString("env-file")
			if err != nil {
				return err
			}
			return config.LoadDotenv(envFile)
		},
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", config.ConfigPath(), "Path to the config file")
	cmd.PersistentFlags().String("env-file", ".env", "Load environment overrides from this file if it exists")

	// Add subcommands
	cmd.AddCommand(NewPageCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewHealthCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewDemoCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the command's logger: warnings only, or everything
// with --verbose.
func newLogger(cmd *cobra.Command, w io.Writer) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return logging.New(w, logging.Options{Level: level})
}

// loadConfig reads the file named by --config.
func loadConfig(cmd *cobra.Command) (string, *config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}
