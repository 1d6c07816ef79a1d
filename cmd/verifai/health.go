package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shhac/verifai/internal/api"
	"github.com/shhac/verifai/internal/config"
)

// NewHealthCmd creates the health command.
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis service is reachable",
		Args:  cobra.NoArgs,
		RunE:  runHealthCmd,
	}
}

func runHealthCmd(cmd *cobra.Command, _ []string) error {
	cfgPath, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cmd.ErrOrStderr())

	endpoint := (&config.EndpointResolver{Path: cfgPath, Logger: logger}).Endpoint()
	healthURL, err := api.HealthURL(endpoint)
	if err != nil {
		return err
	}
	client := newClient(cfgPath, cfg, endpoint, logger)
	if err := client.Health(cmd.Context()); err != nil {
		return fmt.Errorf("service at %s is not healthy: %w", healthURL, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", healthURL)
	return nil
}
