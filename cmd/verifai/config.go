package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shhac/verifai/internal/config"
)

// NewConfigCmd creates the config command and its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the persisted settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the settings in effect",
			Args:  cobra.NoArgs,
			RunE:  runConfigShow,
		},
		&cobra.Command{
			Use:   "set-endpoint URL",
			Short: "Persist the analysis endpoint",
			Args:  cobra.ExactArgs(1),
			RunE:  runConfigSetEndpoint,
		},
		&cobra.Command{
			Use:   "unset-endpoint",
			Short: "Go back to the default analysis endpoint",
			Args:  cobra.NoArgs,
			RunE:  runConfigUnsetEndpoint,
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := cmd.Flags().GetString("config")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	path, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cmd.ErrOrStderr())
	endpoint := (&config.EndpointResolver{Path: path, Logger: logger}).Endpoint()

	source := "default"
	switch {
	case strings.TrimSpace(os.Getenv(config.EndpointEnvVar)) != "":
		source = config.EndpointEnvVar
	case strings.TrimSpace(cfg.APIURL) != "":
		source = path
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config file:      %s\n", path)
	fmt.Fprintf(out, "endpoint:         %s (%s)\n", endpoint, source)
	fmt.Fprintf(out, "probe timeout:    %s\n", cfg.ProbeTimeout())
	fmt.Fprintf(out, "settle delay:     %s\n", cfg.SettleDelay())
	fmt.Fprintf(out, "delivery timeout: %s\n", cfg.DeliveryTimeout())
	fmt.Fprintf(out, "request timeout:  %s\n", cfg.RequestTimeout())
	return nil
}

func runConfigSetEndpoint(cmd *cobra.Command, args []string) error {
	endpoint := strings.TrimSpace(args[0])
	if err := config.ValidateEndpoint(endpoint); err != nil {
		return err
	}
	path, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.APIURL = endpoint
	if err := config.SaveTo(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "endpoint set to %s\n", endpoint)
	return nil
}

func runConfigUnsetEndpoint(cmd *cobra.Command, _ []string) error {
	path, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.APIURL = ""
	if err := config.SaveTo(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "endpoint reset to %s\n", config.DefaultAPIURL)
	return nil
}
