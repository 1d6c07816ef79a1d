package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewDemoCmd creates the demo-server command.
func NewDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo-server",
		Short: "Run the demo analysis service",
		Long: `Demo-server answers /analyze, /analyze-test and /health with canned,
keyword-based results, so the page and analyze commands can be tried without
the real service.

Examples:
  verifai demo-server --addr 127.0.0.1:8000
  VERIFAI_API_URL=http://127.0.0.1:8000/analyze verifai page`,
		Args: cobra.NoArgs,
		RunE: runDemoCmd,
	}
	cmd.Flags().String("addr", "127.0.0.1:8000", "Address to listen on")
	cmd.Flags().Duration("delay", defaultDemoDelay, "How long each analysis takes")
	return cmd
}

func runDemoCmd(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	delay, _ := cmd.Flags().GetDuration("delay")
	logger := newLogger(cmd, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := startDemo(addr, delay, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "demo service listening on %s\n", d.AnalyzeURL())

	select {
	case <-ctx.Done():
	case err := <-d.errc:
		return err
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Shutdown(sctx)
}
