package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/shhac/verifai/internal/api"
	"github.com/shhac/verifai/internal/config"
	"github.com/shhac/verifai/internal/demo"
)

// demoServer is the demo analysis service running in-process.
type demoServer struct {
	URL  string
	srv  *http.Server
	errc <-chan error
}

// startDemo serves the demo analysis service on addr. Every analysis takes
// at least delay.
func startDemo(addr string, delay time.Duration, logger *slog.Logger) (*demoServer, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start demo service: %w", err)
	}
	svc := demo.NewService(logger)
	svc.Delay = delay
	srv, errc := svc.Serve(l)
	return &demoServer{URL: "http://" + l.Addr().String(), srv: srv, errc: errc}, nil
}

// AnalyzeURL is the demo service's analysis endpoint.
func (d *demoServer) AnalyzeURL() string { return d.URL + "/analyze" }

// Shutdown stops the service and returns its serve error, if any.
func (d *demoServer) Shutdown(ctx context.Context) error {
	if err := d.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop demo service: %w", err)
	}
	return <-d.errc
}

// newClient builds the analysis client. The endpoint is resolved on every
// call from the environment and the config file at cfgPath, unless a fixed
// endpoint is given.
func newClient(cfgPath string, cfg *config.Config, fixed string, logger *slog.Logger) *api.Client {
	endpoint := (&config.EndpointResolver{Path: cfgPath, Logger: logger}).Endpoint
	if fixed != "" {
		endpoint = api.StaticEndpoint(fixed)
	}
	return api.NewClient(endpoint, api.WithTimeout(cfg.RequestTimeout()), api.WithLogger(logger))
}
