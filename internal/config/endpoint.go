package config

import (
	"log/slog"
	"os"
	"strings"
)

// EndpointResolver reads the analysis endpoint afresh on every call, so a
// changed setting applies to the next analysis without a restart.
type EndpointResolver struct {
	// Path is the config file consulted for the persisted override.
	Path string
	// Getenv reads the environment override. Defaults to os.Getenv.
	Getenv func(string) string
	Logger *slog.Logger
}

// NewEndpointResolver resolves against the default config file.
func NewEndpointResolver(logger *slog.Logger) *EndpointResolver {
	return &EndpointResolver{Path: ConfigPath(), Logger: logger}
}

// Endpoint returns, in order of precedence, the environment override, the
// persisted apiUrl, or DefaultAPIURL.
func (r *EndpointResolver) Endpoint() string {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EndpointEnvVar)); v != "" {
		return v
	}

	cfg, err := LoadFrom(r.Path)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("config unreadable, using default endpoint", "path", r.Path, "error", err)
		}
		return DefaultAPIURL
	}
	if v := strings.TrimSpace(cfg.APIURL); v != "" {
		return v
	}
	return DefaultAPIURL
}
