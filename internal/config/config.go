package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// AppName names the config and state directories.
const AppName = "verifai"

// EndpointEnvVar overrides the persisted endpoint when set.
const EndpointEnvVar = "VERIFAI_API_URL"

// Config holds application configuration.
type Config struct {
	// APIURL overrides the analysis endpoint. Empty means DefaultAPIURL.
	APIURL            string `json:"apiUrl,omitempty"`
	ProbeTimeoutMs    int    `json:"probeTimeoutMs"`
	SettleDelayMs     int    `json:"settleDelayMs"`
	DeliveryTimeoutMs int    `json:"deliveryTimeoutMs"`
	RequestTimeoutMs  int    `json:"requestTimeoutMs"`
}

// Defaults
const (
	DefaultAPIURL            = "http://localhost:8000/analyze"
	DefaultProbeTimeoutMs    = 1000
	DefaultSettleDelayMs     = 150
	DefaultDeliveryTimeoutMs = 5000
	DefaultRequestTimeoutMs  = 60000
)

// ErrInvalidEndpoint is returned for endpoint overrides that are not
// absolute http(s) URLs.
var ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http or https URL")

// DefaultConfigDir returns the XDG config directory for verifai.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultStateDir returns the XDG state directory, where logs are written.
func DefaultStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the default config file, returning defaults for missing fields.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config file at path. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to the default location.
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path atomically.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename config: %w", err)
	}

	return nil
}

// LoadDotenv loads environment overrides from the given .env files. Missing
// files are skipped.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ValidateEndpoint checks that raw can be used as the analysis endpoint.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
	return nil
}

// ProbeTimeout returns the ping round-trip bound.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutMs) * time.Millisecond
}

// SettleDelay returns how long to wait after injecting the page script.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// DeliveryTimeout returns the bound for delivering one notice to a page.
func (c *Config) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the bound for one call to the analysis service.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func defaults() *Config {
	return &Config{
		ProbeTimeoutMs:    DefaultProbeTimeoutMs,
		SettleDelayMs:     DefaultSettleDelayMs,
		DeliveryTimeoutMs: DefaultDeliveryTimeoutMs,
		RequestTimeoutMs:  DefaultRequestTimeoutMs,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ProbeTimeoutMs == 0 {
		cfg.ProbeTimeoutMs = DefaultProbeTimeoutMs
	}
	if cfg.SettleDelayMs == 0 {
		cfg.SettleDelayMs = DefaultSettleDelayMs
	}
	if cfg.DeliveryTimeoutMs == 0 {
		cfg.DeliveryTimeoutMs = DefaultDeliveryTimeoutMs
	}
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = DefaultRequestTimeoutMs
	}
}
