package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()
	if cfg.APIURL != "" {
		t.Errorf("APIURL = %q, want empty", cfg.APIURL)
	}
	if cfg.SettleDelayMs != DefaultSettleDelayMs {
		t.Errorf("SettleDelayMs = %d, want %d", cfg.SettleDelayMs, DefaultSettleDelayMs)
	}
	if cfg.ProbeTimeoutMs != DefaultProbeTimeoutMs {
		t.Errorf("ProbeTimeoutMs = %d, want %d", cfg.ProbeTimeoutMs, DefaultProbeTimeoutMs)
	}
}

func TestApplyDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		cfg := &Config{}
		applyDefaults(cfg)
		if cfg.DeliveryTimeoutMs != DefaultDeliveryTimeoutMs {
			t.Errorf("DeliveryTimeoutMs = %d, want %d", cfg.DeliveryTimeoutMs, DefaultDeliveryTimeoutMs)
		}
		if cfg.RequestTimeoutMs != DefaultRequestTimeoutMs {
			t.Errorf("RequestTimeoutMs = %d, want %d", cfg.RequestTimeoutMs, DefaultRequestTimeoutMs)
		}
	})

	t.Run("preserves non-zero values", func(t *testing.T) {
		cfg := &Config{SettleDelayMs: 300, ProbeTimeoutMs: 250}
		applyDefaults(cfg)
		if cfg.SettleDelayMs != 300 {
			t.Errorf("SettleDelayMs = %d, want 300", cfg.SettleDelayMs)
		}
		if cfg.ProbeTimeoutMs != 250 {
			t.Errorf("ProbeTimeoutMs = %d, want 250", cfg.ProbeTimeoutMs)
		}
	})
}

func TestDurations(t *testing.T) {
	cfg := &Config{SettleDelayMs: 150, ProbeTimeoutMs: 1000, DeliveryTimeoutMs: 5000, RequestTimeoutMs: 60000}
	assert.Equal(t, 150*time.Millisecond, cfg.SettleDelay())
	assert.Equal(t, time.Second, cfg.ProbeTimeout())
	assert.Equal(t, 5*time.Second, cfg.DeliveryTimeout())
	assert.Equal(t, time.Minute, cfg.RequestTimeout())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := &Config{APIURL: "https://verifai.example.org/analyze", SettleDelayMs: 200}
	require.NoError(t, SaveTo(path, cfg))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://verifai.example.org/analyze", loaded.APIURL)
	assert.Equal(t, 200, loaded.SettleDelayMs)
	assert.Equal(t, DefaultProbeTimeoutMs, loaded.ProbeTimeoutMs, "missing fields get defaults")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestLoadFrom_Missing(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, defaults(), cfg)
}

func TestLoadFrom_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"http", "http://localhost:8000/analyze", false},
		{"https", "https://api.example.org/analyze", false},
		{"no scheme", "localhost:8000/analyze", true},
		{"ftp", "ftp://example.org/analyze", true},
		{"empty", "", true},
		{"relative", "/analyze", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEndpoint)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("VERIFAI_DOTENV_PROBE=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("VERIFAI_DOTENV_PROBE") })

	require.NoError(t, LoadDotenv(filepath.Join(dir, "missing.env"), envPath))
	assert.Equal(t, "from-file", os.Getenv("VERIFAI_DOTENV_PROBE"))
}
