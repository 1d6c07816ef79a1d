package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestEndpointResolver_Default(t *testing.T) {
	r := &EndpointResolver{Path: filepath.Join(t.TempDir(), "config.json"), Getenv: noEnv}
	assert.Equal(t, DefaultAPIURL, r.Endpoint())
}

func TestEndpointResolver_PersistedOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	r := &EndpointResolver{Path: path, Getenv: noEnv}

	require.NoError(t, SaveTo(path, &Config{APIURL: "http://10.0.0.5:9000/analyze"}))
	assert.Equal(t, "http://10.0.0.5:9000/analyze", r.Endpoint())

	// Read per call: a later change applies without a new resolver.
	require.NoError(t, SaveTo(path, &Config{APIURL: "http://10.0.0.6:9000/analyze"}))
	assert.Equal(t, "http://10.0.0.6:9000/analyze", r.Endpoint())
}

func TestEndpointResolver_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, SaveTo(path, &Config{APIURL: "http://persisted/analyze"}))

	r := &EndpointResolver{Path: path, Getenv: func(key string) string {
		if key == EndpointEnvVar {
			return " http://from-env/analyze "
		}
		return ""
	}}
	assert.Equal(t, "http://from-env/analyze", r.Endpoint())
}

func TestEndpointResolver_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("]]"), 0o644))

	r := &EndpointResolver{Path: path, Getenv: noEnv}
	assert.Equal(t, DefaultAPIURL, r.Endpoint())
}
