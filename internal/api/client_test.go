package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/verifai/internal/protocol"
)

func TestAnalyzeSuccess(t *testing.T) {
	var gotBody protocol.AnalysisRequest
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"manipulation":true,"techniques":["fear_appeals"],"explanation":"Scary.","disinfo":["claim"]}`))
	}))
	defer srv.Close()

	c := NewClient(StaticEndpoint(srv.URL + "/analyze"))
	res, err := c.Analyze(context.Background(), "They are coming for you.")
	require.NoError(t, err)

	assert.Equal(t, "They are coming for you.", gotBody.Content)
	assert.Equal(t, "application/json", gotContentType)
	assert.True(t, res.Manipulation)
	assert.Equal(t, []string{"fear_appeals"}, res.Techniques)
	assert.Equal(t, "Scary.", res.Explanation)
	assert.Equal(t, []string{"claim"}, res.Disinfo)
}

func TestAnalyzeToleratesMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"manipulation":false}`))
	}))
	defer srv.Close()

	res, err := NewClient(StaticEndpoint(srv.URL)).Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.False(t, res.Manipulation)
	assert.Empty(t, res.Techniques)
	assert.False(t, res.HasExplanation())
	assert.False(t, res.HasDisinfo())
}

func TestAnalyzeNon2xx(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"server error", http.StatusInternalServerError, "API error: 500 Internal Server Error"},
		{"unprocessable", http.StatusUnprocessableEntity, "API error: 422 Unprocessable Entity"},
		{"not found", http.StatusNotFound, "API error: 404 Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewClient(StaticEndpoint(srv.URL)).Analyze(context.Background(), "text")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *Error", err)
			}
			if apiErr.Error() != tt.want {
				t.Errorf("message = %q, want %q", apiErr.Error(), tt.want)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
		})
	}
}

func TestAnalyzeMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(StaticEndpoint(srv.URL)).Analyze(context.Background(), "text")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, strings.HasPrefix(apiErr.Message, "invalid response: "), apiErr.Message)
}

func TestAnalyzeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/analyze"
	srv.Close()

	_, err := NewClient(StaticEndpoint(endpoint)).Analyze(context.Background(), "text")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(StaticEndpoint(srv.URL), WithTimeout(30*time.Millisecond))
	_, err := c.Analyze(context.Background(), "text")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalyzeContentGuards(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"manipulation":false}`))
	}))
	defer srv.Close()
	c := NewClient(StaticEndpoint(srv.URL))

	_, err := c.Analyze(context.Background(), "   \n")
	assert.ErrorIs(t, err, ErrEmptyContent)

	_, err = c.Analyze(context.Background(), strings.Repeat("a", MaxContentLength+1))
	assert.ErrorIs(t, err, ErrContentTooLong)

	// The limit counts characters, not bytes.
	_, err = c.Analyze(context.Background(), strings.Repeat("é", MaxContentLength))
	assert.NoError(t, err)

	assert.Equal(t, 1, calls, "rejected content never reaches the network")
}

func TestAnalyzeResolvesEndpointPerCall(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		_, _ = w.Write([]byte(`{"manipulation":false}`))
	}))
	defer srv.Close()

	path := "/one"
	c := NewClient(func() string { return srv.URL + path })

	_, err := c.Analyze(context.Background(), "a")
	require.NoError(t, err)
	path = "/two"
	_, err = c.Analyze(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"/one", "/two"}, hits)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"ok", http.StatusOK, `{"status":"ok"}`, false},
		{"degraded", http.StatusOK, `{"status":"degraded"}`, true},
		{"down", http.StatusServiceUnavailable, ``, true},
		{"garbage", http.StatusOK, `ok`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				path = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewClient(StaticEndpoint(srv.URL + "/analyze")).Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Health() error = %v, wantErr %v", err, tt.wantErr)
			}
			if path != "/health" {
				t.Errorf("path = %q, want /health", path)
			}
		})
	}
}

func TestHealthURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{"http://localhost:8000/analyze", "http://localhost:8000/health", false},
		{"https://api.example.com/v1/analyze?x=1", "https://api.example.com/health", false},
		{"localhost:8000", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := HealthURL(tt.endpoint)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HealthURL(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HealthURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}
