// Package demo is an in-process stand-in for the analysis service, used by
// the terminal page in demo mode and by tests. It speaks the same HTTP API:
// POST /analyze, POST /analyze-test and GET /health.
package demo

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shhac/verifai/internal/protocol"
)

// MaxContentLength mirrors the service's request validation.
const MaxContentLength = 10000

// DefaultTestDelay is how long /analyze-test takes, like the real service.
const DefaultTestDelay = 500 * time.Millisecond

// Service answers analysis requests from canned rules.
type Service struct {
	// Delay is added to every /analyze call.
	Delay time.Duration
	// DelayFor overrides Delay per request content when it returns a
	// positive duration.
	DelayFor func(content string) time.Duration
	// TestDelay is added to every /analyze-test call.
	TestDelay time.Duration

	logger *slog.Logger
}

// NewService creates a service with the default delays.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{TestDelay: DefaultTestDelay, logger: logger.With("component", "demo")}
}

// Handler returns the service's HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /analyze-test", s.handleAnalyzeTest)
	return mux
}

// Serve runs the service on l until the server is shut down. It returns the
// server so callers can stop it.
func (s *Service) Serve(l net.Listener) (*http.Server, <-chan error) {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		err := srv.Serve(l)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()
	return srv, errc
}

// Classify runs the demo rules over content.
func Classify(content string) protocol.AnalysisResult {
	lower := strings.ToLower(content)

	result := protocol.AnalysisResult{Techniques: []string{}, Disinfo: []string{}}
	var reasons []string
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				result.Techniques = append(result.Techniques, r.technique)
				reasons = append(reasons, r.reason)
				break
			}
		}
	}
	for _, c := range claims {
		if strings.Contains(lower, c.trigger) {
			result.Disinfo = append(result.Disinfo, c.text)
		}
	}

	result.Manipulation = len(result.Techniques) > 0
	switch {
	case len(reasons) > 0:
		result.Explanation = "The text " + joinReasons(reasons) + "."
	case len(result.Disinfo) > 0:
		result.Explanation = "No manipulation techniques were found, but the text contains claims that could not be verified."
	default:
		result.Explanation = "The text reads as neutral reporting."
	}
	return result
}

func joinReasons(reasons []string) string {
	if len(reasons) == 1 {
		return reasons[0]
	}
	return strings.Join(reasons[:len(reasons)-1], ", ") + " and " + reasons[len(reasons)-1]
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decode(w, r)
	if !ok {
		return
	}

	delay := s.Delay
	if s.DelayFor != nil {
		if d := s.DelayFor(req.Content); d > 0 {
			delay = d
		}
	}
	if !wait(r, delay) {
		return
	}

	if strings.Contains(req.Content, errorTrigger) {
		s.logger.Info("demo failure requested")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "demo failure"})
		return
	}

	result := Classify(req.Content)
	s.logger.Debug("analyzed", "content", req.Content, "manipulation", result.Manipulation, "techniques", len(result.Techniques))
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleAnalyzeTest(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.decode(w, r); !ok {
		return
	}
	if !wait(r, s.TestDelay) {
		return
	}
	writeJSON(w, http.StatusOK, testResult)
}

// decode parses and validates a request body the way the service does,
// answering 422 for content that is empty or too long.
func (s *Service) decode(w http.ResponseWriter, r *http.Request) (protocol.AnalysisRequest, bool) {
	var req protocol.AnalysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4*MaxContentLength+1024)).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: fmt.Sprintf("invalid body: %v", err)})
		return req, false
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "Content cannot be empty or whitespace only"})
		return req, false
	}
	if utf8.RuneCountInString(req.Content) > MaxContentLength {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: fmt.Sprintf("Content exceeds %d characters", MaxContentLength)})
		return req, false
	}
	return req, true
}

func wait(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
