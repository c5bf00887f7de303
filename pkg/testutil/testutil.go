// Package testutil provides testing utilities for the tap
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// RecordedRequest is one request observed by an APIServer.
type RecordedRequest struct {
	Path          string
	Query         url.Values
	Authorization string
}

// Response is a scripted reply. An empty Status means 200.
type Response struct {
	Status int
	Body   string
}

// APIServer serves scripted JSON responses keyed by path and records every
// request it receives. Responses for one path are consumed in order; the
// last one repeats once the script runs out.
type APIServer struct {
	*httptest.Server

	mu       sync.Mutex
	scripts  map[string][]Response
	requests []RecordedRequest
}

// NewAPIServer starts a server with keep-alives disabled so each test
// leaves no idle connections behind.
func NewAPIServer(t *testing.T, scripts map[string][]Response) *APIServer {
	t.Helper()

	s := &APIServer{scripts: make(map[string][]Response, len(scripts))}
	for path, responses := range scripts {
		s.scripts[path] = append([]Response(nil), responses...)
	}

	s.Server = httptest.NewUnstartedServer(http.HandlerFunc(s.handle))
	s.Config.SetKeepAlivesEnabled(false)
	s.Start()
	t.Cleanup(s.Close)
	return s
}

func (s *APIServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
	})
	script, ok := s.scripts[r.URL.Path]
	var resp Response
	if ok && len(script) > 0 {
		resp = script[0]
		if len(script) > 1 {
			s.scripts[r.URL.Path] = script[1:]
		}
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}

// Requests returns a snapshot of the requests received so far.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestPaths returns the paths of all requests in arrival order.
func (s *APIServer) RequestPaths() []string {
	reqs := s.Requests()
	paths := make([]string, len(reqs))
	for i, r := range reqs {
		paths[i] = r.Path
	}
	return paths
}
