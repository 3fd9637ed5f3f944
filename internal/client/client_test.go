package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"subburn/internal/api"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestNewDefaultsScheme(t *testing.T) {
	c, err := New(Config{BaseURL: "127.0.0.1:7823"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.baseURL.Scheme != "http" {
		t.Fatalf("scheme %q", c.baseURL.Scheme)
	}
}

func TestSubmitRoundTrip(t *testing.T) {
	var received api.SubmitRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{ID: "abc", State: "queued"})
	}))

	resp, err := c.Submit(context.Background(), api.SubmitRequest{InputPath: "/in.mp4", Text: "hi"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.ID != "abc" || resp.State != "queued" {
		t.Fatalf("resp = %+v", resp)
	}
	if received.InputPath != "/in.mp4" || received.Text != "hi" {
		t.Fatalf("server saw %+v", received)
	}
}

func TestErrorBodyDecoded(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "render queue full", Kind: "overloaded"})
	}))

	_, err := c.Submit(context.Background(), api.SubmitRequest{InputPath: "/in.mp4", Text: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Kind != "overloaded" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if apiErr.Message != "render queue full" {
		t.Fatalf("message %q", apiErr.Message)
	}
}

func TestErrorWithoutBodyFallsBackToStatusText(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Status(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("message %q", apiErr.Message)
	}
}

func TestFetchResultStreamsAndNames(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/abc/result" {
			t.Errorf("path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="abc.mp4"`)
		_, _ = w.Write([]byte("rendered"))
	}))

	var buf bytes.Buffer
	name, err := c.FetchResult(context.Background(), "abc", &buf)
	if err != nil {
		t.Fatalf("FetchResult: %v", err)
	}
	if name != "abc.mp4" {
		t.Fatalf("name %q", name)
	}
	if buf.String() != "rendered" {
		t.Fatalf("body %q", buf.String())
	}
}

func TestHistoryPassesLimit(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "7" {
			t.Errorf("limit %q", got)
		}
		_ = json.NewEncoder(w).Encode(api.HistoryResponse{})
	}))

	if _, err := c.History(context.Background(), 7); err != nil {
		t.Fatalf("History: %v", err)
	}
}

func TestHealthy(t *testing.T) {
	healthy := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	if !healthy.Healthy(context.Background()) {
		t.Fatal("healthy daemon reported unhealthy")
	}

	down, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if down.Healthy(context.Background()) {
		t.Fatal("unreachable daemon reported healthy")
	}
}
