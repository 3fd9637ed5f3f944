package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subburn/internal/api"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output missing target path: %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[render]") {
		t.Fatalf("sample content unexpected:\n%s", data)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite should fail")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init with --overwrite: %v", err)
	}
}

func TestJobsListRendersTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs" {
			t.Errorf("path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.JobListResponse{Jobs: []api.JobView{
			{
				ID:          "job-aaa",
				State:       "succeeded",
				InputPath:   "/videos/episode.mp4",
				SubmittedAt: time.Now().UTC(),
			},
		}})
	}))
	defer server.Close()

	out, err := runCommand(t, "jobs", "list", "--addr", server.URL)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	for _, want := range []string{"job-aaa", "succeeded", "episode.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestJobsListEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.JobListResponse{})
	}))
	defer server.Close()

	out, err := runCommand(t, "jobs", "--addr", server.URL)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	if !strings.Contains(out, "No jobs tracked") {
		t.Fatalf("output %q", out)
	}
}

func TestStatusRendersSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			Running:       true,
			MaxConcurrent: 2,
			ActiveRenders: 1,
			QueueDepth:    3,
			JobCounts:     map[string]int{"queued": 3, "running": 1},
		})
	}))
	defer server.Close()

	out, err := runCommand(t, "status", "--addr", server.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Active renders", "1 / 2", "Queue depth"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSubmitRequiresOverlay(t *testing.T) {
	input := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	if _, err := runCommand(t, "submit", input, "--addr", "127.0.0.1:1"); err == nil {
		t.Fatal("submit without overlay should fail before contacting the daemon")
	}
}

func TestCancelReportsState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(api.CancelResponse{ID: "job-bbb", State: "cancelled"})
	}))
	defer server.Close()

	out, err := runCommand(t, "cancel", "job-bbb", "--addr", server.URL)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(out, "cancelled") {
		t.Fatalf("output %q", out)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 * 1024 * 1024, "3.0 MiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	cols := []tableColumn{{title: "Name"}, {title: "Count", numeric: true}}
	out := renderTable(cols, [][]string{
		{"alpha", "12"},
		{"beta"},
	})

	for _, want := range []string{"NAME", "COUNT", "alpha", "beta"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	// Numeric columns right-align: the count sits at the end of its cell.
	var alphaLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "alpha") {
			alphaLine = line
		}
	}
	if alphaLine == "" {
		t.Fatalf("no row for alpha:\n%s", out)
	}
	if !strings.Contains(alphaLine, "12 ") || strings.Contains(alphaLine, " 12  ") {
		t.Fatalf("count not right-aligned: %q", alphaLine)
	}

	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output for no columns")
	}
}
