package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"subburn/internal/config"
	"subburn/internal/job"
	"subburn/internal/logging"
	"subburn/internal/testsupport"
)

func startEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	eng, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = eng.Shutdown(shutdownCtx)
	})
	return eng
}

func submitJob(t *testing.T, eng *Engine) string {
	t.Helper()
	input := testsupport.WriteFile(t, filepath.Join(t.TempDir(), "input.mp4"), 2048)
	id, err := eng.Submit(job.Spec{InputPath: input, Text: "hello world"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return id
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitState(t *testing.T, eng *Engine, id string, want job.State) {
	t.Helper()
	waitFor(t, "job "+id+" to reach "+string(want), func() bool {
		jb, err := eng.Get(id)
		return err == nil && jb.State == want
	})
}

func TestEndToEndRenderAndFetch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))
	eng := startEngine(t, cfg)

	id := submitJob(t, eng)
	waitState(t, eng, id, job.StateSucceeded)

	artifact, err := eng.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, err := io.ReadAll(artifact)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "rendered" {
		t.Fatalf("artifact content %q", data)
	}
	if artifact.ContentType != "video/mp4" {
		t.Fatalf("content type %q", artifact.ContentType)
	}
	if artifact.Size != int64(len(data)) {
		t.Fatalf("size %d, want %d", artifact.Size, len(data))
	}
	if err := artifact.Close(); err != nil {
		t.Fatalf("close artifact: %v", err)
	}

	// Delivery is repeatable until retention expires.
	second, err := eng.Fetch(id)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	_ = second.Close()

	// The journal recorded the lifecycle.
	records, err := eng.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 || records[0].State != job.StateSucceeded {
		t.Fatalf("history = %+v", records)
	}
}

func TestFetchBeforeTerminalIsNotReady(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptHang))
	eng := startEngine(t, cfg)

	id := submitJob(t, eng)
	waitState(t, eng, id, job.StateRunning)

	if _, err := eng.Fetch(id); !errors.Is(err, job.ErrNotReady) {
		t.Fatalf("Fetch on running job = %v, want ErrNotReady", err)
	}

	if _, err := eng.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitState(t, eng, id, job.StateCancelled)
}

func TestFetchFailedJobReturnsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptFail))
	eng := startEngine(t, cfg)

	id := submitJob(t, eng)
	waitState(t, eng, id, job.StateFailed)

	_, err := eng.Fetch(id)
	var failure *job.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Fetch on failed job = %v, want *job.Failure", err)
	}
	if failure.Kind != job.KindRendererError {
		t.Fatalf("failure kind %s", failure.Kind)
	}

	// Failed jobs never leave an allocated workspace behind.
	waitFor(t, "workspace reclaimed", func() bool {
		return eng.Describe().WorkspaceCount == 0
	})
}

func TestFetchUnknownJob(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))
	eng := startEngine(t, cfg)

	if _, err := eng.Fetch("missing"); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("Fetch(missing) = %v, want ErrNotFound", err)
	}
}

func TestRetentionEvictsAndReclaims(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))
	eng := startEngine(t, cfg)

	id := submitJob(t, eng)
	waitState(t, eng, id, job.StateSucceeded)

	jb, err := eng.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resultPath := jb.ResultPath

	eng.reapOnce(context.Background(), time.Now().UTC().Add(48*time.Hour), cfg.RetentionTTL())

	if _, err := eng.Get(id); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("evicted job still resolvable: %v", err)
	}
	if _, err := eng.Fetch(id); !errors.Is(err, job.ErrNotFound) {
		t.Fatalf("Fetch after eviction = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(resultPath); !os.IsNotExist(err) {
		t.Fatalf("artifact survived eviction: %v", err)
	}

	// Uncollected successes leave the journal as expired.
	records, err := eng.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 || records[0].State != job.StateExpired {
		t.Fatalf("history after eviction = %+v", records)
	}
}

func TestOpenStreamSurvivesEviction(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))
	eng := startEngine(t, cfg)

	id := submitJob(t, eng)
	waitState(t, eng, id, job.StateSucceeded)

	artifact, err := eng.Fetch(id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	jb, _ := eng.Get(id)
	resultPath := jb.ResultPath

	// Retention fires while the stream is open; the artifact must survive
	// until the stream closes.
	eng.reapOnce(context.Background(), time.Now().UTC().Add(48*time.Hour), cfg.RetentionTTL())

	data, err := io.ReadAll(artifact)
	if err != nil {
		t.Fatalf("read after eviction: %v", err)
	}
	if string(data) != "rendered" {
		t.Fatalf("artifact content %q", data)
	}
	if err := artifact.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	waitFor(t, "workspace removed after close", func() bool {
		_, err := os.Stat(resultPath)
		return os.IsNotExist(err)
	})
}

func TestStartSweepsStaleWorkspaces(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))

	stale := filepath.Join(cfg.Paths.WorkspaceDir, "job-stale")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir stale: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(stale, "leftover.mp4"), 128)

	startEngine(t, cfg)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale workspace survived startup sweep: %v", err)
	}
}

func TestSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))
	startEngine(t, cfg)

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New second engine: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = second.Shutdown(shutdownCtx)
	}()
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("second engine acquired the instance lock")
	}
}

func TestShutdownReclaimsEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptSucceed))
	eng, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	id, err := eng.Submit(job.Spec{
		InputPath: testsupport.WriteFile(t, filepath.Join(t.TempDir(), "in.mp4"), 512),
		Text:      "hi",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitState(t, eng, id, job.StateSucceeded)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	entries, err := os.ReadDir(cfg.Paths.WorkspaceDir)
	if err != nil {
		t.Fatalf("read workspace root: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("workspace %s survived shutdown", entry.Name())
	}
}

func TestDescribeReportsLoad(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubRenderer(testsupport.StubScriptHang))
	eng := startEngine(t, cfg)

	id := submitJob(t, eng)
	waitState(t, eng, id, job.StateRunning)

	status := eng.Describe()
	if !status.Running {
		t.Fatal("status.Running false while engine runs")
	}
	if status.ActiveRenders != 1 {
		t.Fatalf("ActiveRenders = %d, want 1", status.ActiveRenders)
	}
	if status.JobCounts[job.StateRunning] != 1 {
		t.Fatalf("JobCounts = %v", status.JobCounts)
	}
	if status.WorkspaceCount != 1 {
		t.Fatalf("WorkspaceCount = %d, want 1", status.WorkspaceCount)
	}

	if _, err := eng.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitState(t, eng, id, job.StateCancelled)
}
