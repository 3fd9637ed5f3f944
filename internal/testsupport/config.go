// Package testsupport provides shared helpers for package tests: temp-dir
// seeded configs, stub renderer binaries, and small file fixtures.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"subburn/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspaces")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Render.TimeoutSeconds = 30
	cfgVal.Render.KillGraceSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithMaxConcurrent overrides the render slot count on the test config.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.MaxConcurrent = n
	}
}

// WithMaxQueueDepth overrides the admission queue depth on the test config.
func WithMaxQueueDepth(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.MaxQueueDepth = n
	}
}

// WithWorkspaceCeiling overrides the workspace quota on the test config.
func WithWorkspaceCeiling(mib int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.WorkspaceCeilingMiB = mib
	}
}

// WithRetentionTTL overrides retention in seconds on the test config.
func WithRetentionTTL(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.RetentionTTLSeconds = seconds
	}
}

// WithStubRenderer writes a stub renderer script and points the config at it.
// The script body decides the stub's behavior; StubScript* constants cover the
// common cases.
func WithStubRenderer(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Binary = WriteScript(b.t, filepath.Join(b.baseDir, "bin", "fake-renderer"), body)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}

// WriteScript writes an executable shell script and returns its path.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}
