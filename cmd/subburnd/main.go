// Command subburnd runs the subtitle render daemon: it admits jobs over HTTP,
// supervises the external renderer, and serves finished artifacts.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"subburn/internal/api"
	"subburn/internal/config"
	"subburn/internal/engine"
	"subburn/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stdout",
			filepath.Join(cfg.Paths.LogDir, "subburnd.log"),
		},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("create engine", logging.Error(err))
		return
	}

	if err := eng.Start(ctx); err != nil {
		logger.Error("start engine", logging.Error(err))
		return
	}

	server, err := api.NewServer(cfg.Paths.APIBind, eng, logger)
	if err != nil {
		logger.Error("create api server", logging.Error(err))
		shutdownEngine(eng, logger)
		return
	}
	if server != nil {
		if err := server.Start(ctx); err != nil {
			logger.Error("start api server", logging.Error(err))
			shutdownEngine(eng, logger)
			return
		}
	}

	<-ctx.Done()
	logger.Info("subburnd shutting down")

	if server != nil {
		server.Stop()
	}
	shutdownEngine(eng, logger)
}

func shutdownEngine(eng *engine.Engine, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Warn("engine shutdown", logging.Error(err))
	}
}
