package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/recallkit/recall-engine/pkg/config"
	"github.com/recallkit/recall-engine/pkg/logging"
	"github.com/recallkit/recall-engine/pkg/mcp"
	"github.com/recallkit/recall-engine/pkg/mcp/tools"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("transport", cfg.Transport),
		zap.String("store_path", cfg.Store.Path),
		zap.String("timezone", cfg.Location().String()))

	srv := mcp.NewServer("recall-engine", cfg.Version, logger)
	tools.RegisterAll(srv.MCP(), tools.NewDeps(cfg, logger))

	switch cfg.Transport {
	case "http":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := srv.ServeHTTP(ctx, cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	default:
		if err := srv.ServeStdio(); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}
}
