package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/pqtiles/internal/adapters/http"
	"github.com/samirrijal/pqtiles/internal/adapters/mvt"
	"github.com/samirrijal/pqtiles/internal/adapters/parquet"
	"github.com/samirrijal/pqtiles/internal/adapters/registry"
	"github.com/samirrijal/pqtiles/internal/core/ports"
	"github.com/samirrijal/pqtiles/internal/core/usecases"
	"github.com/samirrijal/pqtiles/internal/pkg/config"
	"github.com/samirrijal/pqtiles/internal/pkg/logging"
	"github.com/samirrijal/pqtiles/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("pqtiles-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Dataset registry: a broken descriptor file is fatal at startup.
	reg := registry.New(nil)
	if err := reg.Reload(cfg.Datasets.DescriptorPath()); err != nil {
		log.Fatalf("datasets: %v", err)
	}

	// Scanner
	var files ports.FileLister = parquet.DirLister{}
	if cfg.Datasets.CacheFiles {
		files = reg.CachedFiles(files)
	}
	scanner := parquet.NewScanner(files, parquet.WithConcurrency(cfg.Tiles.ScanConcurrency))

	// Encoder
	encoder, err := mvt.NewEncoder(cfg.Tiles.Extent)
	if err != nil {
		log.Fatalf("encoder: %v", err)
	}

	// Use cases
	tileSvc := usecases.NewTileService(reg, scanner, encoder, usecases.TileOptions{
		Policy:    cfg.Tiles.Policy(),
		MaxZoom:   cfg.Tiles.MaxZoom,
		MaxPoints: cfg.Tiles.MaxPoints,
	})
	datasetSvc := usecases.NewDatasetService(reg)

	deps := &http.Dependencies{
		Tiles:       tileSvc,
		Datasets:    datasetSvc,
		TileTimeout: cfg.Server.TileTimeoutDuration(),
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // GET-only API
		AppName:      "pqtiles",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,HEAD,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, If-None-Match",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("tile server starting", "addr", addr, "failure_policy", cfg.Tiles.Policy().String())
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
