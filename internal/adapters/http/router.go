package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/samirrijal/pqtiles/internal/pkg/metrics"
)

// SetupRoutes registers the tile, dataset, and operational routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Request-scoped slog logger
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// Weak ETag for conditional caching; empty tiles carry none.
	app.Use(etag.New(etag.Config{Weak: true}))

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Tiles: the timeout cancels in-flight scans through the request context.
	app.Get("/tiles/:dataset/:z/:x/:y", timeout.NewWithContext(TileHandler(deps), deps.tileTimeout()))

	// Dataset catalogue
	v1 := app.Group("/v1")
	v1.Get("/datasets", timeout.NewWithContext(ListDatasetsHandler(deps), 5*time.Second))
	v1.Get("/datasets/:name", timeout.NewWithContext(GetDatasetHandler(deps), 5*time.Second))

	// API documentation (Swagger UI)
	SetupDocs(app)
}
