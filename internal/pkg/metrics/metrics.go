package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Tile outcomes recorded by TilesServed.
const (
	OutcomeOK             = "ok"
	OutcomeEmpty          = "empty"
	OutcomeUnknownDataset = "unknown_dataset"
	OutcomeDegraded       = "degraded"
	OutcomeFailed         = "failed"
	OutcomeInvalid        = "invalid"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pqtiles",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pqtiles",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pqtiles",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Tile pipeline metrics
	TilesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pqtiles",
		Subsystem: "tiles",
		Name:      "served_total",
		Help:      "Tiles answered, by dataset and outcome",
	}, []string{"dataset", "outcome"})

	TilePoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pqtiles",
		Subsystem: "tiles",
		Name:      "points",
		Help:      "Number of point features encoded per tile",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pqtiles",
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Duration of a dataset scan for one tile",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"dataset"})

	ScanFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pqtiles",
		Subsystem: "scan",
		Name:      "files_total",
		Help:      "Parquet files opened by the scanner",
	}, []string{"dataset"})

	RowGroupsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pqtiles",
		Subsystem: "scan",
		Name:      "row_groups_skipped_total",
		Help:      "Row groups pruned by column statistics",
	}, []string{"dataset"})

	ScanErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pqtiles",
		Subsystem: "scan",
		Name:      "errors_total",
		Help:      "Dataset scans that failed",
	}, []string{"dataset"})

	RegistryDatasets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pqtiles",
		Subsystem: "registry",
		Name:      "datasets",
		Help:      "Datasets in the current registry snapshot",
	})

	FileListCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pqtiles",
		Subsystem: "registry",
		Name:      "file_list_lookups_total",
		Help:      "File list lookups, by result (hit or miss)",
	}, []string{"result"})
)

// ObserveScan records the duration of a dataset scan.
func ObserveScan(dataset string, start time.Time) {
	ScanDuration.WithLabelValues(dataset).Observe(time.Since(start).Seconds())
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
