package usecases

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/core/ports"
	"github.com/samirrijal/pqtiles/internal/pkg/geospatial"
	"github.com/samirrijal/pqtiles/internal/pkg/logging"
	"github.com/samirrijal/pqtiles/internal/pkg/metrics"
	"github.com/samirrijal/pqtiles/internal/pkg/telemetry"
)

// TileOptions tunes a TileService.
type TileOptions struct {
	Policy domain.FailurePolicy
	// MaxZoom bounds accepted zoom levels; 0 means geospatial.MaxZoom.
	MaxZoom uint32
	// MaxPoints caps features per tile; 0 means unlimited.
	MaxPoints int
}

// TileService generates point tiles for registered datasets.
type TileService struct {
	registry ports.DatasetRegistry
	scanner  ports.PointScanner
	encoder  ports.TileEncoder
	opts     TileOptions
}

// NewTileService creates a new TileService.
func NewTileService(registry ports.DatasetRegistry, scanner ports.PointScanner, encoder ports.TileEncoder, opts TileOptions) *TileService {
	if opts.MaxZoom == 0 || opts.MaxZoom > geospatial.MaxZoom {
		opts.MaxZoom = geospatial.MaxZoom
	}
	return &TileService{registry: registry, scanner: scanner, encoder: encoder, opts: opts}
}

// Policy returns the configured failure policy.
func (s *TileService) Policy() domain.FailurePolicy {
	return s.opts.Policy
}

// GetTile builds the tile at addr for the named dataset.
//
// An unknown dataset yields an empty tile and no error. Scan failures and
// addresses outside the pyramid yield an empty tile under DegradeEmpty and
// an error under FailFast. A successful scan that selects nothing still
// yields a well-formed tile with zero features.
func (s *TileService) GetTile(ctx context.Context, dataset string, addr domain.TileAddress) (*domain.Tile, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanTileGenerate, trace.WithAttributes(
		attribute.String(telemetry.AttrDataset, dataset),
		attribute.String(telemetry.AttrTile, addr.String()),
	))
	defer span.End()

	log := logging.FromContext(ctx).With("dataset", dataset, "z", addr.Z, "x", addr.X, "y", addr.Y)
	empty := &domain.Tile{Dataset: dataset, Address: addr}

	ds, ok := s.registry.Find(dataset)
	if !ok {
		// Unknown names come straight from the URL; keep them out of label values.
		metrics.TilesServed.WithLabelValues("", metrics.OutcomeUnknownDataset).Inc()
		log.Debug("unknown dataset, serving empty tile")
		return empty, nil
	}

	if err := geospatial.Validate(addr, s.opts.MaxZoom); err != nil {
		metrics.TilesServed.WithLabelValues(dataset, metrics.OutcomeInvalid).Inc()
		if s.opts.Policy == domain.FailFast {
			return nil, err
		}
		log.Debug("tile outside pyramid, serving empty tile", "error", err)
		return empty, nil
	}

	bbox := geospatial.BoundsOf(addr)
	points, err := s.scanner.Scan(ctx, ds, bbox)
	if err != nil {
		span.RecordError(err)
		if s.opts.Policy == domain.FailFast {
			span.SetStatus(codes.Error, "scan failed")
			metrics.TilesServed.WithLabelValues(dataset, metrics.OutcomeFailed).Inc()
			return nil, fmt.Errorf("tile %s/%s: %w", dataset, addr, err)
		}
		metrics.TilesServed.WithLabelValues(dataset, metrics.OutcomeDegraded).Inc()
		if errors.Is(err, context.Canceled) {
			log.Debug("tile request cancelled")
		} else {
			log.Warn("scan failed, serving empty tile", "error", err)
		}
		return empty, nil
	}

	if s.opts.MaxPoints > 0 && len(points) > s.opts.MaxPoints {
		log.Info("point limit reached, truncating tile", "points", len(points), "limit", s.opts.MaxPoints)
		points = points[:s.opts.MaxPoints]
	}

	_, encSpan := telemetry.Tracer().Start(ctx, telemetry.SpanTileEncode)
	data := s.encoder.Encode(ds.Name, bbox, points)
	encSpan.End()

	span.SetAttributes(attribute.Int(telemetry.AttrPoints, len(points)))
	metrics.TilePoints.Observe(float64(len(points)))
	outcome := metrics.OutcomeOK
	if len(points) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.TilesServed.WithLabelValues(dataset, outcome).Inc()

	return &domain.Tile{Dataset: ds.Name, Address: addr, Points: len(points), Data: data}, nil
}

// Points returns the raw selection behind a tile, for inspection. Unlike
// GetTile it reports unknown datasets and scan errors to the caller.
func (s *TileService) Points(ctx context.Context, dataset string, addr domain.TileAddress) ([]domain.GeoPoint, domain.BoundingBox, error) {
	ds, ok := s.registry.Find(dataset)
	if !ok {
		return nil, domain.BoundingBox{}, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, dataset)
	}
	if err := geospatial.Validate(addr, s.opts.MaxZoom); err != nil {
		return nil, domain.BoundingBox{}, err
	}
	bbox := geospatial.BoundsOf(addr)
	points, err := s.scanner.Scan(ctx, ds, bbox)
	if err != nil {
		return nil, bbox, err
	}
	if s.opts.MaxPoints > 0 && len(points) > s.opts.MaxPoints {
		points = points[:s.opts.MaxPoints]
	}
	return points, bbox, nil
}
