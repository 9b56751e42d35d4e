// Package parquet selects points from datasets stored as Apache Parquet files.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pq "github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/metadata"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/core/ports"
	"github.com/samirrijal/pqtiles/internal/pkg/metrics"
	"github.com/samirrijal/pqtiles/internal/pkg/telemetry"
)

const defaultBatchSize = 64 * 1024

// Scanner implements ports.PointScanner over a directory of parquet files.
type Scanner struct {
	files       ports.FileLister
	concurrency int
	batchSize   int64
	alloc       memory.Allocator
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithConcurrency bounds how many files of one dataset are read at once.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithBatchSize sets the number of rows decoded per record batch.
func WithBatchSize(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewScanner creates a Scanner. A nil lister walks the directory on every scan.
func NewScanner(files ports.FileLister, opts ...Option) *Scanner {
	if files == nil {
		files = DirLister{}
	}
	s := &Scanner{
		files:       files,
		concurrency: runtime.NumCPU(),
		batchSize:   defaultBatchSize,
		alloc:       memory.DefaultAllocator,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan returns every point of ds inside bbox. Files are read concurrently;
// the first file that fails cancels the others and fails the scan.
// Rows with a null or NaN coordinate are skipped.
func (s *Scanner) Scan(ctx context.Context, ds domain.DatasetDescriptor, bbox domain.BoundingBox) ([]domain.GeoPoint, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanScanDataset,
		trace.WithAttributes(attribute.String(telemetry.AttrDataset, ds.Name)))
	defer span.End()
	defer metrics.ObserveScan(ds.Name, time.Now())

	points, err := s.scan(ctx, ds, bbox)
	if err != nil {
		metrics.ScanErrors.WithLabelValues(ds.Name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.AttrPoints, len(points)))
	return points, nil
}

func (s *Scanner) scan(ctx context.Context, ds domain.DatasetDescriptor, bbox domain.BoundingBox) ([]domain.GeoPoint, error) {
	files, err := s.files.Files(ctx, ds)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(telemetry.AttrFiles, len(files)))

	results := make([][]domain.GeoPoint, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, path := range files {
		g.Go(func() error {
			pts, err := s.scanFile(gctx, ds, bbox, path)
			if err != nil {
				return err
			}
			results[i] = pts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	points := make([]domain.GeoPoint, 0, total)
	for _, r := range results {
		points = append(points, r...)
	}
	return points, nil
}

func (s *Scanner) scanFile(ctx context.Context, ds domain.DatasetDescriptor, bbox domain.BoundingBox, path string) ([]domain.GeoPoint, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanScanFile,
		trace.WithAttributes(attribute.String(telemetry.AttrFile, path)))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.ScanFiles.WithLabelValues(ds.Name).Inc()

	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, storageErr(path, "open", err)
	}
	defer rdr.Close()

	lonIdx, err := coordinateColumn(rdr, ds.LonColumn)
	if err != nil {
		return nil, storageErr(path, "schema", err)
	}
	latIdx, err := coordinateColumn(rdr, ds.LatColumn)
	if err != nil {
		return nil, storageErr(path, "schema", err)
	}

	rowGroups := s.pruneRowGroups(rdr, lonIdx, latIdx, bbox)
	span.SetAttributes(
		attribute.Int(telemetry.AttrRowGroups, rdr.NumRowGroups()),
		attribute.Int(telemetry.AttrRowsPruned, rdr.NumRowGroups()-len(rowGroups)),
	)
	if skipped := rdr.NumRowGroups() - len(rowGroups); skipped > 0 {
		metrics.RowGroupsSkipped.WithLabelValues(ds.Name).Add(float64(skipped))
	}
	if len(rowGroups) == 0 {
		return nil, nil
	}

	columns := []int{lonIdx}
	if latIdx != lonIdx {
		columns = append(columns, latIdx)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: s.batchSize}, s.alloc)
	if err != nil {
		return nil, storageErr(path, "arrow reader", err)
	}
	rr, err := fr.GetRecordReader(ctx, columns, rowGroups)
	if err != nil {
		return nil, storageErr(path, "record reader", err)
	}
	defer rr.Release()

	var points []domain.GeoPoint
	for rr.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		points, err = appendMatches(points, rr.Record(), ds, bbox)
		if err != nil {
			return nil, storageErr(path, "read", err)
		}
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, storageErr(path, "read", err)
	}
	return points, nil
}

// coordinateColumn resolves a leaf column by name and checks that it holds
// floating point values.
func coordinateColumn(rdr *file.Reader, name string) (int, error) {
	sc := rdr.MetaData().Schema
	idx := sc.ColumnIndexByName(name)
	if idx < 0 {
		return -1, fmt.Errorf("column %q not found", name)
	}
	switch pt := sc.Column(idx).PhysicalType(); pt {
	case pq.Types.Double, pq.Types.Float:
		return idx, nil
	default:
		return -1, fmt.Errorf("column %q has unsupported type %s", name, pt)
	}
}

// pruneRowGroups keeps the row groups whose min/max statistics may overlap bbox.
// Row groups without statistics are always kept.
func (s *Scanner) pruneRowGroups(rdr *file.Reader, lonIdx, latIdx int, bbox domain.BoundingBox) []int {
	keep := make([]int, 0, rdr.NumRowGroups())
	for i := 0; i < rdr.NumRowGroups(); i++ {
		md := rdr.MetaData().RowGroup(i)
		if mayOverlap(md, lonIdx, bbox.MinLon, bbox.MaxLon) && mayOverlap(md, latIdx, bbox.MinLat, bbox.MaxLat) {
			keep = append(keep, i)
		}
	}
	return keep
}

func mayOverlap(md *metadata.RowGroupMetaData, col int, lo, hi float64) bool {
	cc, err := md.ColumnChunk(col)
	if err != nil {
		return true
	}
	if ok, err := cc.StatsSet(); err != nil || !ok {
		return true
	}
	stats, err := cc.Statistics()
	if err != nil || stats == nil || !stats.HasMinMax() {
		return true
	}

	var colMin, colMax float64
	switch st := stats.(type) {
	case *metadata.Float64Statistics:
		colMin, colMax = st.Min(), st.Max()
	case *metadata.Float32Statistics:
		colMin, colMax = float64(st.Min()), float64(st.Max())
	default:
		return true
	}
	if math.IsNaN(colMin) || math.IsNaN(colMax) {
		return true
	}
	return colMax >= lo && colMin <= hi
}

func appendMatches(dst []domain.GeoPoint, rec arrow.Record, ds domain.DatasetDescriptor, bbox domain.BoundingBox) ([]domain.GeoPoint, error) {
	lons, err := columnValues(rec, ds.LonColumn)
	if err != nil {
		return dst, err
	}
	lats, err := columnValues(rec, ds.LatColumn)
	if err != nil {
		return dst, err
	}

	for i := 0; i < int(rec.NumRows()); i++ {
		lon, ok := lons(i)
		if !ok {
			continue
		}
		lat, ok := lats(i)
		if !ok {
			continue
		}
		if bbox.Contains(lon, lat) {
			dst = append(dst, domain.GeoPoint{Lon: lon, Lat: lat})
		}
	}
	return dst, nil
}

type valueAt func(i int) (float64, bool)

func columnValues(rec arrow.Record, name string) (valueAt, error) {
	idx := rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q missing from record", name)
	}

	switch a := rec.Column(idx[0]).(type) {
	case *array.Float64:
		return func(i int) (float64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			v := a.Value(i)
			return v, !math.IsNaN(v) && !math.IsInf(v, 0)
		}, nil
	case *array.Float32:
		return func(i int) (float64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			v := float64(a.Value(i))
			return v, !math.IsNaN(v) && !math.IsInf(v, 0)
		}, nil
	default:
		return nil, fmt.Errorf("column %q has unsupported arrow type %s", name, a.DataType())
	}
}

func storageErr(path, op string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", domain.ErrStorage, op, path, err)
}
