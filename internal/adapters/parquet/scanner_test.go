package parquet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pq "github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/pkg/geospatial"
)

type fixture struct {
	lonName, latName string
	float32          bool
	lons, lats       []float64
	valid            []bool
	rowGroupSize     int64
}

func writeParquet(t *testing.T, path string, fx fixture) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	typ := arrow.DataType(arrow.PrimitiveTypes.Float64)
	if fx.float32 {
		typ = arrow.PrimitiveTypes.Float32
	}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: fx.lonName, Type: typ, Nullable: true},
		{Name: fx.latName, Type: typ, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()
	for i := range fx.lons {
		b.Field(0).(*array.StringBuilder).Append(fmt.Sprintf("p%d", i))
	}
	appendFloats(b.Field(1), fx.lons, fx.valid)
	appendFloats(b.Field(2), fx.lats, fx.valid)

	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	size := fx.rowGroupSize
	if size == 0 {
		size = 1024
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	props := pq.NewWriterProperties(pq.WithStats(true))
	require.NoError(t, pqarrow.WriteTable(tbl, f, size, props, pqarrow.DefaultWriterProps()))
}

func appendFloats(b array.Builder, vals []float64, valid []bool) {
	switch fb := b.(type) {
	case *array.Float64Builder:
		fb.AppendValues(vals, valid)
	case *array.Float32Builder:
		f32 := make([]float32, len(vals))
		for i, v := range vals {
			f32[i] = float32(v)
		}
		fb.AppendValues(f32, valid)
	}
}

func dataset(dir string) domain.DatasetDescriptor {
	return domain.DatasetDescriptor{Name: "poi", Directory: dir, LonColumn: "lon", LatColumn: "lat"}
}

func sortPoints(pts []domain.GeoPoint) {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Lon != pts[j].Lon {
			return pts[i].Lon < pts[j].Lon
		}
		return pts[i].Lat < pts[j].Lat
	})
}

func TestScan_SelectsPointsOfTile(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "points.parquet"), fixture{
		lonName: "lon", latName: "lat",
		lons: []float64{10.0, 170.0},
		lats: []float64{45.0, -80.0},
	})

	bbox := geospatial.BoundsOf(geospatial.TileContaining(domain.GeoPoint{Lon: 10, Lat: 45}, 8))

	pts, err := NewScanner(nil).Scan(context.Background(), dataset(dir), bbox)
	require.NoError(t, err)
	assert.Equal(t, []domain.GeoPoint{{Lon: 10, Lat: 45}}, pts)
}

func TestScan_RecursesAndMergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "a.parquet"), fixture{
		lonName: "lon", latName: "lat",
		lons: []float64{1, 2, 50},
		lats: []float64{1, 2, 50},
	})
	writeParquet(t, filepath.Join(dir, "year=2024", "month=01", "b.PARQUET"), fixture{
		lonName: "lon", latName: "lat",
		lons: []float64{3, -120},
		lats: []float64{3, 10},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not data"), 0o644))

	bbox := domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	pts, err := NewScanner(nil, WithConcurrency(2)).Scan(context.Background(), dataset(dir), bbox)
	require.NoError(t, err)

	sortPoints(pts)
	assert.Equal(t, []domain.GeoPoint{{Lon: 1, Lat: 1}, {Lon: 2, Lat: 2}, {Lon: 3, Lat: 3}}, pts)
}

func TestScan_InclusiveEdges(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "edge.parquet"), fixture{
		lonName: "lon", latName: "lat",
		lons: []float64{0, 10, 10.0001},
		lats: []float64{0, 10, 5},
	})

	bbox := domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	pts, err := NewScanner(nil).Scan(context.Background(), dataset(dir), bbox)
	require.NoError(t, err)
	assert.Len(t, pts, 2)
}

func TestScan_SkipsNullAndNaN(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "dirty.parquet"), fixture{
		lonName: "lon", latName: "lat",
		lons:  []float64{1, 2, math.NaN(), 4},
		lats:  []float64{1, 2, 3, 4},
		valid: []bool{true, false, true, true},
	})

	bbox := domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	pts, err := NewScanner(nil).Scan(context.Background(), dataset(dir), bbox)
	require.NoError(t, err)

	sortPoints(pts)
	assert.Equal(t, []domain.GeoPoint{{Lon: 1, Lat: 1}, {Lon: 4, Lat: 4}}, pts)
}

func TestScan_Float32Columns(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "f32.parquet"), fixture{
		lonName: "x", latName: "y", float32: true,
		lons: []float64{1.5, 20},
		lats: []float64{2.5, 20},
	})

	ds := domain.DatasetDescriptor{Name: "f32", Directory: dir, LonColumn: "x", LatColumn: "y"}
	bbox := domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}
	pts, err := NewScanner(nil).Scan(context.Background(), ds, bbox)
	require.NoError(t, err)
	assert.Equal(t, []domain.GeoPoint{{Lon: 1.5, Lat: 2.5}}, pts)
}

func TestScan_EmptyDirectory(t *testing.T) {
	pts, err := NewScanner(nil).Scan(context.Background(), dataset(t.TempDir()), domain.BoundingBox{MaxLon: 1, MaxLat: 1})
	require.NoError(t, err)
	assert.Empty(t, pts)
}

func TestScan_StorageErrors(t *testing.T) {
	bbox := domain.BoundingBox{MinLon: -180, MinLat: -85, MaxLon: 180, MaxLat: 85}

	t.Run("missing directory", func(t *testing.T) {
		_, err := NewScanner(nil).Scan(context.Background(), dataset(filepath.Join(t.TempDir(), "nope")), bbox)
		assert.ErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		writeParquet(t, filepath.Join(dir, "a.parquet"), fixture{
			lonName: "longitude", latName: "lat",
			lons: []float64{1}, lats: []float64{1},
		})
		_, err := NewScanner(nil).Scan(context.Background(), dataset(dir), bbox)
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.Contains(t, err.Error(), `"lon"`)
	})

	t.Run("non-float column", func(t *testing.T) {
		dir := t.TempDir()
		writeParquet(t, filepath.Join(dir, "a.parquet"), fixture{
			lonName: "lon", latName: "lat",
			lons: []float64{1}, lats: []float64{1},
		})
		ds := dataset(dir)
		ds.LonColumn = "name"
		_, err := NewScanner(nil).Scan(context.Background(), ds, bbox)
		assert.ErrorIs(t, err, domain.ErrStorage)
	})

	t.Run("one corrupt file fails the scan", func(t *testing.T) {
		dir := t.TempDir()
		writeParquet(t, filepath.Join(dir, "good.parquet"), fixture{
			lonName: "lon", latName: "lat",
			lons: []float64{1}, lats: []float64{1},
		})
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.parquet"), []byte("PAR1 garbage"), 0o644))

		_, err := NewScanner(nil).Scan(context.Background(), dataset(dir), bbox)
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestScan_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "a.parquet"), fixture{
		lonName: "lon", latName: "lat",
		lons: []float64{1}, lats: []float64{1},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner(nil).Scan(ctx, dataset(dir), domain.BoundingBox{MaxLon: 10, MaxLat: 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPruneRowGroups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sorted.parquet")
	writeParquet(t, path, fixture{
		lonName: "lon", latName: "lat",
		lons:         []float64{1, 2, 11, 12, 21, 22, 31, 32},
		lats:         []float64{1, 2, 11, 12, 21, 22, 31, 32},
		rowGroupSize: 2,
	})

	rdr, err := file.OpenParquetFile(path, false)
	require.NoError(t, err)
	defer rdr.Close()
	require.Equal(t, 4, rdr.NumRowGroups())

	lonIdx, err := coordinateColumn(rdr, "lon")
	require.NoError(t, err)
	latIdx, err := coordinateColumn(rdr, "lat")
	require.NoError(t, err)

	s := NewScanner(nil)
	got := s.pruneRowGroups(rdr, lonIdx, latIdx, domain.BoundingBox{MinLon: 10, MinLat: 10, MaxLon: 25, MaxLat: 15})
	assert.Equal(t, []int{1}, got)

	got = s.pruneRowGroups(rdr, lonIdx, latIdx, domain.BoundingBox{MinLon: 100, MinLat: 0, MaxLon: 110, MaxLat: 50})
	assert.Empty(t, got)
}

func TestScan_PrunedFileStillAnswers(t *testing.T) {
	dir := t.TempDir()
	writeParquet(t, filepath.Join(dir, "sorted.parquet"), fixture{
		lonName: "lon", latName: "lat",
		lons:         []float64{1, 2, 11, 12, 21, 22},
		lats:         []float64{1, 2, 11, 12, 21, 22},
		rowGroupSize: 2,
	})

	pts, err := NewScanner(nil, WithBatchSize(1)).Scan(context.Background(), dataset(dir),
		domain.BoundingBox{MinLon: 10, MinLat: 10, MaxLon: 21, MaxLat: 21})
	require.NoError(t, err)

	sortPoints(pts)
	assert.Equal(t, []domain.GeoPoint{{Lon: 11, Lat: 11}, {Lon: 12, Lat: 12}, {Lon: 21, Lat: 21}}, pts)
}

func TestListFiles_Sorted(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.parquet", "a/c.parquet", "a.parquet", "x.csv"} {
		full := filepath.Join(dir, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}

	files, err := ListFiles(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.parquet"),
		filepath.Join(dir, "a", "c.parquet"),
		filepath.Join(dir, "b.parquet"),
	}, files)
}

func TestListFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.parquet"), nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ListFiles(ctx, dir)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrStorage)

	_, err = ListFiles(context.Background(), filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, domain.ErrStorage)
}
