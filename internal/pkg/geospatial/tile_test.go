package geospatial

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pqtiles/internal/core/domain"
)

func TestBoundsOf_WorldTile(t *testing.T) {
	b := BoundsOf(domain.TileAddress{Z: 0, X: 0, Y: 0})

	assert.Equal(t, -180.0, b.MinLon)
	assert.Equal(t, 180.0, b.MaxLon)
	assert.InDelta(t, -85.0511287798, b.MinLat, 1e-9)
	assert.InDelta(t, 85.0511287798, b.MaxLat, 1e-9)
}

func TestBoundsOf_Ordered(t *testing.T) {
	for z := uint32(0); z <= 6; z++ {
		n := uint32(1) << z
		for x := uint32(0); x < n; x++ {
			for y := uint32(0); y < n; y++ {
				b := BoundsOf(domain.TileAddress{Z: z, X: x, Y: y})
				if b.MinLon >= b.MaxLon || b.MinLat >= b.MaxLat {
					t.Fatalf("unordered box for %d/%d/%d: %+v", z, x, y, b)
				}
			}
		}
	}
}

func TestBoundsOf_AdjacentTilesShareEdges(t *testing.T) {
	const z = 5
	for x := uint32(0); x < 31; x++ {
		for y := uint32(0); y < 31; y++ {
			cur := BoundsOf(domain.TileAddress{Z: z, X: x, Y: y})
			east := BoundsOf(domain.TileAddress{Z: z, X: x + 1, Y: y})
			south := BoundsOf(domain.TileAddress{Z: z, X: x, Y: y + 1})

			require.Equal(t, cur.MaxLon, east.MinLon, "x=%d y=%d", x, y)
			require.Equal(t, cur.MinLat, south.MaxLat, "x=%d y=%d", x, y)
		}
	}
}

func TestBoundsOf_ChildContained(t *testing.T) {
	for z := uint32(0); z < 8; z++ {
		n := uint32(1) << z
		for _, xy := range [][2]uint32{{0, 0}, {n / 2, n / 3}, {n - 1, n - 1}} {
			parent := BoundsOf(domain.TileAddress{Z: z, X: xy[0], Y: xy[1]})
			child := BoundsOf(domain.TileAddress{Z: z + 1, X: 2 * xy[0], Y: 2 * xy[1]})

			assert.LessOrEqual(t, parent.MinLon, child.MinLon)
			assert.LessOrEqual(t, parent.MinLat, child.MinLat)
			assert.GreaterOrEqual(t, parent.MaxLon, child.MaxLon)
			assert.GreaterOrEqual(t, parent.MaxLat, child.MaxLat)
		}
	}
}

func TestBoundsOf_MatchesOrb(t *testing.T) {
	cases := []domain.TileAddress{
		{Z: 1, X: 1, Y: 0},
		{Z: 10, X: 540, Y: 368},
		{Z: 16, X: 17896, Y: 24449},
	}
	for _, tc := range cases {
		want := maptile.New(tc.X, tc.Y, maptile.Zoom(tc.Z)).Bound()
		got := BoundsOf(tc).Bound()

		assert.InDelta(t, want.Min[0], got.Min[0], 1e-9, tc.String())
		assert.InDelta(t, want.Min[1], got.Min[1], 1e-9, tc.String())
		assert.InDelta(t, want.Max[0], got.Max[0], 1e-9, tc.String())
		assert.InDelta(t, want.Max[1], got.Max[1], 1e-9, tc.String())
	}
}

func TestTileContaining(t *testing.T) {
	p := domain.GeoPoint{Lon: 10.0, Lat: 45.0}
	for _, z := range []uint32{0, 4, 10, 14} {
		tile := TileContaining(p, z)
		want := maptile.At(orb.Point{p.Lon, p.Lat}, maptile.Zoom(z))

		assert.Equal(t, want.X, tile.X)
		assert.Equal(t, want.Y, tile.Y)
		assert.True(t, BoundsOf(tile).Contains(p.Lon, p.Lat))
	}
}

func TestProjectToTileSpace(t *testing.T) {
	bbox := domain.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 10, MaxLat: 10}

	tests := []struct {
		name  string
		p     domain.GeoPoint
		wantX int32
		wantY int32
	}{
		{"north-west corner", domain.GeoPoint{Lon: 0, Lat: 10}, 0, 0},
		{"center", domain.GeoPoint{Lon: 5, Lat: 5}, 2048, 2048},
		{"south-east corner clamps", domain.GeoPoint{Lon: 10, Lat: 0}, 4095, 4095},
		{"outside west clamps", domain.GeoPoint{Lon: -1, Lat: 5}, 0, 2048},
		{"outside north clamps", domain.GeoPoint{Lon: 5, Lat: 11}, 2048, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := ProjectToTileSpace(tt.p, bbox, 4096)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(domain.TileAddress{}, 24))
	require.NoError(t, Validate(domain.TileAddress{Z: 3, X: 7, Y: 7}, 24))

	for _, bad := range []domain.TileAddress{
		{Z: 3, X: 8, Y: 0},
		{Z: 3, X: 0, Y: 8},
		{Z: 25, X: 0, Y: 0},
	} {
		err := Validate(bad, 24)
		if !errors.Is(err, domain.ErrInvalidTile) {
			t.Errorf("%s: expected ErrInvalidTile, got %v", bad, err)
		}
	}
}
