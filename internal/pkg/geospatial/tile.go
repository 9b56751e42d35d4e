package geospatial

import (
	"fmt"
	"math"

	"github.com/samirrijal/pqtiles/internal/core/domain"
)

// MaxZoom is the deepest zoom level whose tile count still fits in uint32 columns.
const MaxZoom = 31

// BoundsOf returns the geographic box covered by a slippy-map tile.
// Longitude is linear in the column; latitude follows the inverse
// Web Mercator transform of the row.
func BoundsOf(t domain.TileAddress) domain.BoundingBox {
	n := math.Exp2(float64(t.Z))
	x := float64(t.X)
	y := float64(t.Y)

	north := rowToLat(y, n)
	south := rowToLat(y+1, n)

	return domain.BoundingBox{
		MinLon: x/n*360 - 180,
		MinLat: math.Min(north, south),
		MaxLon: (x+1)/n*360 - 180,
		MaxLat: math.Max(north, south),
	}
}

func rowToLat(row, n float64) float64 {
	return toDeg(math.Atan(math.Sinh(math.Pi * (1 - 2*row/n))))
}

// ProjectToTileSpace maps a point linearly onto [0, extent) in both axes.
// y grows southwards. Values pushed outside the range by rounding are clamped.
func ProjectToTileSpace(p domain.GeoPoint, bbox domain.BoundingBox, extent uint32) (int32, int32) {
	e := float64(extent)
	fx := (p.Lon - bbox.MinLon) / bbox.Width() * e
	fy := (bbox.MaxLat - p.Lat) / bbox.Height() * e
	return clamp(fx, extent), clamp(fy, extent)
}

func clamp(v float64, extent uint32) int32 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	hi := int32(extent) - 1
	if v >= float64(extent) {
		return hi
	}
	return int32(math.Floor(v))
}

// TileContaining returns the tile at zoom z whose box contains p.
func TileContaining(p domain.GeoPoint, z uint32) domain.TileAddress {
	n := math.Exp2(float64(z))
	latRad := toRad(p.Lat)

	x := math.Floor((p.Lon + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	return domain.TileAddress{Z: z, X: uint32(clampIndex(x, n)), Y: uint32(clampIndex(y, n))}
}

func clampIndex(v, n float64) float64 {
	return math.Max(0, math.Min(v, n-1))
}

// Validate rejects addresses that lie outside the pyramid at their zoom,
// or deeper than maxZoom.
func Validate(t domain.TileAddress, maxZoom uint32) error {
	if maxZoom > MaxZoom {
		maxZoom = MaxZoom
	}
	if t.Z > maxZoom {
		return fmt.Errorf("%w: zoom %d exceeds %d", domain.ErrInvalidTile, t.Z, maxZoom)
	}
	n := uint64(1) << t.Z
	if uint64(t.X) >= n || uint64(t.Y) >= n {
		return fmt.Errorf("%w: %s outside %dx%d grid", domain.ErrInvalidTile, t, n, n)
	}
	return nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
