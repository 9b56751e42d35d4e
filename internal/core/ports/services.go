package ports

import "github.com/samirrijal/pqtiles/internal/core/domain"

// TileEncoder serializes points into a single-layer vector tile.
// Encoding an empty slice yields a valid tile with zero features.
type TileEncoder interface {
	Encode(layer string, bbox domain.BoundingBox, points []domain.GeoPoint) []byte
	Extent() uint32
}
