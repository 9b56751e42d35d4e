package mvt

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/pkg/geospatial"
)

// Encoder implements ports.TileEncoder, writing one point layer per tile.
type Encoder struct {
	extent uint32
}

// NewEncoder creates an Encoder with the given extent (units per tile edge).
func NewEncoder(extent uint32) (*Encoder, error) {
	if extent == 0 || extent > math.MaxInt32 {
		return nil, fmt.Errorf("mvt: extent must be in 1..%d, got %d", math.MaxInt32, extent)
	}
	return &Encoder{extent: extent}, nil
}

// Extent returns the resolution declared in every layer.
func (e *Encoder) Extent() uint32 {
	return e.extent
}

// Encode projects points into bbox tile space and serializes them as a
// single layer named layer. An empty point slice yields a layer with no features.
func (e *Encoder) Encode(layer string, bbox domain.BoundingBox, points []domain.GeoPoint) []byte {
	coords := make([][2]int32, len(points))
	for i, p := range points {
		x, y := geospatial.ProjectToTileSpace(p, bbox, e.extent)
		coords[i] = [2]int32{x, y}
	}
	return e.EncodeTileCoords(layer, coords)
}

// EncodeTileCoords serializes already projected coordinates.
// It panics if a coordinate lies outside [0, extent).
func (e *Encoder) EncodeTileCoords(layer string, coords [][2]int32) []byte {
	lb := make([]byte, 0, 16+len(layer)+len(coords)*12)
	lb = protowire.AppendTag(lb, layerName, protowire.BytesType)
	lb = protowire.AppendString(lb, layer)

	var feat []byte
	for _, c := range coords {
		if c[0] < 0 || c[1] < 0 || uint32(c[0]) >= e.extent || uint32(c[1]) >= e.extent {
			panic(fmt.Sprintf("mvt: coordinate (%d,%d) outside extent %d", c[0], c[1], e.extent))
		}
		feat = appendPointFeature(feat[:0], c[0], c[1])
		lb = protowire.AppendTag(lb, layerFeatures, protowire.BytesType)
		lb = protowire.AppendBytes(lb, feat)
	}

	lb = protowire.AppendTag(lb, layerExtent, protowire.VarintType)
	lb = protowire.AppendVarint(lb, uint64(e.extent))
	lb = protowire.AppendTag(lb, layerVersion, protowire.VarintType)
	lb = protowire.AppendVarint(lb, Version)

	out := make([]byte, 0, len(lb)+8)
	out = protowire.AppendTag(out, tileLayers, protowire.BytesType)
	return protowire.AppendBytes(out, lb)
}

// appendPointFeature writes a POINT feature whose geometry is one MoveTo
// from the implicit (0,0) cursor. Each feature starts a fresh cursor.
func appendPointFeature(b []byte, x, y int32) []byte {
	var geom [3 * binaryMaxVarintLen]byte
	g := geom[:0]
	g = protowire.AppendVarint(g, uint64(commandInteger(cmdMoveTo, 1)))
	g = protowire.AppendVarint(g, zigzag(x))
	g = protowire.AppendVarint(g, zigzag(y))

	b = protowire.AppendTag(b, featureType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(GeomPoint))
	b = protowire.AppendTag(b, featureGeometry, protowire.BytesType)
	return protowire.AppendBytes(b, g)
}

const binaryMaxVarintLen = 10
