package domain

import "fmt"

// MediaTypeMVT is the content type of every tile response.
const MediaTypeMVT = "application/x-protobuf;type=mapbox-vector"

// DefaultExtent is the number of integer units per tile edge.
const DefaultExtent = 4096

// TileAddress is a slippy-map tile: zoom level, column and row.
// Row 0 is the northern edge of the pyramid.
type TileAddress struct {
	Z uint32 `json:"z"`
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

func (t TileAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// Tile is the encoded result of one request.
type Tile struct {
	Dataset string
	Address TileAddress
	Points  int
	Data    []byte
}

// Empty reports whether the tile carries no payload at all.
func (t *Tile) Empty() bool {
	return t == nil || len(t.Data) == 0
}
