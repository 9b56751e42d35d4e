// Package mvt reads and writes Mapbox Vector Tile (v2) protobuf payloads.
package mvt

import (
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from vector_tile.proto.
const (
	tileLayers protowire.Number = 3

	layerName     protowire.Number = 1
	layerFeatures protowire.Number = 2
	layerKeys     protowire.Number = 3
	layerValues   protowire.Number = 4
	layerExtent   protowire.Number = 5
	layerVersion  protowire.Number = 15

	featureID       protowire.Number = 1
	featureTags     protowire.Number = 2
	featureType     protowire.Number = 3
	featureGeometry protowire.Number = 4
)

// Version is the MVT format version written into every layer.
const Version = 2

// GeomType mirrors the Tile.GeomType enum.
type GeomType uint8

const (
	GeomUnknown    GeomType = 0
	GeomPoint      GeomType = 1
	GeomLineString GeomType = 2
	GeomPolygon    GeomType = 3
)

func (g GeomType) String() string {
	switch g {
	case GeomUnknown:
		return "unknown"
	case GeomPoint:
		return "point"
	case GeomLineString:
		return "linestring"
	case GeomPolygon:
		return "polygon"
	}
	return "geomtype(" + strconv.Itoa(int(g)) + ")"
}

type command uint32

const (
	cmdMoveTo    command = 1
	cmdLineTo    command = 2
	cmdClosePath command = 7
)

func commandInteger(id command, count uint32) uint32 {
	return uint32(id)&0x7 | count<<3
}

func splitCommand(v uint32) (command, uint32) {
	return command(v & 0x7), v >> 3
}

func zigzag(v int32) uint64 {
	return protowire.EncodeZigZag(int64(v))
}

func unzigzag(v uint64) int32 {
	return int32(protowire.DecodeZigZag(v))
}
