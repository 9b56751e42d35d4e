package mvt

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Tile is a decoded vector tile.
type Tile struct {
	Layers []Layer
}

// Layer is a decoded layer. Keys and values are kept raw.
type Layer struct {
	Version  uint32
	Name     string
	Extent   uint32
	Keys     []string
	Values   [][]byte
	Features []Feature
}

// Feature is a decoded feature with its geometry resolved into absolute
// tile coordinates, one slice per MoveTo-started part.
type Feature struct {
	ID    uint64
	HasID bool
	Type  GeomType
	Tags  []uint32
	Parts [][][2]int32
}

var errTruncated = errors.New("mvt: truncated message")

// Decode parses a vector tile payload. An empty payload decodes to a tile
// with no layers.
func Decode(b []byte) (*Tile, error) {
	t := &Tile{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num != tileLayers || typ != protowire.BytesType {
			return nil
		}
		l, err := decodeLayer(v)
		if err != nil {
			return err
		}
		t.Layers = append(t.Layers, *l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Layer returns the first layer named name.
func (t *Tile) Layer(name string) (*Layer, bool) {
	for i := range t.Layers {
		if t.Layers[i].Name == name {
			return &t.Layers[i], true
		}
	}
	return nil, false
}

// LayerStats summarizes one decoded layer.
type LayerStats struct {
	Name     string
	Version  uint32
	Extent   uint32
	Features int
	Vertices int
	Types    map[GeomType]int
	// OutOfExtent counts vertices outside [0, Extent) on either axis.
	OutOfExtent int
}

// Stats summarizes every layer in decode order.
func (t *Tile) Stats() []LayerStats {
	out := make([]LayerStats, 0, len(t.Layers))
	for _, l := range t.Layers {
		s := LayerStats{
			Name:     l.Name,
			Version:  l.Version,
			Extent:   l.Extent,
			Features: len(l.Features),
			Types:    make(map[GeomType]int),
		}
		ext := int32(l.Extent)
		for _, f := range l.Features {
			s.Types[f.Type]++
			for _, part := range f.Parts {
				s.Vertices += len(part)
				for _, p := range part {
					if p[0] < 0 || p[1] < 0 || p[0] >= ext || p[1] >= ext {
						s.OutOfExtent++
					}
				}
			}
		}
		out = append(out, s)
	}
	return out
}

func decodeLayer(b []byte) (*Layer, error) {
	l := &Layer{Version: 1, Extent: 4096}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch num {
		case layerVersion:
			l.Version = uint32(u)
		case layerName:
			l.Name = string(v)
		case layerExtent:
			l.Extent = uint32(u)
		case layerKeys:
			l.Keys = append(l.Keys, string(v))
		case layerValues:
			l.Values = append(l.Values, append([]byte(nil), v...))
		case layerFeatures:
			f, err := decodeFeature(v)
			if err != nil {
				return fmt.Errorf("layer %q feature %d: %w", l.Name, len(l.Features), err)
			}
			l.Features = append(l.Features, *f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func decodeFeature(b []byte) (*Feature, error) {
	f := &Feature{}
	var geom []uint32
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch num {
		case featureID:
			f.ID, f.HasID = u, true
		case featureType:
			f.Type = GeomType(u)
		case featureTags:
			vals, err := uint32s(typ, v, u)
			if err != nil {
				return err
			}
			f.Tags = append(f.Tags, vals...)
		case featureGeometry:
			vals, err := uint32s(typ, v, u)
			if err != nil {
				return err
			}
			geom = append(geom, vals...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	parts, err := decodeGeometry(geom)
	if err != nil {
		return nil, err
	}
	f.Parts = parts
	return f, nil
}

// decodeGeometry replays the command stream with a cursor starting at (0,0).
func decodeGeometry(geom []uint32) ([][][2]int32, error) {
	var (
		parts [][][2]int32
		x, y  int32
	)
	for i := 0; i < len(geom); {
		id, count := splitCommand(geom[i])
		i++
		switch id {
		case cmdMoveTo, cmdLineTo:
			if i+int(count)*2 > len(geom) {
				return nil, errTruncated
			}
			for k := uint32(0); k < count; k++ {
				x += unzigzag(uint64(geom[i]))
				y += unzigzag(uint64(geom[i+1]))
				i += 2
				if id == cmdMoveTo || len(parts) == 0 {
					parts = append(parts, nil)
				}
				parts[len(parts)-1] = append(parts[len(parts)-1], [2]int32{x, y})
			}
		case cmdClosePath:
		default:
			return nil, fmt.Errorf("mvt: unknown command %d", id)
		}
	}
	return parts, nil
}

// walkFields calls fn for every field of a message. For length-delimited
// fields v holds the payload; for varints u holds the value.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var (
			v []byte
			u uint64
		)
		switch typ {
		case protowire.VarintType:
			u, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(num, typ, v, u); err != nil {
			return err
		}
	}
	return nil
}

// uint32s reads a repeated uint32 field in packed or unpacked form.
func uint32s(typ protowire.Type, v []byte, u uint64) ([]uint32, error) {
	if typ == protowire.VarintType {
		return []uint32{uint32(u)}, nil
	}
	out := make([]uint32, 0, len(v))
	for len(v) > 0 {
		x, n := protowire.ConsumeVarint(v)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		out = append(out, uint32(x))
		v = v[n:]
	}
	return out, nil
}
