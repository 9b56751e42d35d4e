package domain

import "github.com/paulmach/orb"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Point returns the coordinate as an orb point (x = lon, y = lat).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// BoundingBox represents a geographic bounding box in degrees.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether lon/lat lies inside the box. Edges are inclusive.
func (b BoundingBox) Contains(lon, lat float64) bool {
	return b.Bound().Contains(orb.Point{lon, lat})
}

// Bound converts the box to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Width is the longitude span in degrees.
func (b BoundingBox) Width() float64 { return b.MaxLon - b.MinLon }

// Height is the latitude span in degrees.
func (b BoundingBox) Height() float64 { return b.MaxLat - b.MinLat }
