// Package cluster groups graph nodes whose buffered positions overlap.
package cluster

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/wegman-software/osm2graph-go/internal/concurrent"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// EarthRadiusMeters is the mean radius used to turn meters into angles
const EarthRadiusMeters = 6371010.0

// DiscVertices is the vertex count of each buffer polygon
const DiscVertices = 32

// Rect is a lon/lat bounding box in degrees
type Rect struct {
	Min [2]float64
	Max [2]float64
}

// Union returns the smallest rect covering r and o
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Min: [2]float64{math.Min(r.Min[0], o.Min[0]), math.Min(r.Min[1], o.Min[1])},
		Max: [2]float64{math.Max(r.Max[0], o.Max[0]), math.Max(r.Max[1], o.Max[1])},
	}
}

// Buffer is a geodesic disc around one node
type Buffer struct {
	ID      osmgraph.NodeID
	Polygon *s2.Polygon
	Rect    Rect
}

// MetersToAngle converts a surface distance to a central angle
func MetersToAngle(m float64) s1.Angle {
	return s1.Angle(m / EarthRadiusMeters)
}

// NewBuffer builds the disc of radiusMeters around (lon, lat)
func NewBuffer(id osmgraph.NodeID, lon, lat, radiusMeters float64) Buffer {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	loop := s2.RegularLoop(center, MetersToAngle(radiusMeters), DiscVertices)
	bound := loop.RectBound()
	return Buffer{
		ID:      id,
		Polygon: s2.PolygonFromLoops([]*s2.Loop{loop}),
		Rect: Rect{
			Min: [2]float64{bound.Lo().Lng.Degrees(), bound.Lo().Lat.Degrees()},
			Max: [2]float64{bound.Hi().Lng.Degrees(), bound.Hi().Lat.Degrees()},
		},
	}
}

// Buffers builds a disc for every connected node, sorted by node ID. The
// discs are computed on a pool of workers.
func Buffers(g *osmgraph.Graph, radiusMeters float64, workers int) ([]Buffer, error) {
	ids := g.ConnectedNodeIDs()
	return concurrent.MapErr(workers, ids, func(id osmgraph.NodeID) (Buffer, error) {
		n, err := g.MustNode(id)
		if err != nil {
			return Buffer{}, err
		}
		return NewBuffer(id, float64(n.Lon), float64(n.Lat), radiusMeters), nil
	})
}
