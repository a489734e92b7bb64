// Package extent reads the WKT study-area polygon and answers
// point-in-extent queries, optionally with a margin around the boundary.
package extent

import (
	"errors"
	"os"
	"strings"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// BufferMeters is the margin kept around the extent while reading input,
// so ways straddling the boundary are not cut before truncation.
const BufferMeters = 500.0

const earthRadiusMeters = 6371010.0

// ErrInvalidExtentWKT is returned for extents that are not polygonal
var ErrInvalidExtentWKT = errors.New("extent must be a POLYGON or MULTIPOLYGON")

// Extent is a polygonal study area
type Extent struct {
	geom  orb.Geometry
	bound orb.Bound

	segments [][2]s2.Point
	index    rtree.RTreeG[int]
	indexPad float64
}

// Read loads an extent from a WKT file
func Read(path string) (*Extent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "reading extent file %s", path)
	}
	e, err := Parse(string(data))
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "extent file %s", path)
	}
	return e, nil
}

// Parse builds an extent from WKT text
func Parse(text string) (*Extent, error) {
	g, err := wkt.Unmarshal(strings.TrimSpace(text))
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "parsing extent WKT")
	}
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, ErrInvalidExtentWKT, "got %s", g.GeoJSONType())
	}
	e := &Extent{geom: g, bound: g.Bound()}
	e.indexSegments()
	return e, nil
}

// Geometry returns the parsed polygon or multipolygon
func (e *Extent) Geometry() orb.Geometry { return e.geom }

// Bound returns the extent's bounding box
func (e *Extent) Bound() orb.Bound { return e.bound }

// Contains reports whether the point lies inside the extent
func (e *Extent) Contains(lon, lat float64) bool {
	pt := orb.Point{lon, lat}
	if !e.bound.Contains(pt) {
		return false
	}
	switch g := e.geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// ContainsWithin reports whether the point lies inside the extent or
// within meters of its boundary.
func (e *Extent) ContainsWithin(lon, lat, meters float64) bool {
	if e.Contains(lon, lat) {
		return true
	}
	if meters <= 0 {
		return false
	}
	pt := orb.Point{lon, lat}
	if !geo.BoundPad(e.bound, meters).Contains(pt) {
		return false
	}
	return e.distanceToBoundary(pt, meters) <= meters
}

// ContainsBuffered applies the fixed input margin
func (e *Extent) ContainsBuffered(lon, lat float64) bool {
	return e.ContainsWithin(lon, lat, BufferMeters)
}

func (e *Extent) rings() []orb.Ring {
	switch g := e.geom.(type) {
	case orb.Polygon:
		return g
	case orb.MultiPolygon:
		var out []orb.Ring
		for _, p := range g {
			out = append(out, p...)
		}
		return out
	}
	return nil
}

// indexSegments loads every boundary segment into an R-tree keyed by its
// bound padded with the input margin.
func (e *Extent) indexSegments() {
	e.indexPad = BufferMeters
	for _, ring := range e.rings() {
		for i := 1; i < len(ring); i++ {
			a, b := ring[i-1], ring[i]
			h := len(e.segments)
			e.segments = append(e.segments, [2]s2.Point{toS2(a), toS2(b)})
			bound := geo.BoundPad(orb.MultiPoint{a, b}.Bound(), e.indexPad)
			e.index.Insert(bound.Min, bound.Max, h)
		}
	}
}

// distanceToBoundary returns the distance from pt to the nearest boundary
// segment in meters. Segments farther than limit may be skipped; the
// result then exceeds limit.
func (e *Extent) distanceToBoundary(pt orb.Point, limit float64) float64 {
	x := toS2(pt)
	best := limit + 1
	visit := func(h int) {
		seg := e.segments[h]
		d := s2.DistanceFromSegment(x, seg[0], seg[1]).Radians() * earthRadiusMeters
		if d < best {
			best = d
		}
	}
	if limit <= e.indexPad {
		e.index.Search(pt, pt, func(_, _ [2]float64, h int) bool {
			visit(h)
			return true
		})
		return best
	}
	for h := range e.segments {
		visit(h)
	}
	return best
}

func toS2(p orb.Point) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon()))
}
