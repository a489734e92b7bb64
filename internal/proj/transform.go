// Package proj reprojects output coordinates.
package proj

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// SRID constants for supported projections
const (
	SRID4326 = 4326 // WGS84 (lon/lat)
	SRID3857 = 3857 // Web Mercator
)

// maxLat clamps latitudes before projecting so the poles stay finite
const maxLat = 85.06

// Transformer converts WGS84 coordinates to the target SRID
type Transformer struct {
	TargetSRID int
}

// NewTransformer creates a transformer from WGS84 to target
func NewTransformer(target int) (*Transformer, error) {
	if target != SRID4326 && target != SRID3857 {
		return nil, osmgraph.Errorf(osmgraph.KindConfiguration,
			"unsupported target SRID: %d (only 4326 and 3857 supported)", target)
	}
	return &Transformer{TargetSRID: target}, nil
}

// NeedsTransform returns true if coordinates change
func (t *Transformer) NeedsTransform() bool {
	return t != nil && t.TargetSRID != SRID4326
}

// SRID returns the target SRID, 4326 for a nil transformer
func (t *Transformer) SRID() int {
	if t == nil {
		return SRID4326
	}
	return t.TargetSRID
}

// Point converts a lon/lat point
func (t *Transformer) Point(p orb.Point) orb.Point {
	if !t.NeedsTransform() {
		return p
	}
	p[1] = max(-maxLat, min(maxLat, p[1]))
	return project.Point(p, project.WGS84.ToMercator)
}

// LineString returns a converted copy of ls
func (t *Transformer) LineString(ls orb.LineString) orb.LineString {
	if !t.NeedsTransform() {
		return ls
	}
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = t.Point(p)
	}
	return out
}

// ParseSRID parses a projection string.
// Accepts: "4326", "3857", "EPSG:4326", "EPSG:3857"
func ParseSRID(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "EPSG:")
	srid, err := strconv.Atoi(s)
	if err != nil || (srid != SRID4326 && srid != SRID3857) {
		return 0, osmgraph.Errorf(osmgraph.KindConfiguration,
			"unsupported projection: %s (supported: 4326, 3857)", s)
	}
	return srid, nil
}
