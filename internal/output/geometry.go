package output

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/twpayne/go-polyline"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// GeometryFormat selects how edge geometry is written
type GeometryFormat string

const (
	WKT      GeometryFormat = "wkt"
	Polyline GeometryFormat = "polyline"
)

// ParseGeometryFormat validates a geometry format name
func ParseGeometryFormat(s string) (GeometryFormat, error) {
	switch GeometryFormat(s) {
	case "", WKT:
		return WKT, nil
	case Polyline:
		return Polyline, nil
	}
	return "", osmgraph.Errorf(osmgraph.KindConfiguration, "unknown geometry format %q (wkt, polyline)", s)
}

// Encode writes a linestring in the format. Polylines are lat/lon ordered
// with five digits of precision.
func (f GeometryFormat) Encode(ls orb.LineString) string {
	if f == Polyline {
		coords := make([][]float64, len(ls))
		for i, p := range ls {
			coords[i] = []float64{p.Lat(), p.Lon()}
		}
		return string(polyline.EncodeCoords(coords))
	}
	return wkt.MarshalString(ls)
}
