package output

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/wegman-software/osm2graph-go/internal/attr"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/proj"
	"github.com/wegman-software/osm2graph-go/internal/vectorize"
)

// Column headers of the csv tables
var (
	VertexCompleteHeader = []string{
		"vertex_id", "osmid", "x", "y", "highway", "ele", "junction", "railway", "ref", "consolidated_ids",
	}
	VertexCompassHeader = []string{"vertex_id", "x", "y"}
	EdgeCompleteHeader  = []string{
		"edge_id", "osmid", "src_vertex_id", "dst_vertex_id", "nodes",
		"access", "area", "bridge", "est_width", "highway", "sidewalk", "footway", "junction",
		"landuse", "lanes", "maxspeed", "maxspeed_raw", "name", "oneway", "ref", "service",
		"tunnel", "width", "way_ids", "length_meters",
	}
	EdgeCompassHeader = []string{"edge_id", "src_vertex_id", "dst_vertex_id", "distance"}
	SpeedHeader       = []string{"highway", "speed_kph"}
)

// VertexRow is a flattened vertex with output delimiters applied
type VertexRow struct {
	VertexID        int
	OSMID           int64
	X, Y            float64
	Highway         string
	Ele             string
	Junction        string
	Railway         string
	Ref             string
	ConsolidatedIDs string
}

// NewVertexRow flattens v, projecting its coordinate with tr
func NewVertexRow(v vectorize.Vertex, tr *proj.Transformer) VertexRow {
	n := v.Node
	p := tr.Point(orb.Point{float64(n.Lon), float64(n.Lat)})
	return VertexRow{
		VertexID:        v.VertexID,
		OSMID:           int64(n.ID),
		X:               p[0],
		Y:               p[1],
		Highway:         attr.Unique(n.Highway),
		Ele:             attr.Unique(n.Ele),
		Junction:        attr.Unique(n.Junction),
		Railway:         attr.Unique(n.Railway),
		Ref:             attr.Unique(n.Ref),
		ConsolidatedIDs: joinIDs(n.ConsolidatedIDs),
	}
}

// Complete returns the vertices-complete record
func (r VertexRow) Complete() []string {
	return []string{
		strconv.Itoa(r.VertexID), strconv.FormatInt(r.OSMID, 10), formatFloat(r.X), formatFloat(r.Y),
		r.Highway, r.Ele, r.Junction, r.Railway, r.Ref, r.ConsolidatedIDs,
	}
}

// Compass returns the vertices-compass record
func (r VertexRow) Compass() []string {
	return []string{strconv.Itoa(r.VertexID), formatFloat(r.X), formatFloat(r.Y)}
}

// EdgeRow is a flattened edge with every aggregated field reduced
type EdgeRow struct {
	EdgeID      int
	OSMID       int64
	SrcVertexID int
	DstVertexID int
	Nodes       string
	Access      string
	Area        string
	Bridge      string
	EstWidth    string
	Highway     string
	Sidewalk    string
	Footway     string
	Junction    string
	Landuse     string
	Lanes       string
	Maxspeed    string
	MaxspeedRaw string
	Name        string
	Oneway      string
	Ref         string
	Service     string
	Tunnel      string
	Width       string
	WayIDs      string
	Length      float64
}

// NewEdgeRow reduces the aggregated way on e to output values
func NewEdgeRow(e vectorize.Edge) EdgeRow {
	t := e.Way.Tags
	r := EdgeRow{
		EdgeID:      e.EdgeID,
		OSMID:       int64(e.Way.ID),
		SrcVertexID: e.SrcVertex,
		DstVertexID: e.DstVertex,
		Nodes:       joinIDs(e.Way.Nodes),
		Access:      attr.Unique(t.Access),
		Area:        measure(attr.MaxMeasure(t.Area)),
		Bridge:      attr.Unique(t.Bridge),
		EstWidth:    measure(attr.MinMeasure(t.EstWidth)),
		Highway:     string(e.Highway),
		Sidewalk:    attr.Unique(t.Sidewalk),
		Footway:     attr.Unique(t.Footway),
		Junction:    attr.Unique(t.Junction),
		Landuse:     attr.Unique(t.Landuse),
		Lanes:       measure(attr.MinMeasure(t.Lanes)),
		MaxspeedRaw: strings.ReplaceAll(t.Maxspeed, osmgraph.ValueDelimiter, attr.OutputDelimiter),
		Name:        attr.Unique(t.Name),
		Oneway:      attr.Unique(t.Oneway),
		Ref:         attr.Unique(t.Ref),
		Service:     attr.Unique(t.Service),
		Tunnel:      attr.Unique(t.Tunnel),
		Width:       measure(attr.MinMeasure(t.Width)),
		WayIDs:      joinIDs(e.Way.Constituents()),
		Length:      e.LengthMeters,
	}
	if e.HasMaxspeed {
		r.Maxspeed = formatFloat(e.MaxspeedKph)
	}
	return r
}

// Complete returns the edges-complete record
func (r EdgeRow) Complete() []string {
	return []string{
		strconv.Itoa(r.EdgeID), strconv.FormatInt(r.OSMID, 10),
		strconv.Itoa(r.SrcVertexID), strconv.Itoa(r.DstVertexID), r.Nodes,
		r.Access, r.Area, r.Bridge, r.EstWidth, r.Highway, r.Sidewalk, r.Footway, r.Junction,
		r.Landuse, r.Lanes, r.Maxspeed, r.MaxspeedRaw, r.Name, r.Oneway, r.Ref, r.Service,
		r.Tunnel, r.Width, r.WayIDs, formatFloat(r.Length),
	}
}

// Compass returns the edges-compass record
func (r EdgeRow) Compass() []string {
	return []string{
		strconv.Itoa(r.EdgeID), strconv.Itoa(r.SrcVertexID), strconv.Itoa(r.DstVertexID), formatFloat(r.Length),
	}
}

func joinIDs[T ~int64](ids []T) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, attr.OutputDelimiter)
}

func measure(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return formatFloat(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
