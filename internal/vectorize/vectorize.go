// Package vectorize turns the finished graph into enumerated vertex and
// edge rows. A row's position is its ID.
package vectorize

import (
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/attr"
	"github.com/wegman-software/osm2graph-go/internal/concurrent"
	"github.com/wegman-software/osm2graph-go/internal/highway"
	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/progress"
)

// Vertex is an output vertex row
type Vertex struct {
	VertexID int
	Node     *osmgraph.Node
}

// Edge is an output edge row. Way carries the aggregate of every parallel
// way on the pair; Geometry follows the first of them.
type Edge struct {
	EdgeID    int
	Src       osmgraph.NodeID
	Dst       osmgraph.NodeID
	SrcVertex int
	DstVertex int

	Way      *osmgraph.Way
	Highway  highway.Class
	Geometry orb.LineString

	LengthMeters float64
	// MaxspeedKph is the minimum explicit maxspeed when HasMaxspeed is set
	MaxspeedKph float64
	HasMaxspeed bool
}

// Options configures vectorization
type Options struct {
	Workers int
	// Strict turns degenerate edge geometry into an error instead of a
	// skipped row.
	Strict bool
	// IgnoreInvalidTags treats unparseable maxspeed values as absent
	IgnoreInvalidTags bool
	Progress          progress.Sink
}

// Graph holds the enumerated rows
type Graph struct {
	Vertices []Vertex
	Edges    []Edge
	// VertexIndex maps node IDs to vertex IDs
	VertexIndex map[osmgraph.NodeID]int
	Speeds      *FillLookup
	Skipped     int
}

// Run vectorizes g. Vertices are the connected active nodes plus any active
// merge survivors, sorted by ID. Edges follow the sorted pairs.
func Run(g *osmgraph.Graph, opts Options) (*Graph, error) {
	log := logger.Get()
	out := &Graph{VertexIndex: make(map[osmgraph.NodeID]int)}

	for _, id := range vertexIDs(g) {
		n, err := g.MustNode(id)
		if err != nil {
			return nil, err
		}
		out.VertexIndex[id] = len(out.Vertices)
		out.Vertices = append(out.Vertices, Vertex{VertexID: len(out.Vertices), Node: n.Clone()})
	}
	opts.Progress.Send("vectorize", 0, int64(g.NumPairs()))

	pairs := g.Pairs()
	type row struct {
		edge Edge
		skip bool
	}
	rows, err := concurrent.MapErr(opts.Workers, pairs, func(p osmgraph.Pair) (row, error) {
		e, ok, err := buildEdge(g, p, out.VertexIndex, opts)
		return row{edge: e, skip: !ok}, err
	})
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if r.skip {
			log.Warn("skipping edge with degenerate geometry",
				zap.Int64("src", int64(pairs[i].Src)),
				zap.Int64("dst", int64(pairs[i].Dst)))
			out.Skipped++
			continue
		}
		r.edge.EdgeID = len(out.Edges)
		out.Edges = append(out.Edges, r.edge)
	}
	opts.Progress.Send("vectorize", int64(len(pairs)), int64(len(pairs)))

	out.Speeds = NewFillLookup(out.Edges)
	log.Info("graph vectorized",
		zap.Int("vertices", len(out.Vertices)),
		zap.Int("edges", len(out.Edges)),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

func vertexIDs(g *osmgraph.Graph) []osmgraph.NodeID {
	ids := g.ConnectedNodeIDs()
	connected := make(map[osmgraph.NodeID]struct{}, len(ids))
	for _, id := range ids {
		connected[id] = struct{}{}
	}
	for _, id := range g.NodeIDs() {
		if _, ok := connected[id]; ok {
			continue
		}
		if n, ok := g.Node(id); ok && n.IsActive() && len(n.ConsolidatedIDs) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func buildEdge(g *osmgraph.Graph, p osmgraph.Pair, index map[osmgraph.NodeID]int, opts Options) (Edge, bool, error) {
	e := Edge{Src: p.Src, Dst: p.Dst}
	ways, ok := g.Ways(p.Src, p.Dst)
	if !ok || len(ways) == 0 {
		return e, false, osmgraph.Errorf(osmgraph.KindInternal, "pair (%d)->(%d) has no ways", p.Src, p.Dst)
	}
	if e.SrcVertex, ok = index[p.Src]; !ok {
		return e, false, osmgraph.Errorf(osmgraph.KindInternal, "way (%d)->(%d) has no source vertex", p.Src, p.Dst)
	}
	if e.DstVertex, ok = index[p.Dst]; !ok {
		return e, false, osmgraph.Errorf(osmgraph.KindInternal, "way (%d)->(%d) has no destination vertex", p.Src, p.Dst)
	}

	w, err := attr.AggregateWays(ways)
	if err != nil {
		return e, false, err
	}
	e.Way = w
	e.Highway, _ = attr.TopHighway(w.Tags.Highway)
	if w.Tags.Maxspeed != "" {
		e.MaxspeedKph, e.HasMaxspeed, err = attr.MinSpeed(w.Tags.Maxspeed, opts.IgnoreInvalidTags)
		if err != nil {
			return e, false, err
		}
	}

	first := ways[0]
	nodes := first.Nodes
	if p.Src != p.Dst {
		if nodes, ok = first.SubPath(p.Src, p.Dst); !ok {
			return e, false, osmgraph.Errorf(osmgraph.KindInternal,
				"trajectory (%d)-[%d]->(%d) not found in way nodes", p.Src, first.ID, p.Dst)
		}
	}
	line := make(orb.LineString, 0, len(nodes))
	distinct := make(map[orb.Point]struct{}, len(nodes))
	for _, id := range nodes {
		n, err := g.MustNode(id)
		if err != nil {
			return e, false, err
		}
		pt := orb.Point{float64(n.Lon), float64(n.Lat)}
		line = append(line, pt)
		distinct[pt] = struct{}{}
	}
	if len(distinct) < 2 {
		if opts.Strict {
			return e, false, osmgraph.Errorf(osmgraph.KindInternal,
				"way (%d)-[%d]->(%d) has fewer than two distinct coordinates", p.Src, first.ID, p.Dst)
		}
		return e, false, nil
	}
	// the nodes column follows the geometry, not every parallel way
	w.Nodes = slices.Clone(nodes)
	e.Geometry = line
	e.LengthMeters = geo.LengthHaversign(line)
	return e, true, nil
}
