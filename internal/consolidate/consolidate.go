package consolidate

import (
	"fmt"

	"github.com/wegman-software/osm2graph-go/internal/cluster"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/progress"
)

// DefaultToleranceMeters is the buffer radius used when none is configured
const DefaultToleranceMeters = 15.0

// Options configures a consolidation pass
type Options struct {
	ToleranceMeters float64
	Policy          CoordinatePolicy
	Workers         int
	Progress        progress.Sink
}

// Result summarises a consolidation pass
type Result struct {
	Clusters         int
	Components       int
	MergedVertices   int
	RetiredNodes     int
	DroppedSelfLoops int
}

// Graph buffers every connected node, clusters overlapping buffers, splits
// clusters into graph-connected components and merges each component.
func Graph(g *osmgraph.Graph, opts Options) (Result, error) {
	var res Result
	if opts.ToleranceMeters <= 0 {
		return res, osmgraph.Errorf(osmgraph.KindConfiguration, "consolidation tolerance must be positive, got %v", opts.ToleranceMeters)
	}
	if g.NumConnectedNodes() == 0 {
		return res, nil
	}

	buffers, err := cluster.Buffers(g, opts.ToleranceMeters, opts.Workers)
	if err != nil {
		return res, fmt.Errorf("buffering nodes: %w", err)
	}
	opts.Progress.Send("buffer", int64(len(buffers)), int64(len(buffers)))

	clusters := cluster.Build(buffers)
	res.Clusters = len(clusters)
	opts.Progress.Send("cluster", int64(len(clusters)), int64(len(clusters)))

	total := int64(len(clusters))
	survivors := 0
	for i, c := range clusters {
		comps, err := RestrictedComponents(c, g)
		if err != nil {
			return res, err
		}
		for _, comp := range comps {
			res.Components++
			if len(comp) >= 2 {
				m, err := Nodes(g, comp, opts.Policy)
				if err != nil {
					return res, fmt.Errorf("merging %d nodes at %d: %w", len(comp), comp[0], err)
				}
				res.MergedVertices++
				res.RetiredNodes += len(comp) - 1
				res.DroppedSelfLoops += m.DroppedSelfLoops
			}
			if n, ok := g.Node(comp[0]); ok && n.IsActive() {
				survivors++
			}
		}
		if done := int64(i + 1); progress.Every(done, total) {
			opts.Progress.Send("consolidate", done, total)
		}
	}

	// every component leaves its first member active
	if survivors == 0 {
		return res, osmgraph.Errorf(osmgraph.KindConsolidation,
			"merging %d nodes resulted in 0 merged nodes", len(buffers))
	}
	return res, nil
}
