// Package consolidate merges graph-connected nodes that sit within a
// distance tolerance of each other into single vertices.
package consolidate

import (
	"slices"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// RestrictedComponents splits a spatial cluster into the subsets that are
// also connected through the graph. The search never leaves the cluster,
// so nodes that are only close (a bridge over a road) stay apart. Each
// component is sorted; components follow the order of their first member
// in cluster.
func RestrictedComponents(cluster []osmgraph.NodeID, g *osmgraph.Graph) ([][]osmgraph.NodeID, error) {
	switch len(cluster) {
	case 0:
		return nil, nil
	case 1:
		return [][]osmgraph.NodeID{{cluster[0]}}, nil
	}

	valid := make(map[osmgraph.NodeID]struct{}, len(cluster))
	for _, id := range cluster {
		valid[id] = struct{}{}
	}

	assigned := make(map[osmgraph.NodeID]struct{}, len(cluster))
	var out [][]osmgraph.NodeID
	total := 0
	for _, id := range cluster {
		if _, ok := assigned[id]; ok {
			continue
		}
		comp, err := g.BFSUndirected(id, valid)
		if err != nil {
			return nil, err
		}
		for _, n := range comp {
			if _, dup := assigned[n]; dup {
				return nil, osmgraph.Errorf(osmgraph.KindConsolidation, "node %d assigned to two components", n)
			}
			assigned[n] = struct{}{}
		}
		slices.Sort(comp)
		total += len(comp)
		out = append(out, comp)
	}

	if total != len(cluster) {
		return nil, osmgraph.Errorf(osmgraph.KindConsolidation,
			"connected components input size != output size (%d != %d)", len(cluster), total)
	}
	return out, nil
}
