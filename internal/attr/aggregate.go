package attr

import (
	"github.com/wegman-software/osm2graph-go/internal/highway"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// AggregateWays merges consecutive or parallel ways into one record. The
// ID is the first constituent; highway keeps the top class; every other
// field joins its distinct values with the internal delimiter.
func AggregateWays(ways []*osmgraph.Way) (*osmgraph.Way, error) {
	if len(ways) == 0 {
		return nil, osmgraph.Errorf(osmgraph.KindSimplification, "cannot aggregate an empty way collection")
	}
	if len(ways) == 1 {
		return ways[0].Clone(), nil
	}

	var ids []osmgraph.WayID
	seen := make(map[osmgraph.WayID]struct{})
	var nodes []osmgraph.NodeID
	for _, w := range ways {
		for _, id := range w.Constituents() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		nodes = append(nodes, w.Nodes...)
	}

	out := &osmgraph.Way{
		ID:     ids[0],
		Nodes:  osmgraph.DedupeConsecutive(nodes),
		WayIDs: ids,
	}

	highways := make([]string, len(ways))
	for i, w := range ways {
		highways[i] = w.Tags.Highway
	}
	if top, ok := highway.Top(highways, osmgraph.ValueDelimiter); ok {
		out.Tags.Highway = string(top)
	}

	for _, key := range osmgraph.TagKeys {
		if key == "highway" || key == "oneway" {
			continue
		}
		values := make([]string, len(ways))
		for i, w := range ways {
			values[i], _ = w.Tags.Get(key)
		}
		out.Tags.Set(key, JoinDistinct(values, osmgraph.ValueDelimiter))
	}
	// an aggregated record already runs along its pair
	out.Tags.Oneway = "yes"
	return out, nil
}
