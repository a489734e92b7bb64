package truncate

import (
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// Container answers point-in-extent queries
type Container interface {
	Contains(lon, lat float64) bool
}

// ByNode disconnects every connected node that lies outside the extent.
// It returns the number of nodes disconnected.
func ByNode(g *osmgraph.Graph, ext Container) (int, error) {
	removed := 0
	for _, id := range g.ConnectedNodeIDs() {
		n, err := g.MustNode(id)
		if err != nil {
			return removed, err
		}
		if ext.Contains(float64(n.Lon), float64(n.Lat)) {
			continue
		}
		if err := g.DisconnectNode(id, true); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ByEdge removes every pair with neither endpoint inside the extent, so
// edges that cross the boundary survive. It returns the number of pairs
// removed.
func ByEdge(g *osmgraph.Graph, ext Container) (int, error) {
	inside := make(map[osmgraph.NodeID]bool)
	contains := func(id osmgraph.NodeID) (bool, error) {
		if v, ok := inside[id]; ok {
			return v, nil
		}
		n, err := g.MustNode(id)
		if err != nil {
			return false, err
		}
		v := ext.Contains(float64(n.Lon), float64(n.Lat))
		inside[id] = v
		return v, nil
	}

	var remove []osmgraph.Pair
	for _, p := range g.Pairs() {
		srcIn, err := contains(p.Src)
		if err != nil {
			return 0, err
		}
		dstIn, err := contains(p.Dst)
		if err != nil {
			return 0, err
		}
		if !srcIn && !dstIn {
			remove = append(remove, p)
		}
	}
	for _, p := range remove {
		if err := g.RemoveWay(p.Src, p.Dst, false); err != nil {
			return 0, err
		}
	}
	return len(remove), nil
}
