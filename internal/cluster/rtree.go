package cluster

import (
	"slices"

	"github.com/golang/geo/s2"
	"github.com/tidwall/rtree"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// group is a cluster under construction. Its polygons are kept as a raw
// collection; no overlay union is ever computed.
type group struct {
	members  []osmgraph.NodeID
	polygons []*s2.Polygon
	rect     Rect
}

func (c *group) intersects(p *s2.Polygon) bool {
	for _, q := range c.polygons {
		if q.Intersects(p) {
			return true
		}
	}
	return false
}

func (c *group) absorb(o *group) {
	c.members = append(c.members, o.members...)
	c.polygons = append(c.polygons, o.polygons...)
	c.rect = c.rect.Union(o.rect)
}

// Build partitions buffers into clusters of transitively intersecting
// discs. Buffers are processed in input order; candidates drained from the
// index are visited in member order so the result is deterministic.
// Members of each cluster are sorted and clusters are ordered
// lexicographically.
func Build(buffers []Buffer) [][]osmgraph.NodeID {
	var tr rtree.RTreeG[int]
	groups := make(map[int]*group)
	next := 0

	insert := func(g *group) {
		h := next
		next++
		groups[h] = g
		tr.Insert(g.rect.Min, g.rect.Max, h)
	}

	for _, b := range buffers {
		var hits []int
		tr.Search(b.Rect.Min, b.Rect.Max, func(_, _ [2]float64, h int) bool {
			hits = append(hits, h)
			return true
		})

		current := &group{
			members:  []osmgraph.NodeID{b.ID},
			polygons: []*s2.Polygon{b.Polygon},
			rect:     b.Rect,
		}
		if len(hits) == 0 {
			insert(current)
			continue
		}

		drained := make([]*group, 0, len(hits))
		for _, h := range hits {
			g := groups[h]
			tr.Delete(g.rect.Min, g.rect.Max, h)
			delete(groups, h)
			drained = append(drained, g)
		}
		slices.SortFunc(drained, func(a, b *group) int {
			return slices.Compare(a.members, b.members)
		})

		for _, g := range drained {
			if g.intersects(b.Polygon) {
				current.absorb(g)
			} else {
				insert(g)
			}
		}
		slices.Sort(current.members)
		insert(current)
	}

	out := make([][]osmgraph.NodeID, 0, len(groups))
	for _, g := range groups {
		members := slices.Clone(g.members)
		slices.Sort(members)
		out = append(out, members)
	}
	slices.SortFunc(out, func(a, b []osmgraph.NodeID) int { return slices.Compare(a, b) })
	return out
}
