package consolidate

import (
	"fmt"
	"slices"

	"github.com/wegman-software/osm2graph-go/internal/attr"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// CoordinatePolicy decides where a merged vertex is placed
type CoordinatePolicy string

const (
	// Centroid places the vertex at the mean of the member coordinates
	Centroid CoordinatePolicy = "centroid"
	// Representative keeps the coordinate of the surviving node
	Representative CoordinatePolicy = "representative"
)

// ParseCoordinatePolicy validates a policy name; empty means Centroid
func ParseCoordinatePolicy(s string) (CoordinatePolicy, error) {
	switch CoordinatePolicy(s) {
	case "", Centroid:
		return Centroid, nil
	case Representative:
		return Representative, nil
	}
	return "", osmgraph.Errorf(osmgraph.KindConfiguration, "unknown coordinate policy %q", s)
}

// Merge describes one node consolidation
type Merge struct {
	Representative   osmgraph.NodeID
	Members          []osmgraph.NodeID
	DroppedSelfLoops int
}

type rewrite struct {
	pair osmgraph.Pair
	way  *osmgraph.Way
}

// Nodes merges members into a single vertex. The first member survives and
// takes the union of consolidated IDs; every way touching a member is
// narrowed to its pair, stripped of members, and re-anchored on the
// survivor. Ways that run between two different members would become
// self-loops and are dropped; loops already closed on a member move to the
// survivor. The other members are retired.
func Nodes(g *osmgraph.Graph, members []osmgraph.NodeID, policy CoordinatePolicy) (Merge, error) {
	if len(members) == 0 {
		return Merge{}, osmgraph.Errorf(osmgraph.KindInternal, "merge called with no members")
	}
	rep := members[0]
	result := Merge{Representative: rep, Members: members}

	records := make([]*osmgraph.Node, len(members))
	memberSet := make(map[osmgraph.NodeID]struct{}, len(members))
	for i, id := range members {
		n, err := g.MustNode(id)
		if err != nil {
			return result, err
		}
		if !n.IsActive() {
			return result, osmgraph.Errorf(osmgraph.KindConsolidation, "cannot merge retired node %d", id)
		}
		records[i] = n
		memberSet[id] = struct{}{}
	}

	merged, err := mergeRecords(records, policy)
	if err != nil {
		return result, err
	}

	pairs := incidentPairs(g, members)
	var rewrites []rewrite
	for _, p := range pairs {
		ways, ok := g.Ways(p.Src, p.Dst)
		if !ok {
			return result, osmgraph.Errorf(osmgraph.KindReferential, "no ways found for pair (%d)->(%d)", p.Src, p.Dst)
		}
		_, srcIn := memberSet[p.Src]
		_, dstIn := memberSet[p.Dst]
		if p.Src == p.Dst {
			for _, w := range ways {
				rw, ok := reanchorLoop(w, rep, memberSet)
				if !ok {
					result.DroppedSelfLoops++
					continue
				}
				rewrites = append(rewrites, rw)
			}
			continue
		}
		if srcIn && dstIn {
			result.DroppedSelfLoops += len(ways)
			continue
		}
		for _, w := range ways {
			rw, err := reanchor(w, p, rep, memberSet, srcIn)
			if err != nil {
				return result, err
			}
			rewrites = append(rewrites, rw)
		}
	}

	for _, p := range pairs {
		if err := g.RemoveWay(p.Src, p.Dst, false); err != nil {
			return result, err
		}
	}
	if err := g.UpdateNode(merged); err != nil {
		return result, err
	}
	for _, id := range members[1:] {
		if err := g.RetireNode(id, rep, true); err != nil {
			return result, err
		}
	}
	for _, rw := range rewrites {
		if err := g.AddNewAdjacency(rw.pair.Src, rw.pair.Dst, []*osmgraph.Way{rw.way}); err != nil {
			return result, err
		}
	}
	return result, nil
}

// incidentPairs lists every pair with a member at either end, sorted
func incidentPairs(g *osmgraph.Graph, members []osmgraph.NodeID) []osmgraph.Pair {
	seen := make(map[osmgraph.Pair]struct{})
	var out []osmgraph.Pair
	add := func(p osmgraph.Pair) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, m := range members {
		for _, dst := range g.Neighbors(m, osmgraph.Forward) {
			add(osmgraph.Pair{Src: m, Dst: dst})
		}
		for _, src := range g.Neighbors(m, osmgraph.Reverse) {
			add(osmgraph.Pair{Src: src, Dst: m})
		}
	}
	slices.SortFunc(out, osmgraph.ComparePairs)
	return out
}

// reanchor rewrites a way stored under p so it starts (forward) or ends
// (reverse) at rep.
func reanchor(w *osmgraph.Way, p osmgraph.Pair, rep osmgraph.NodeID, members map[osmgraph.NodeID]struct{}, forward bool) (rewrite, error) {
	if len(w.Nodes) == 0 {
		return rewrite{}, osmgraph.Errorf(osmgraph.KindInternal, "way (%d)-[%d]->(%d) has empty node list", p.Src, w.ID, p.Dst)
	}
	out := w.Clone()
	if sub, ok := w.SubPath(p.Src, p.Dst); ok {
		out.Nodes = slices.Clone(sub)
	}

	stripped := out.Nodes[:0]
	for _, n := range out.Nodes {
		if _, ok := members[n]; !ok {
			stripped = append(stripped, n)
		}
	}
	if len(stripped) == 0 {
		return rewrite{}, osmgraph.Errorf(osmgraph.KindInternal,
			"way (%d)-[%d]->(%d) has no nodes left after removing merged nodes", p.Src, w.ID, p.Dst)
	}

	if forward {
		out.Nodes = append([]osmgraph.NodeID{rep}, stripped...)
		return rewrite{pair: osmgraph.Pair{Src: rep, Dst: p.Dst}, way: out}, nil
	}
	out.Nodes = append(stripped, rep)
	return rewrite{pair: osmgraph.Pair{Src: p.Src, Dst: rep}, way: out}, nil
}

// reanchorLoop moves a loop closed on a member onto rep. ok is false when
// nothing but members remains, leaving a zero-length loop.
func reanchorLoop(w *osmgraph.Way, rep osmgraph.NodeID, members map[osmgraph.NodeID]struct{}) (rewrite, bool) {
	out := w.Clone()
	nodes := make([]osmgraph.NodeID, 0, len(w.Nodes)+2)
	nodes = append(nodes, rep)
	for _, n := range w.Nodes {
		if _, ok := members[n]; !ok {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 1 {
		return rewrite{}, false
	}
	out.Nodes = append(nodes, rep)
	return rewrite{pair: osmgraph.Pair{Src: rep, Dst: rep}, way: out}, true
}

// mergeRecords builds the surviving node record
func mergeRecords(records []*osmgraph.Node, policy CoordinatePolicy) (*osmgraph.Node, error) {
	merged := records[0].Clone()

	var ids []osmgraph.NodeID
	var lon, lat float64
	for _, n := range records {
		if len(n.ConsolidatedIDs) > 0 {
			ids = append(ids, n.ConsolidatedIDs...)
		} else {
			ids = append(ids, n.ID)
		}
		lon += float64(n.Lon)
		lat += float64(n.Lat)
	}
	slices.Sort(ids)
	merged.ConsolidatedIDs = slices.Compact(ids)

	switch policy {
	case "", Centroid:
		merged.Lon = float32(lon / float64(len(records)))
		merged.Lat = float32(lat / float64(len(records)))
	case Representative:
	default:
		return nil, fmt.Errorf("merging node %d: %w", merged.ID,
			osmgraph.Errorf(osmgraph.KindConfiguration, "unknown coordinate policy %q", policy))
	}

	join := func(get func(*osmgraph.Node) string) string {
		values := make([]string, len(records))
		for i, n := range records {
			values[i] = get(n)
		}
		return attr.JoinDistinct(values, osmgraph.ValueDelimiter)
	}
	merged.Highway = join(func(n *osmgraph.Node) string { return n.Highway })
	merged.Ele = join(func(n *osmgraph.Node) string { return n.Ele })
	merged.Junction = join(func(n *osmgraph.Node) string { return n.Junction })
	merged.Railway = join(func(n *osmgraph.Node) string { return n.Railway })
	merged.Ref = join(func(n *osmgraph.Node) string { return n.Ref })
	return merged, nil
}
