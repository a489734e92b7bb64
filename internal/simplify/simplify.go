// Package simplify collapses chains of pass-through nodes into single
// edges between endpoints.
package simplify

import (
	"fmt"
	"slices"

	"github.com/wegman-software/osm2graph-go/internal/attr"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/progress"
)

// Result summarises a simplification pass
type Result struct {
	Endpoints    int
	Paths        int
	RemovedNodes int
}

type path struct {
	nodes []osmgraph.NodeID
	way   *osmgraph.Way
}

// Graph replaces every chain between two endpoints with one aggregated
// way. Rings with no endpoint are left untouched.
func Graph(g *osmgraph.Graph, sink progress.Sink) (Result, error) {
	var res Result
	ids := g.ConnectedNodeIDs()
	endpoints := make(map[osmgraph.NodeID]struct{})
	for _, id := range ids {
		if IsEndpoint(g, id) {
			endpoints[id] = struct{}{}
		}
	}
	res.Endpoints = len(endpoints)

	var paths []path
	total := int64(len(ids))
	for i, id := range ids {
		if _, ok := endpoints[id]; !ok {
			continue
		}
		for _, succ := range g.Neighbors(id, osmgraph.Forward) {
			if _, ok := endpoints[succ]; ok {
				continue
			}
			nodes, err := walk(g, id, succ, endpoints)
			if err != nil {
				return res, err
			}
			w, err := buildWay(g, nodes)
			if err != nil {
				return res, err
			}
			paths = append(paths, path{nodes: nodes, way: w})
		}
		if done := int64(i + 1); progress.Every(done, total) {
			sink.Send("simplify", done, total)
		}
	}

	interstitial := make(map[osmgraph.NodeID]struct{})
	for _, p := range paths {
		for i := 1; i < len(p.nodes); i++ {
			if err := g.RemoveWay(p.nodes[i-1], p.nodes[i], false); err != nil {
				return res, err
			}
		}
		for _, n := range p.nodes[1 : len(p.nodes)-1] {
			interstitial[n] = struct{}{}
		}
	}
	for _, p := range paths {
		src, dst := p.nodes[0], p.nodes[len(p.nodes)-1]
		if err := g.AddNewAdjacency(src, dst, []*osmgraph.Way{p.way}); err != nil {
			return res, fmt.Errorf("attaching simplified path: %w", err)
		}
	}
	for n := range interstitial {
		if err := g.DisconnectNode(n, false); err != nil {
			return res, err
		}
	}

	res.Paths = len(paths)
	res.RemovedNodes = len(interstitial)
	return res, nil
}

// IsEndpoint reports whether id must survive simplification: it carries
// a self-loop, has other than two distinct neighbours, is not a clean
// two-way or one-way pass-through, has parallel ways, or joins ways of
// different highway classes.
func IsEndpoint(g *osmgraph.Graph, id osmgraph.NodeID) bool {
	out := g.Neighbors(id, osmgraph.Forward)
	in := g.Neighbors(id, osmgraph.Reverse)
	if slices.Contains(out, id) || slices.Contains(in, id) {
		return true
	}
	if len(g.UndirectedNeighbors(id)) != 2 {
		return true
	}
	if len(out) == 0 || len(in) == 0 {
		return true
	}
	twoWay := slices.Equal(in, out)
	oneWay := len(in) == 1 && len(out) == 1 && in[0] != out[0]
	if !twoWay && !oneWay {
		return true
	}

	var class string
	check := func(src, dst osmgraph.NodeID) bool {
		ws, _ := g.Ways(src, dst)
		if len(ws) != 1 {
			return true
		}
		if class == "" {
			class = ws[0].Tags.Highway
		}
		return ws[0].Tags.Highway != class
	}
	for _, dst := range out {
		if check(id, dst) {
			return true
		}
	}
	for _, src := range in {
		if check(src, id) {
			return true
		}
	}
	return false
}

// walk follows successors from start through succ until the next endpoint
func walk(g *osmgraph.Graph, start, succ osmgraph.NodeID, endpoints map[osmgraph.NodeID]struct{}) ([]osmgraph.NodeID, error) {
	nodes := []osmgraph.NodeID{start, succ}
	visited := map[osmgraph.NodeID]struct{}{start: {}, succ: {}}
	prev, cur := start, succ
	for {
		if _, ok := endpoints[cur]; ok {
			return nodes, nil
		}
		var next osmgraph.NodeID
		found := false
		for _, n := range g.Neighbors(cur, osmgraph.Forward) {
			if n != prev {
				next, found = n, true
				break
			}
		}
		if !found {
			return nil, osmgraph.Errorf(osmgraph.KindSimplification, "path from %d stalls at pass-through node %d", start, cur)
		}
		if _, seen := visited[next]; seen && next != start {
			return nil, osmgraph.Errorf(osmgraph.KindSimplification, "path from %d revisits node %d", start, next)
		}
		nodes = append(nodes, next)
		if next == start {
			return nodes, nil
		}
		visited[next] = struct{}{}
		prev, cur = cur, next
	}
}

// buildWay aggregates the first way of each hop, each narrowed to its hop
func buildWay(g *osmgraph.Graph, nodes []osmgraph.NodeID) (*osmgraph.Way, error) {
	segments := make([]*osmgraph.Way, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		src, dst := nodes[i-1], nodes[i]
		ws, ok := g.Ways(src, dst)
		if !ok || len(ws) == 0 {
			return nil, osmgraph.Errorf(osmgraph.KindReferential, "no ways found for pair (%d)->(%d)", src, dst)
		}
		seg := ws[0].Clone()
		if sub, ok := seg.SubPath(src, dst); ok {
			seg.Nodes = slices.Clone(sub)
		} else {
			seg.Nodes = []osmgraph.NodeID{src, dst}
		}
		segments = append(segments, seg)
	}
	w, err := attr.AggregateWays(segments)
	if err != nil {
		return nil, fmt.Errorf("aggregating path %d->%d: %w", nodes[0], nodes[len(nodes)-1], err)
	}
	return w, nil
}
