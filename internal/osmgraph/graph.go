package osmgraph

import (
	"cmp"
	"slices"
)

// Direction selects which side of the adjacency index is read
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Pair is an ordered (src, dst) edge key
type Pair struct {
	Src NodeID
	Dst NodeID
}

// ComparePairs orders pairs by (src, dst)
func ComparePairs(a, b Pair) int {
	if c := cmp.Compare(a.Src, b.Src); c != 0 {
		return c
	}
	return cmp.Compare(a.Dst, b.Dst)
}

type adjKey struct {
	id  NodeID
	dir Direction
}

// Graph is a directed multigraph over OSM nodes. Node records live in a
// flat table; edges are way collections keyed by endpoint pair, mirrored by
// a forward/reverse adjacency index.
//
// Graph is not safe for concurrent mutation. Read methods may be called
// from many goroutines once mutation has stopped.
type Graph struct {
	nodes map[NodeID]*Node
	ways  map[Pair][]*Way
	adj   map[adjKey]map[NodeID]struct{}
}

// Empty returns a graph with no nodes
func Empty() *Graph {
	return &Graph{
		nodes: make(map[NodeID]*Node),
		ways:  make(map[Pair][]*Way),
		adj:   make(map[adjKey]map[NodeID]struct{}),
	}
}

// New builds a graph from node and way records. One-way ways digitised
// against their travel direction are reversed first. Ways that are not
// one-way contribute every reverse pair too, stored with the reversed node
// list.
func New(nodes []*Node, ways []*Way) (*Graph, error) {
	g := Empty()
	for _, n := range nodes {
		if err := g.InsertNode(n); err != nil {
			return nil, err
		}
	}
	for _, w := range ways {
		if err := g.addWay(w); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) addWay(w *Way) error {
	fwd := w
	if w.IsReversed() {
		fwd = w.Reversed()
	}
	if err := g.addPairs(fwd); err != nil {
		return err
	}
	if fwd.IsOneway() {
		return nil
	}
	return g.addPairs(fwd.Reversed())
}

func (g *Graph) addPairs(w *Way) error {
	for i := 1; i < len(w.Nodes); i++ {
		src, dst := w.Nodes[i-1], w.Nodes[i]
		if src == dst {
			continue
		}
		if err := g.AddNewAdjacency(src, dst, []*Way{w}); err != nil {
			return Wrap(KindReferential, err, "way %d", w.ID)
		}
	}
	return nil
}

// InsertNode adds a node record. Adjacency is untouched.
func (g *Graph) InsertNode(n *Node) error {
	if _, ok := g.nodes[n.ID]; ok {
		return Errorf(KindMalformedInput, "node %d inserted twice", n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// UpdateNode overwrites an existing node record
func (g *Graph) UpdateNode(n *Node) error {
	if _, ok := g.nodes[n.ID]; !ok {
		return missingNode(n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// Node returns the record for id, active or retired
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// MustNode returns the record for id or a referential error
func (g *Graph) MustNode(id NodeID) (*Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, missingNode(id)
	}
	return n, nil
}

// Ways returns the way collection stored for (src, dst)
func (g *Graph) Ways(src, dst NodeID) ([]*Way, bool) {
	ws, ok := g.ways[Pair{src, dst}]
	return ws, ok
}

// AddNewAdjacency appends ways to the (src, dst) collection, creating it if
// needed, and links src→dst in the adjacency index.
func (g *Graph) AddNewAdjacency(src, dst NodeID, ways []*Way) error {
	if len(ways) == 0 {
		return Errorf(KindInternal, "add_new_adjacency called with no ways for (%d)->(%d)", src, dst)
	}
	if err := g.requireActive(src, dst); err != nil {
		return err
	}
	p := Pair{src, dst}
	g.ways[p] = append(g.ways[p], ways...)
	g.link(src, dst)
	return nil
}

// UpdateWay replaces the way at index in the (src, dst) collection
func (g *Graph) UpdateWay(src, dst NodeID, index int, w *Way) error {
	ws, ok := g.ways[Pair{src, dst}]
	if !ok {
		return missingPair(src, dst)
	}
	if index < 0 || index >= len(ws) {
		return Errorf(KindModification, "way index %d out of range for (%d)->(%d) with %d ways", index, src, dst, len(ws))
	}
	ws[index] = w
	return nil
}

// ReplaceWays overwrites the (src, dst) collection
func (g *Graph) ReplaceWays(src, dst NodeID, ways []*Way) error {
	if len(ways) == 0 {
		return Errorf(KindInternal, "replace_ways called with no ways for (%d)->(%d)", src, dst)
	}
	if err := g.requireActive(src, dst); err != nil {
		return err
	}
	g.ways[Pair{src, dst}] = ways
	g.link(src, dst)
	return nil
}

// RemoveWay drops the (src, dst) collection and its adjacency entries.
// With failIfMissing unset an absent pair is a no-op.
func (g *Graph) RemoveWay(src, dst NodeID, failIfMissing bool) error {
	p := Pair{src, dst}
	if _, ok := g.ways[p]; !ok {
		if failIfMissing {
			return missingPair(src, dst)
		}
		return nil
	}
	delete(g.ways, p)
	g.unlink(adjKey{src, Forward}, dst)
	g.unlink(adjKey{dst, Reverse}, src)
	return nil
}

// DisconnectNode removes every pair incident to id in either direction
func (g *Graph) DisconnectNode(id NodeID, failIfMissing bool) error {
	if _, ok := g.nodes[id]; !ok {
		if failIfMissing {
			return missingNode(id)
		}
		return nil
	}
	for _, dst := range g.Neighbors(id, Forward) {
		if err := g.RemoveWay(id, dst, true); err != nil {
			return err
		}
	}
	for _, src := range g.Neighbors(id, Reverse) {
		if err := g.RemoveWay(src, id, true); err != nil {
			return err
		}
	}
	return nil
}

// RetireNode disconnects id and marks its record retired. The record stays
// in the node table so its data can still be inspected.
func (g *Graph) RetireNode(id, supersededBy NodeID, failIfMissing bool) error {
	n, ok := g.nodes[id]
	if !ok {
		if failIfMissing {
			return missingNode(id)
		}
		return nil
	}
	if err := g.DisconnectNode(id, true); err != nil {
		return err
	}
	n.Status = Retired
	n.SupersededBy = supersededBy
	return nil
}

// Neighbors returns the sorted neighbours of id in one direction
func (g *Graph) Neighbors(id NodeID, dir Direction) []NodeID {
	set := g.adj[adjKey{id, dir}]
	out := make([]NodeID, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// UndirectedNeighbors returns the sorted union of forward and reverse neighbours
func (g *Graph) UndirectedNeighbors(id NodeID) []NodeID {
	out := append(g.Neighbors(id, Forward), g.Neighbors(id, Reverse)...)
	slices.Sort(out)
	return slices.Compact(out)
}

// Degree returns the neighbour count of id in one direction
func (g *Graph) Degree(id NodeID, dir Direction) int {
	return len(g.adj[adjKey{id, dir}])
}

// IsConnected reports whether id has any adjacency entry
func (g *Graph) IsConnected(id NodeID) bool {
	return g.Degree(id, Forward) > 0 || g.Degree(id, Reverse) > 0
}

// ConnectedNodeIDs returns every node with an adjacency entry, sorted
func (g *Graph) ConnectedNodeIDs() []NodeID {
	seen := make(map[NodeID]struct{}, len(g.adj)/2+1)
	for k := range g.adj {
		seen[k.id] = struct{}{}
	}
	out := make([]NodeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// NodeIDs returns every node in the table, retired ones included, sorted
func (g *Graph) NodeIDs() []NodeID {
	out := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Pairs returns every edge key sorted by (src, dst)
func (g *Graph) Pairs() []Pair {
	out := make([]Pair, 0, len(g.ways))
	for p := range g.ways {
		out = append(out, p)
	}
	slices.SortFunc(out, ComparePairs)
	return out
}

// NumNodes counts node records, retired ones included
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumConnectedNodes counts nodes with an adjacency entry
func (g *Graph) NumConnectedNodes() int { return len(g.ConnectedNodeIDs()) }

// NumPairs counts edge keys
func (g *Graph) NumPairs() int { return len(g.ways) }

// NumConnectedWays counts way records across all pairs
func (g *Graph) NumConnectedWays() int {
	total := 0
	for _, ws := range g.ways {
		total += len(ws)
	}
	return total
}

// RetiredNodes returns retired records sorted by ID
func (g *Graph) RetiredNodes() []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Status == Retired {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// CheckInvariants verifies the pair/adjacency mirror, adjacency pruning
// and that every referenced node exists and is active.
func (g *Graph) CheckInvariants() error {
	for p := range g.ways {
		if _, ok := g.adj[adjKey{p.Src, Forward}][p.Dst]; !ok {
			return Errorf(KindInternal, "pair (%d)->(%d) has no forward adjacency", p.Src, p.Dst)
		}
		if _, ok := g.adj[adjKey{p.Dst, Reverse}][p.Src]; !ok {
			return Errorf(KindInternal, "pair (%d)->(%d) has no reverse adjacency", p.Src, p.Dst)
		}
	}
	for k, set := range g.adj {
		if len(set) == 0 {
			return Errorf(KindInternal, "empty %s adjacency entry for node %d", k.dir, k.id)
		}
		n, ok := g.nodes[k.id]
		if !ok {
			return missingNode(k.id)
		}
		if !n.IsActive() {
			return Errorf(KindInternal, "retired node %d still has adjacency", k.id)
		}
		for nb := range set {
			if _, ok := g.nodes[nb]; !ok {
				return missingNode(nb)
			}
			p := Pair{k.id, nb}
			if k.dir == Reverse {
				p = Pair{nb, k.id}
			}
			if _, ok := g.ways[p]; !ok {
				return Errorf(KindInternal, "%s adjacency %d->%d has no ways", k.dir, k.id, nb)
			}
		}
	}
	return nil
}

func (g *Graph) requireActive(ids ...NodeID) error {
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			return missingNode(id)
		}
		if !n.IsActive() {
			return Errorf(KindReferential, "node %d is retired (superseded by %d)", id, n.SupersededBy)
		}
	}
	return nil
}

func (g *Graph) link(src, dst NodeID) {
	g.insertAdj(adjKey{src, Forward}, dst)
	g.insertAdj(adjKey{dst, Reverse}, src)
}

func (g *Graph) insertAdj(k adjKey, n NodeID) {
	set, ok := g.adj[k]
	if !ok {
		set = make(map[NodeID]struct{}, 2)
		g.adj[k] = set
	}
	set[n] = struct{}{}
}

func (g *Graph) unlink(k adjKey, n NodeID) {
	set, ok := g.adj[k]
	if !ok {
		return
	}
	delete(set, n)
	if len(set) == 0 {
		delete(g.adj, k)
	}
}
