package osmgraph

import "slices"

// BFSUndirected returns every node reachable from src over forward and
// reverse adjacency, expanding only into nodes of valid. A nil valid set
// allows every node. The result is in visit order, src first.
func (g *Graph) BFSUndirected(src NodeID, valid map[NodeID]struct{}) ([]NodeID, error) {
	if _, ok := g.nodes[src]; !ok {
		return nil, missingNode(src)
	}
	visited := map[NodeID]struct{}{src: {}}
	queue := []NodeID{src}
	order := []NodeID{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.UndirectedNeighbors(cur) {
			if _, seen := visited[nb]; seen {
				continue
			}
			if valid != nil {
				if _, ok := valid[nb]; !ok {
					continue
				}
			}
			visited[nb] = struct{}{}
			queue = append(queue, nb)
			order = append(order, nb)
		}
	}
	return order, nil
}

// WeaklyConnectedComponents partitions the connected nodes. Members of each
// component are sorted; components are ordered by their smallest member.
func (g *Graph) WeaklyConnectedComponents() ([][]NodeID, error) {
	assigned := make(map[NodeID]struct{})
	var out [][]NodeID
	for _, id := range g.ConnectedNodeIDs() {
		if _, ok := assigned[id]; ok {
			continue
		}
		comp, err := g.BFSUndirected(id, nil)
		if err != nil {
			return nil, err
		}
		for _, n := range comp {
			assigned[n] = struct{}{}
		}
		slices.Sort(comp)
		out = append(out, comp)
	}
	return out, nil
}
