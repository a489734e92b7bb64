package simplify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

func nodes(ids ...osmgraph.NodeID) []*osmgraph.Node {
	out := make([]*osmgraph.Node, len(ids))
	for i, id := range ids {
		out[i] = &osmgraph.Node{ID: id, Lon: float32(id) * 0.001}
	}
	return out
}

func way(id osmgraph.WayID, hw, oneway string, ns ...osmgraph.NodeID) *osmgraph.Way {
	return osmgraph.NewWay(id, ns, osmgraph.Tags{Highway: hw, Oneway: oneway, Name: "Elm"})
}

func TestTwoWayChain(t *testing.T) {
	g, err := osmgraph.New(nodes(1, 2, 3, 4), []*osmgraph.Way{
		way(10, "residential", "", 1, 2, 3),
		way(11, "residential", "", 3, 4),
	})
	require.NoError(t, err)

	res, err := Graph(g, nil)
	require.NoError(t, err)
	require.NoError(t, g.CheckInvariants())
	assert.Equal(t, 2, res.Endpoints)
	assert.Equal(t, 2, res.Paths)
	assert.Equal(t, 2, res.RemovedNodes)

	assert.Equal(t, []osmgraph.Pair{{Src: 1, Dst: 4}, {Src: 4, Dst: 1}}, g.Pairs())
	ws, ok := g.Ways(1, 4)
	require.True(t, ok)
	require.Len(t, ws, 1)
	assert.Equal(t, []osmgraph.NodeID{1, 2, 3, 4}, ws[0].Nodes)
	assert.Equal(t, []osmgraph.WayID{10, 11}, ws[0].WayIDs)
	assert.Equal(t, "Elm", ws[0].Tags.Name)

	ws, _ = g.Ways(4, 1)
	assert.Equal(t, []osmgraph.NodeID{4, 3, 2, 1}, ws[0].Nodes)
	assert.Equal(t, []osmgraph.WayID{11, 10}, ws[0].WayIDs)
}

func TestOnewayChain(t *testing.T) {
	g, err := osmgraph.New(nodes(1, 2, 3), []*osmgraph.Way{way(10, "primary", "yes", 1, 2, 3)})
	require.NoError(t, err)

	_, err = Graph(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []osmgraph.Pair{{Src: 1, Dst: 3}}, g.Pairs())
	assert.False(t, g.IsConnected(2))
}

func TestClassChangeKeepsEndpoint(t *testing.T) {
	g, err := osmgraph.New(nodes(1, 2, 3), []*osmgraph.Way{
		way(10, "residential", "", 1, 2),
		way(11, "primary", "", 2, 3),
	})
	require.NoError(t, err)

	assert.True(t, IsEndpoint(g, 2))
	res, err := Graph(g, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Paths)
	assert.Equal(t, 4, g.NumPairs())
}

func TestIsEndpoint(t *testing.T) {
	g, err := osmgraph.New(nodes(1, 2, 3, 4, 5, 6), []*osmgraph.Way{
		way(10, "residential", "", 1, 2, 3),
		way(11, "residential", "", 2, 4),
		way(12, "residential", "yes", 5, 6),
		way(13, "residential", "yes", 6, 5),
	})
	require.NoError(t, err)

	tests := []struct {
		id   osmgraph.NodeID
		want bool
	}{
		{1, true},  // dead end
		{2, true},  // three neighbours
		{5, true},  // parallel ways 5->6 and 6->5 share a single neighbour
		{6, true},
	}
	for _, tt := range tests {
		if got := IsEndpoint(g, tt.id); got != tt.want {
			t.Errorf("IsEndpoint(%d) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestIsolatedRingUntouched(t *testing.T) {
	g, err := osmgraph.New(nodes(1, 2, 3), []*osmgraph.Way{way(10, "residential", "", 1, 2, 3, 1)})
	require.NoError(t, err)
	before := g.Pairs()

	res, err := Graph(g, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Endpoints)
	assert.Equal(t, before, g.Pairs())
}

func TestLoopBackToEndpoint(t *testing.T) {
	// 1 is a dead-end stub off a one-way loop 2->3->4->2
	g, err := osmgraph.New(nodes(1, 2, 3, 4), []*osmgraph.Way{
		way(10, "residential", "", 1, 2),
		way(11, "residential", "yes", 2, 3, 4, 2),
	})
	require.NoError(t, err)

	_, err = Graph(g, nil)
	require.NoError(t, err)
	require.NoError(t, g.CheckInvariants())
	ws, ok := g.Ways(2, 2)
	require.True(t, ok)
	assert.Equal(t, []osmgraph.NodeID{2, 3, 4, 2}, ws[0].Nodes)
}
