package osmgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNodes(ids ...NodeID) []*Node {
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = &Node{ID: id, Lon: float32(id) * 0.001, Lat: 40}
	}
	return out
}

func testWay(id WayID, oneway string, nodes ...NodeID) *Way {
	return NewWay(id, nodes, Tags{Highway: "residential", Oneway: oneway})
}

func TestNewBidirectional(t *testing.T) {
	g, err := New(testNodes(1, 2, 3), []*Way{testWay(10, "", 1, 2, 3)})
	require.NoError(t, err)
	require.NoError(t, g.CheckInvariants())

	assert.Equal(t, []Pair{{1, 2}, {2, 1}, {2, 3}, {3, 2}}, g.Pairs())
	assert.Equal(t, []NodeID{1, 3}, g.Neighbors(2, Forward))
	assert.Equal(t, []NodeID{1, 3}, g.Neighbors(2, Reverse))

	ws, ok := g.Ways(3, 2)
	require.True(t, ok)
	require.Len(t, ws, 1)
	assert.Equal(t, []NodeID{3, 2, 1}, ws[0].Nodes)
}

func TestNewOneway(t *testing.T) {
	tests := []struct {
		name   string
		oneway string
		want   []Pair
	}{
		{"yes", "yes", []Pair{{1, 2}, {2, 3}}},
		{"reverse", "-1", []Pair{{2, 1}, {3, 2}}},
		{"reverse keyword", "reverse", []Pair{{2, 1}, {3, 2}}},
		{"two way", "no", []Pair{{1, 2}, {2, 1}, {2, 3}, {3, 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(testNodes(1, 2, 3), []*Way{testWay(10, tt.oneway, 1, 2, 3)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Pairs())
			require.NoError(t, g.CheckInvariants())
		})
	}
}

func TestRoundaboutIsOneway(t *testing.T) {
	w := NewWay(1, []NodeID{1, 2, 3, 1}, Tags{Highway: "primary", Junction: "roundabout"})
	assert.True(t, w.IsOneway())
	assert.False(t, w.IsReversed())

	g, err := New(testNodes(1, 2, 3), []*Way{w})
	require.NoError(t, err)
	assert.Equal(t, []Pair{{1, 2}, {2, 3}, {3, 1}}, g.Pairs())
}

func TestNewMissingNode(t *testing.T) {
	_, err := New(testNodes(1, 2), []*Way{testWay(10, "", 1, 2, 3)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReferential))
}

func TestInsertNodeTwice(t *testing.T) {
	g := Empty()
	require.NoError(t, g.InsertNode(&Node{ID: 5}))
	err := g.InsertNode(&Node{ID: 5})
	assert.True(t, errors.Is(err, ErrMalformedInput))
	assert.Equal(t, 0, g.NumConnectedNodes())
}

func TestAddNewAdjacencyAppends(t *testing.T) {
	g, err := New(testNodes(1, 2), []*Way{testWay(10, "yes", 1, 2)})
	require.NoError(t, err)

	require.NoError(t, g.AddNewAdjacency(1, 2, []*Way{testWay(11, "yes", 1, 2)}))
	ws, _ := g.Ways(1, 2)
	require.Len(t, ws, 2)
	assert.Equal(t, WayID(11), ws[1].ID)
	assert.Equal(t, 2, g.NumConnectedWays())
	assert.Equal(t, 1, g.NumPairs())

	err = g.AddNewAdjacency(1, 2, nil)
	assert.True(t, errors.Is(err, ErrInternal))
}

func TestUpdateWay(t *testing.T) {
	g, err := New(testNodes(1, 2), []*Way{testWay(10, "yes", 1, 2)})
	require.NoError(t, err)

	require.NoError(t, g.UpdateWay(1, 2, 0, testWay(99, "yes", 1, 2)))
	ws, _ := g.Ways(1, 2)
	assert.Equal(t, WayID(99), ws[0].ID)

	err = g.UpdateWay(1, 2, 1, testWay(100, "yes", 1, 2))
	assert.True(t, errors.Is(err, ErrModification))

	err = g.UpdateWay(2, 1, 0, testWay(100, "yes", 2, 1))
	assert.True(t, errors.Is(err, ErrReferential))
}

func TestReplaceWays(t *testing.T) {
	g, err := New(testNodes(1, 2), []*Way{testWay(10, "yes", 1, 2), testWay(11, "yes", 1, 2)})
	require.NoError(t, err)

	require.NoError(t, g.ReplaceWays(1, 2, []*Way{testWay(12, "yes", 1, 2)}))
	ws, _ := g.Ways(1, 2)
	require.Len(t, ws, 1)
	assert.Equal(t, WayID(12), ws[0].ID)

	require.NoError(t, g.ReplaceWays(2, 1, []*Way{testWay(13, "yes", 2, 1)}))
	assert.Equal(t, []NodeID{1}, g.Neighbors(2, Forward))
	require.NoError(t, g.CheckInvariants())
}

func TestRemoveWay(t *testing.T) {
	g, err := New(testNodes(1, 2, 3), []*Way{testWay(10, "", 1, 2, 3)})
	require.NoError(t, err)

	require.NoError(t, g.RemoveWay(1, 2, true))
	require.NoError(t, g.CheckInvariants())
	_, ok := g.Ways(1, 2)
	assert.False(t, ok)
	assert.Equal(t, []NodeID{3}, g.Neighbors(2, Forward))
	assert.Equal(t, []NodeID{1, 3}, g.Neighbors(2, Reverse))
	assert.Equal(t, 0, g.Degree(1, Forward))
	assert.Equal(t, 1, g.Degree(1, Reverse))

	err = g.RemoveWay(1, 2, true)
	assert.True(t, errors.Is(err, ErrReferential))
	assert.NoError(t, g.RemoveWay(1, 2, false))

	require.NoError(t, g.RemoveWay(2, 1, true))
	assert.False(t, g.IsConnected(1))
	assert.Equal(t, []NodeID{2, 3}, g.ConnectedNodeIDs())
	require.NoError(t, g.CheckInvariants())
}

func TestDisconnectNode(t *testing.T) {
	g, err := New(testNodes(1, 2, 3, 4), []*Way{
		testWay(10, "", 1, 2, 3),
		testWay(11, "yes", 4, 2),
	})
	require.NoError(t, err)

	require.NoError(t, g.DisconnectNode(2, true))
	require.NoError(t, g.CheckInvariants())
	assert.Empty(t, g.ConnectedNodeIDs())
	assert.Equal(t, 0, g.NumPairs())

	_, ok := g.Node(2)
	assert.True(t, ok)

	err = g.DisconnectNode(42, true)
	assert.True(t, errors.Is(err, ErrReferential))
	assert.NoError(t, g.DisconnectNode(42, false))
}

func TestRetireNode(t *testing.T) {
	g, err := New(testNodes(1, 2, 3), []*Way{testWay(10, "", 1, 2, 3)})
	require.NoError(t, err)

	require.NoError(t, g.RetireNode(3, 2, true))
	require.NoError(t, g.CheckInvariants())

	n, ok := g.Node(3)
	require.True(t, ok)
	assert.Equal(t, Retired, n.Status)
	assert.Equal(t, NodeID(2), n.SupersededBy)
	assert.InDelta(t, 0.003, float64(n.Lon), 1e-6)
	assert.Equal(t, 3, g.NumNodes())
	assert.Equal(t, []*Node{n}, g.RetiredNodes())

	err = g.AddNewAdjacency(2, 3, []*Way{testWay(11, "yes", 2, 3)})
	assert.True(t, errors.Is(err, ErrReferential))
}

func TestUndirectedNeighbors(t *testing.T) {
	g, err := New(testNodes(1, 2, 3), []*Way{
		testWay(10, "yes", 1, 2),
		testWay(11, "yes", 2, 3),
		testWay(12, "yes", 3, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{1, 3}, g.UndirectedNeighbors(2))
}

func TestBFSUndirected(t *testing.T) {
	g, err := New(testNodes(1, 2, 3, 4, 5), []*Way{
		testWay(10, "yes", 1, 2),
		testWay(11, "yes", 3, 2),
		testWay(12, "yes", 3, 4),
		testWay(13, "yes", 5, 5),
	})
	require.NoError(t, err)

	got, err := g.BFSUndirected(1, nil)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{1, 2, 3, 4}, got)

	valid := map[NodeID]struct{}{1: {}, 2: {}, 4: {}}
	got, err = g.BFSUndirected(1, valid)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{1, 2}, got)

	_, err = g.BFSUndirected(99, nil)
	assert.True(t, errors.Is(err, ErrReferential))
}

func TestWeaklyConnectedComponents(t *testing.T) {
	g, err := New(testNodes(1, 2, 3, 4, 5, 6), []*Way{
		testWay(10, "yes", 2, 1),
		testWay(11, "", 4, 5, 6),
	})
	require.NoError(t, err)

	comps, err := g.WeaklyConnectedComponents()
	require.NoError(t, err)
	assert.Equal(t, [][]NodeID{{1, 2}, {4, 5, 6}}, comps)
}

func TestExtractBetween(t *testing.T) {
	tests := []struct {
		name     string
		src, dst NodeID
		nodes    []NodeID
		want     []NodeID
		ok       bool
	}{
		{"full", 1, 4, []NodeID{1, 2, 3, 4}, []NodeID{1, 2, 3, 4}, true},
		{"inner", 2, 3, []NodeID{1, 2, 3, 4}, []NodeID{2, 3}, true},
		{"ring", 3, 1, []NodeID{1, 2, 3, 1}, []NodeID{3, 1}, true},
		{"wrong order", 4, 1, []NodeID{1, 2, 3, 4}, nil, false},
		{"missing", 7, 1, []NodeID{1, 2}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBetween(tt.src, tt.dst, tt.nodes)
			if ok != tt.ok {
				t.Fatalf("ExtractBetween ok = %v, want %v", ok, tt.ok)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagsGet(t *testing.T) {
	var tags Tags
	require.True(t, tags.Set("maxspeed", " 30 mph "))
	assert.False(t, tags.Set("surface", "asphalt"))

	v, err := tags.Get("maxspeed")
	require.NoError(t, err)
	assert.Equal(t, "30 mph", v)

	_, err = tags.Get("surface")
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Equal(t, map[string]string{"maxspeed": "30 mph"}, tags.Map())
}

func TestNodeElevation(t *testing.T) {
	tests := []struct {
		ele  string
		want float64
		ok   bool
	}{
		{"", 0, false},
		{"100", 100, true},
		{"100 m", 100, true},
		{"10ft", 3.048, true},
		{"100#200", 150, true},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.ele, func(t *testing.T) {
			n := &Node{Ele: tt.ele}
			got, ok := n.Elevation()
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
