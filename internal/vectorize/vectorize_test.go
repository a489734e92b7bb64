package vectorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osm2graph-go/internal/cluster"
	"github.com/wegman-software/osm2graph-go/internal/consolidate"
	"github.com/wegman-software/osm2graph-go/internal/highway"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// node places id at (east, north) meters from the origin
func node(id osmgraph.NodeID, east, north float64) *osmgraph.Node {
	return &osmgraph.Node{
		ID:  id,
		Lon: float32(cluster.MetersToAngle(east).Degrees()),
		Lat: float32(cluster.MetersToAngle(north).Degrees()),
	}
}

func way(id osmgraph.WayID, tags osmgraph.Tags, nodes ...osmgraph.NodeID) *osmgraph.Way {
	if tags.Highway == "" {
		tags.Highway = "residential"
	}
	return osmgraph.NewWay(id, nodes, tags)
}

func TestRunChain(t *testing.T) {
	g, err := osmgraph.New(
		[]*osmgraph.Node{node(3, 0, 0), node(1, 100, 0), node(2, 200, 0)},
		[]*osmgraph.Way{way(10, osmgraph.Tags{Maxspeed: "30 mph", Name: "Elm"}, 3, 1, 2)},
	)
	require.NoError(t, err)

	vg, err := Run(g, Options{Workers: 2})
	require.NoError(t, err)

	require.Len(t, vg.Vertices, 3)
	assert.Equal(t, osmgraph.NodeID(1), vg.Vertices[0].Node.ID)
	assert.Equal(t, osmgraph.NodeID(3), vg.Vertices[2].Node.ID)
	assert.Equal(t, 2, vg.VertexIndex[3])

	// pairs sorted by (src, dst): 1->2, 1->3, 2->1, 3->1
	require.Len(t, vg.Edges, 4)
	for i, e := range vg.Edges {
		assert.Equal(t, i, e.EdgeID)
	}
	e := vg.Edges[0]
	assert.Equal(t, osmgraph.NodeID(1), e.Src)
	assert.Equal(t, osmgraph.NodeID(2), e.Dst)
	assert.Equal(t, 0, e.SrcVertex)
	assert.Equal(t, 1, e.DstVertex)
	assert.Equal(t, highway.Class("residential"), e.Highway)
	assert.InDelta(t, 100, e.LengthMeters, 0.5)
	assert.Len(t, e.Geometry, 2)
	assert.True(t, e.HasMaxspeed)
	assert.InDelta(t, 48.28, e.MaxspeedKph, 0.01)

	rev := vg.Edges[2]
	assert.Equal(t, osmgraph.NodeID(2), rev.Src)
	assert.Equal(t, float64(mustNode(t, g, 2).Lon), rev.Geometry[0][0])
}

func mustNode(t *testing.T, g *osmgraph.Graph, id osmgraph.NodeID) *osmgraph.Node {
	t.Helper()
	n, err := g.MustNode(id)
	require.NoError(t, err)
	return n
}

func TestParallelWaysAggregate(t *testing.T) {
	g, err := osmgraph.New(
		[]*osmgraph.Node{node(1, 0, 0), node(2, 0, 100), node(3, 0, 200)},
		[]*osmgraph.Way{
			way(10, osmgraph.Tags{Highway: "residential", Oneway: "yes", Maxspeed: "50"}, 1, 3),
			way(11, osmgraph.Tags{Highway: "primary", Oneway: "yes", Maxspeed: "40"}, 1, 3),
			way(12, osmgraph.Tags{Oneway: "yes"}, 3, 2),
		},
	)
	require.NoError(t, err)

	vg, err := Run(g, Options{})
	require.NoError(t, err)

	var onePair *Edge
	for i := range vg.Edges {
		if vg.Edges[i].Src == 1 && vg.Edges[i].Dst == 3 {
			onePair = &vg.Edges[i]
		}
	}
	require.NotNil(t, onePair)
	assert.Equal(t, highway.Class("primary"), onePair.Highway)
	assert.Equal(t, 40.0, onePair.MaxspeedKph)
	assert.ElementsMatch(t, []osmgraph.WayID{10, 11}, onePair.Way.Constituents())
	assert.Len(t, onePair.Geometry, 2)
	assert.Equal(t, []osmgraph.NodeID{1, 3}, onePair.Way.Nodes)
	assert.InDelta(t, 200, onePair.LengthMeters, 1)
}

func TestHighwayOutsideHierarchy(t *testing.T) {
	g, err := osmgraph.New(
		[]*osmgraph.Node{node(1, 0, 0), node(2, 100, 0), node(3, 200, 0), node(4, 300, 0)},
		[]*osmgraph.Way{
			way(10, osmgraph.Tags{Highway: "services", Oneway: "yes", Maxspeed: "20"}, 1, 2),
			way(11, osmgraph.Tags{Highway: "rest_area", Oneway: "yes"}, 2, 3),
			osmgraph.NewWay(12, []osmgraph.NodeID{3, 4}, osmgraph.Tags{Landuse: "industrial", Oneway: "yes"}),
		},
	)
	require.NoError(t, err)

	vg, err := Run(g, Options{})
	require.NoError(t, err)
	require.Len(t, vg.Edges, 3)

	assert.Equal(t, highway.Class("services"), vg.Edges[0].Highway)
	assert.Equal(t, highway.Class("rest_area"), vg.Edges[1].Highway)
	assert.Empty(t, vg.Edges[2].Highway)

	// no class average for either, both fall back to the global one
	kph, ok := vg.Speeds.Speed(vg.Edges[1])
	require.True(t, ok)
	assert.Equal(t, 20.0, kph)
	kph, ok = vg.Speeds.Speed(vg.Edges[2])
	require.True(t, ok)
	assert.Equal(t, 20.0, kph)
}

func TestMergedNodesBecomeOneVertex(t *testing.T) {
	g, err := osmgraph.New(
		[]*osmgraph.Node{node(1, 0, 0), node(2, 5, 0)},
		[]*osmgraph.Way{way(100, osmgraph.Tags{}, 1, 2)},
	)
	require.NoError(t, err)
	_, err = consolidate.Graph(g, consolidate.Options{ToleranceMeters: 15})
	require.NoError(t, err)

	vg, err := Run(g, Options{})
	require.NoError(t, err)
	require.Len(t, vg.Vertices, 1)
	assert.Equal(t, []osmgraph.NodeID{1, 2}, vg.Vertices[0].Node.ConsolidatedIDs)
	assert.Empty(t, vg.Edges)
}

func TestDegenerateGeometry(t *testing.T) {
	build := func() *osmgraph.Graph {
		g, err := osmgraph.New(
			[]*osmgraph.Node{node(1, 0, 0), node(2, 0, 0), node(3, 50, 0)},
			[]*osmgraph.Way{
				way(10, osmgraph.Tags{Oneway: "yes"}, 1, 2),
				way(11, osmgraph.Tags{Oneway: "yes"}, 2, 3),
			},
		)
		require.NoError(t, err)
		return g
	}

	vg, err := Run(build(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, vg.Skipped)
	require.Len(t, vg.Edges, 1)
	assert.Equal(t, 0, vg.Edges[0].EdgeID)
	assert.Equal(t, osmgraph.NodeID(2), vg.Edges[0].Src)

	_, err = Run(build(), Options{Strict: true})
	assert.Equal(t, osmgraph.KindInternal, osmgraph.KindOf(err))
}

func TestInvalidMaxspeed(t *testing.T) {
	build := func() *osmgraph.Graph {
		g, err := osmgraph.New(
			[]*osmgraph.Node{node(1, 0, 0), node(2, 50, 0)},
			[]*osmgraph.Way{way(10, osmgraph.Tags{Oneway: "yes", Maxspeed: "fast"}, 1, 2)},
		)
		require.NoError(t, err)
		return g
	}
	_, err := Run(build(), Options{})
	assert.Equal(t, osmgraph.KindMalformedInput, osmgraph.KindOf(err))

	vg, err := Run(build(), Options{IgnoreInvalidTags: true})
	require.NoError(t, err)
	assert.False(t, vg.Edges[0].HasMaxspeed)
}

func TestFillLookup(t *testing.T) {
	edges := []Edge{
		{Highway: "primary", LengthMeters: 300, MaxspeedKph: 60, HasMaxspeed: true},
		{Highway: "primary", LengthMeters: 100, MaxspeedKph: 100, HasMaxspeed: true},
		{Highway: "residential", LengthMeters: 100, MaxspeedKph: 30, HasMaxspeed: true},
		{Highway: "residential", LengthMeters: 500},
	}
	f := NewFillLookup(edges)

	kph, ok := f.Get("primary")
	require.True(t, ok)
	assert.InDelta(t, 70, kph, 1e-9)

	kph, _ = f.Get("residential")
	assert.InDelta(t, 30, kph, 1e-9)

	// (60*300 + 100*100 + 30*100) / 500
	kph, ok = f.Get("track")
	require.True(t, ok)
	assert.InDelta(t, 62, kph, 1e-9)

	kph, _ = f.Speed(edges[3])
	assert.InDelta(t, 30, kph, 1e-9)
	kph, _ = f.Speed(edges[1])
	assert.Equal(t, 100.0, kph)

	defaults := f.Defaults()
	assert.Len(t, defaults, len(highway.Classes()))

	// a class-less edge counts toward the global average only
	f = NewFillLookup(append(edges,
		Edge{LengthMeters: 500, MaxspeedKph: 62, HasMaxspeed: true},
		Edge{Highway: "services", LengthMeters: 100, MaxspeedKph: 20, HasMaxspeed: true}))
	kph, _ = f.Get("")
	assert.InDelta(t, (62*1000+20*100)/1100.0, kph, 1e-9)
	kph, _ = f.Get("services")
	assert.Equal(t, 20.0, kph)
	defaults = f.Defaults()
	require.Len(t, defaults, len(highway.Classes())+1)
	assert.Equal(t, ClassSpeed{Class: "services", Kph: 20, Observed: true}, defaults[len(defaults)-1])

	_, ok = NewFillLookup(nil).Get("primary")
	assert.False(t, ok)
	assert.Nil(t, NewFillLookup(nil).Defaults())
}
