package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
)

// metersNorth returns the latitude offset for m meters
func metersNorth(m float64) float64 {
	return MetersToAngle(m).Degrees()
}

func TestNewBufferRect(t *testing.T) {
	b := NewBuffer(1, 10, 45, 15)
	d := metersNorth(15)
	assert.InDelta(t, 45-d, b.Rect.Min[1], d*0.05)
	assert.InDelta(t, 45+d, b.Rect.Max[1], d*0.05)
	assert.Less(t, b.Rect.Min[0], 10.0)
	assert.Greater(t, b.Rect.Max[0], 10.0)
}

func TestBuildTransitive(t *testing.T) {
	// A-B and B-C overlap with a 15 m radius, A-C do not
	buffers := []Buffer{
		NewBuffer(1, 0, metersNorth(0), 15),
		NewBuffer(2, 0, metersNorth(25), 15),
		NewBuffer(3, 0, metersNorth(50), 15),
	}
	assert.False(t, buffers[0].Polygon.Intersects(buffers[2].Polygon))

	got := Build(buffers)
	assert.Equal(t, [][]osmgraph.NodeID{{1, 2, 3}}, got)
}

func TestBuildTransitiveOutOfOrder(t *testing.T) {
	// A and C arrive first and stay apart until B bridges them
	buffers := []Buffer{
		NewBuffer(1, 0, metersNorth(0), 15),
		NewBuffer(3, 0, metersNorth(50), 15),
		NewBuffer(2, 0, metersNorth(25), 15),
	}
	assert.Equal(t, [][]osmgraph.NodeID{{1, 2, 3}}, Build(buffers))
}

func TestBuildSeparate(t *testing.T) {
	buffers := []Buffer{
		NewBuffer(5, 0, metersNorth(0), 15),
		NewBuffer(2, 0, metersNorth(100), 15),
		NewBuffer(9, 0, metersNorth(105), 15),
	}
	assert.Equal(t, [][]osmgraph.NodeID{{2, 9}, {5}}, Build(buffers))
}

func TestBuildBoundingBoxOnly(t *testing.T) {
	// diagonal neighbours: rectangles overlap at the corner, discs do not
	d := metersNorth(26)
	buffers := []Buffer{
		NewBuffer(1, 0, 0, 15),
		NewBuffer(2, d, d, 15),
	}
	assert.Equal(t, [][]osmgraph.NodeID{{1}, {2}}, Build(buffers))
}

func TestBuildDeterministic(t *testing.T) {
	var buffers []Buffer
	for i := 0; i < 40; i++ {
		buffers = append(buffers, NewBuffer(osmgraph.NodeID(i+1), 0, metersNorth(float64(i%10)*20+float64(i/10)*500), 15))
	}
	first := Build(buffers)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Build(buffers))
	}
	total := 0
	for _, c := range first {
		total += len(c)
	}
	assert.Equal(t, 40, total)
}

func TestBuffers(t *testing.T) {
	nodes := []*osmgraph.Node{
		{ID: 3, Lon: 0, Lat: 0},
		{ID: 1, Lon: 0.0001, Lat: 0},
		{ID: 2, Lon: 1, Lat: 1},
	}
	w := osmgraph.NewWay(10, []osmgraph.NodeID{3, 1}, osmgraph.Tags{Highway: "residential"})
	g, err := osmgraph.New(nodes, []*osmgraph.Way{w})
	require.NoError(t, err)

	bs, err := Buffers(g, 15, 2)
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.Equal(t, osmgraph.NodeID(1), bs[0].ID)
	assert.Equal(t, osmgraph.NodeID(3), bs[1].ID)
}
