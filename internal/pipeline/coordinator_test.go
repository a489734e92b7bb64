package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/osm/osmxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osm2graph-go/internal/config"
	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/output"
	"github.com/wegman-software/osm2graph-go/internal/parquet"
)

// a four node residential street plus a far away two node track
const network = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002"/>
  <node id="4" lat="0" lon="0.003"/>
  <node id="5" lat="1" lon="1"/>
  <node id="6" lat="1" lon="1.001"/>
  <way id="10">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
    <tag k="maxspeed" v="30"/>
  </way>
  <way id="11">
    <nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="residential"/>
    <tag k="maxspeed" v="30"/>
  </way>
  <way id="20">
    <nd ref="5"/><nd ref="6"/>
    <tag k="highway" v="track"/>
  </way>
</osm>`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.InputFile = "network.osm"
	cfg.OutputDir = t.TempDir()
	cfg.Filter = filter.Config{Type: filter.NoFilter}
	cfg.Workers = 2
	cfg.MetricsInterval = 0
	cfg.Strict = true
	return cfg
}

func run(t *testing.T, cfg *config.Config) *BuildStats {
	t.Helper()
	c, err := NewCoordinator(cfg)
	require.NoError(t, err)
	defer c.Close()

	scanner := osmxml.New(context.Background(), strings.NewReader(network))
	defer scanner.Close()
	stats, err := c.RunScanner(context.Background(), scanner)
	require.NoError(t, err)
	return stats
}

func TestBuildSimplified(t *testing.T) {
	cfg := testConfig(t)
	cfg.Consolidate = false
	cfg.Parquet = true

	stats := run(t, cfg)

	assert.Equal(t, 2, stats.Components.Components)
	assert.Equal(t, 1, stats.Components.Kept)
	assert.Equal(t, 2, stats.Components.Disconnected)
	require.NotNil(t, stats.Simplify)
	require.NotNil(t, stats.ComponentsAgain)
	assert.Nil(t, stats.Consolidate)

	// the street collapses to one edge each way between its ends
	assert.Equal(t, 2, stats.Vertices)
	assert.Equal(t, 2, stats.Edges)
	assert.Zero(t, stats.SkippedEdges)

	assert.Len(t, stats.Output.Written, 8)
	for _, name := range []string{output.VerticesCompass, output.EdgesComplete, parquet.VerticesFile, parquet.EdgesFile} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}

	var stages []string
	for _, s := range stats.Timings {
		stages = append(stages, s.Stage)
	}
	assert.Equal(t, []string{
		"read", "graph", "components", "simplify", "components_again", "vectorize", "output", "parquet",
	}, stages)
	assert.Equal(t, 4, stats.Sizes["components"].Connected)
}

func TestBuildConsolidated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simplify = false
	cfg.ComponentFilter = "keep_all"

	stats := run(t, cfg)

	require.NotNil(t, stats.Consolidate)
	// nodes are 111 m apart, far beyond the 15 m tolerance
	assert.Zero(t, stats.Consolidate.MergedVertices)
	assert.Equal(t, 6, stats.Vertices)
	// three two-way street segments and one two-way track segment
	assert.Equal(t, 8, stats.Edges)
}

func TestBuildTruncated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simplify = false
	cfg.Consolidate = false
	cfg.ComponentFilter = "keep_all"
	bbox, err := config.ParseBBox("-0.0005,-0.0005,0.0015,0.0005")
	require.NoError(t, err)
	cfg.BBox = bbox

	stats := run(t, cfg)

	// nodes 3 and 4 lie inside the 500 m read margin but outside the box
	assert.Equal(t, 2, stats.Truncated)
	assert.Equal(t, 2, stats.Vertices)
	assert.Equal(t, 2, stats.Edges)
}

func TestNewCoordinatorErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputFile = ""
	_, err := NewCoordinator(cfg)
	assert.ErrorIs(t, err, osmgraph.ErrConfiguration)

	cfg = testConfig(t)
	cfg.ExtentFile = filepath.Join(t.TempDir(), "missing.wkt")
	_, err = NewCoordinator(cfg)
	assert.ErrorIs(t, err, osmgraph.ErrConfiguration)

	cfg = testConfig(t)
	cfg.Filter = filter.Config{Type: "bogus"}
	_, err = NewCoordinator(cfg)
	assert.ErrorIs(t, err, osmgraph.ErrConfiguration)
}

func TestBuildNoWays(t *testing.T) {
	c, err := NewCoordinator(testConfig(t))
	require.NoError(t, err)
	scanner := osmxml.New(context.Background(), strings.NewReader(
		`<osm version="0.6"><node id="1" lat="0" lon="0"/></osm>`))
	defer scanner.Close()

	_, err = c.RunScanner(context.Background(), scanner)
	assert.ErrorIs(t, err, osmgraph.ErrMalformedInput)
}
