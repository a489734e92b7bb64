package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osm2graph-go/internal/extent"
	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/truncate"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantSet bool
		wantErr bool
	}{
		{"empty", "", false, false},
		{"valid", "-0.5,51.2,0.3,51.7", true, false},
		{"spaces", " -0.5, 51.2 ,0.3,51.7", true, false},
		{"three values", "1,2,3", false, true},
		{"not a number", "a,2,3,4", false, true},
		{"inverted lon", "1,0,0,1", false, true},
		{"inverted lat", "0,1,1,0", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseBBox(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, osmgraph.KindConfiguration, osmgraph.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSet, b.IsSet)
		})
	}
}

func TestBBoxAsExtent(t *testing.T) {
	b, err := ParseBBox("0,0,1,1")
	require.NoError(t, err)
	assert.True(t, b.Contains(0.5, 0.5))
	assert.False(t, b.Contains(2, 0.5))

	ext, err := extent.Parse(b.WKT())
	require.NoError(t, err)
	assert.True(t, ext.Contains(0.5, 0.5))
	assert.False(t, ext.Contains(1.5, 0.5))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no input", func(c *Config) { c.InputFile = "" }, true},
		{"no workers", func(c *Config) { c.Workers = 0 }, true},
		{"small batch", func(c *Config) { c.BatchSize = 10 }, true},
		{"bad component filter", func(c *Config) { c.ComponentFilter = "top_k:0" }, true},
		{"top k", func(c *Config) { c.ComponentFilter = "top_k:3" }, false},
		{"zero tolerance", func(c *Config) { c.ToleranceMeters = 0 }, true},
		{"zero tolerance without consolidation", func(c *Config) {
			c.ToleranceMeters = 0
			c.Consolidate = false
		}, false},
		{"bad policy", func(c *Config) { c.CoordinatePolicy = "median" }, true},
		{"bad geometry", func(c *Config) { c.GeometryFormat = "geojson" }, true},
		{"bad projection", func(c *Config) { c.Projection = 27700 }, true},
		{"mercator", func(c *Config) { c.Projection = 3857 }, false},
		{"polyline in mercator", func(c *Config) {
			c.Projection = 3857
			c.GeometryFormat = "polyline"
		}, true},
		{"lua without path", func(c *Config) { c.Filter = filter.Config{Type: filter.Lua} }, true},
		{"extent and bbox", func(c *Config) {
			c.ExtentFile = "area.wkt"
			c.BBox = &BBox{IsSet: true}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.InputFile = "region.osm.pbf"
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, osmgraph.ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
input: region.osm.pbf
component_filter: top_k:2
tolerance_meters: 10
element_filter:
  type: highway_tags
  tags: [primary, secondary]
tables:
  vertices_compass: true
metrics_interval: 5s
`), 0o644))

	c := DefaultConfig()
	require.NoError(t, c.LoadFile(yamlPath))
	assert.Equal(t, "region.osm.pbf", c.InputFile)
	assert.Equal(t, 10.0, c.ToleranceMeters)
	assert.Equal(t, filter.HighwayTags, c.Filter.Type)
	assert.Equal(t, []string{"primary", "secondary"}, c.Filter.Tags)
	assert.Equal(t, 5*time.Second, c.MetricsInterval)
	// untouched keys keep their defaults
	assert.True(t, c.Simplify)
	assert.Equal(t, 5432, c.DBPort)

	cf, err := c.Components()
	require.NoError(t, err)
	assert.Equal(t, truncate.ComponentFilter{Kind: truncate.TopK, K: 2}, cf)

	tomlPath := filepath.Join(dir, "graph.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
input = "other.osm.pbf"
projection = 3857
simplify = false

[element_filter]
type = "no_filter"
`), 0o644))

	c = DefaultConfig()
	require.NoError(t, c.LoadFile(tomlPath))
	assert.Equal(t, "other.osm.pbf", c.InputFile)
	assert.Equal(t, 3857, c.Projection)
	assert.False(t, c.Simplify)
	assert.Equal(t, filter.NoFilter, c.Filter.Type)

	err = c.LoadFile(filepath.Join(dir, "graph.json"))
	assert.ErrorIs(t, err, osmgraph.ErrConfiguration)
}
