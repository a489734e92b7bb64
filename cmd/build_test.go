package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wegman-software/osm2graph-go/internal/config"
	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/output"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"primary", "secondary"}, splitList(" primary, ,secondary "))
}

func TestApplyBuildFlags(t *testing.T) {
	saved := *cfg
	t.Cleanup(func() {
		*cfg = saved
		bboxStr, projectionStr, filterType, filterTags, filterPath, tablesStr = "", "4326", "", "", "", ""
	})

	*cfg = *config.DefaultConfig()
	require.NoError(t, buildCmd.ParseFlags([]string{
		"--filter", "highway_tags",
		"--filter-tags", "primary,secondary",
		"--tables", "vertices_compass,edges_compass",
		"--projection", "EPSG:3857",
		"--bbox", "0,0,1,1",
	}))
	require.NoError(t, applyBuildFlags(buildCmd, []string{"region.osm.pbf"}))

	assert.Equal(t, "region.osm.pbf", cfg.InputFile)
	assert.Equal(t, filter.Config{Type: filter.HighwayTags, Tags: []string{"primary", "secondary"}}, cfg.Filter)
	assert.Equal(t, output.Tables{VerticesCompass: true, EdgesCompass: true}, cfg.Tables)
	assert.Equal(t, 3857, cfg.Projection)
	require.NotNil(t, cfg.BBox)
	assert.True(t, cfg.BBox.IsSet)
}
