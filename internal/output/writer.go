// Package output writes the vectorized graph as gzip-compressed csv and
// txt tables, one row per vertex or edge in ID order.
package output

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2graph-go/internal/concurrent"
	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/proj"
	"github.com/wegman-software/osm2graph-go/internal/vectorize"
)

// Table file names
const (
	VerticesComplete = "vertices-complete.csv.gz"
	VerticesCompass  = "vertices-compass.csv.gz"
	EdgesComplete    = "edges-complete.csv.gz"
	EdgesCompass     = "edges-compass.csv.gz"
	Geometries       = "edges-geometries-enumerated.txt.gz"
	HighwayTags      = "edges-highway-tag-enumerated.txt.gz"
	Speeds           = "speed-maxspeed-avgfill-enumerated.txt.gz"
	DefaultSpeeds    = "highway-default-speed.csv.gz"
)

// Tables toggles each output table
type Tables struct {
	VerticesComplete bool `yaml:"vertices_complete" toml:"vertices_complete"`
	VerticesCompass  bool `yaml:"vertices_compass" toml:"vertices_compass"`
	EdgesComplete    bool `yaml:"edges_complete" toml:"edges_complete"`
	EdgesCompass     bool `yaml:"edges_compass" toml:"edges_compass"`
	Geometries       bool `yaml:"geometries" toml:"geometries"`
	HighwayTags      bool `yaml:"highway_tags" toml:"highway_tags"`
	Speeds           bool `yaml:"speeds" toml:"speeds"`
	DefaultSpeeds    bool `yaml:"default_speeds" toml:"default_speeds"`
}

// AllTables enables every table
func AllTables() Tables {
	return Tables{true, true, true, true, true, true, true, true}
}

// ParseTables enables exactly the named tables. Names are the config keys,
// e.g. "vertices_compass", or "all".
func ParseTables(names []string) (Tables, error) {
	var t Tables
	fields := map[string]*bool{
		"vertices_complete": &t.VerticesComplete,
		"vertices_compass":  &t.VerticesCompass,
		"edges_complete":    &t.EdgesComplete,
		"edges_compass":     &t.EdgesCompass,
		"geometries":        &t.Geometries,
		"highway_tags":      &t.HighwayTags,
		"speeds":            &t.Speeds,
		"default_speeds":    &t.DefaultSpeeds,
	}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "all" {
			return AllTables(), nil
		}
		f, ok := fields[name]
		if !ok {
			return t, osmgraph.Errorf(osmgraph.KindConfiguration, "unknown output table %q", name)
		}
		*f = true
	}
	return t, nil
}

// Options configures a write
type Options struct {
	Dir       string
	Overwrite bool
	Tables    Tables
	Geometry  GeometryFormat
	// Transformer projects coordinates; nil keeps WGS84
	Transformer *proj.Transformer
	Workers     int
}

// Stats lists which tables were written and which were skipped because
// the file already existed.
type Stats struct {
	Written []string
	Skipped []string
}

type table struct {
	name    string
	enabled bool
	write   func(w io.Writer) error
}

// Write writes every enabled table concurrently
func Write(ctx context.Context, vg *vectorize.Graph, opts Options) (Stats, error) {
	var stats Stats
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return stats, osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to create output directory")
	}

	vertices := concurrent.Map(opts.Workers, vg.Vertices, func(v vectorize.Vertex) VertexRow {
		return NewVertexRow(v, opts.Transformer)
	})
	edges := concurrent.Map(opts.Workers, vg.Edges, NewEdgeRow)

	tables := []table{
		{VerticesComplete, opts.Tables.VerticesComplete, func(w io.Writer) error {
			return writeCSV(ctx, w, VertexCompleteHeader, len(vertices), func(i int) []string { return vertices[i].Complete() })
		}},
		{VerticesCompass, opts.Tables.VerticesCompass, func(w io.Writer) error {
			return writeCSV(ctx, w, VertexCompassHeader, len(vertices), func(i int) []string { return vertices[i].Compass() })
		}},
		{EdgesComplete, opts.Tables.EdgesComplete, func(w io.Writer) error {
			return writeCSV(ctx, w, EdgeCompleteHeader, len(edges), func(i int) []string { return edges[i].Complete() })
		}},
		{EdgesCompass, opts.Tables.EdgesCompass, func(w io.Writer) error {
			return writeCSV(ctx, w, EdgeCompassHeader, len(edges), func(i int) []string { return edges[i].Compass() })
		}},
		{Geometries, opts.Tables.Geometries, func(w io.Writer) error {
			return writeLines(ctx, w, len(vg.Edges), func(i int) string {
				return opts.Geometry.Encode(opts.Transformer.LineString(vg.Edges[i].Geometry))
			})
		}},
		{HighwayTags, opts.Tables.HighwayTags, func(w io.Writer) error {
			return writeLines(ctx, w, len(vg.Edges), func(i int) string { return string(vg.Edges[i].Highway) })
		}},
		{Speeds, opts.Tables.Speeds, func(w io.Writer) error {
			return writeLines(ctx, w, len(vg.Edges), func(i int) string {
				kph, ok := vg.Speeds.Speed(vg.Edges[i])
				return measure(kph, ok)
			})
		}},
		{DefaultSpeeds, opts.Tables.DefaultSpeeds, func(w io.Writer) error {
			defaults := vg.Speeds.Defaults()
			return writeCSV(ctx, w, SpeedHeader, len(defaults), func(i int) []string {
				return []string{string(defaults[i].Class), formatFloat(defaults[i].Kph)}
			})
		}},
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tables {
		if !t.enabled {
			continue
		}
		t := t
		g.Go(func() error {
			path := filepath.Join(opts.Dir, t.name)
			written, err := writeFile(path, opts.Overwrite, t.write)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if written {
				stats.Written = append(stats.Written, t.name)
			} else {
				stats.Skipped = append(stats.Skipped, t.name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	slices.Sort(stats.Written)
	slices.Sort(stats.Skipped)
	return stats, nil
}

// writeFile gzips the output of write into path. An existing file is left
// alone unless overwrite is set.
func writeFile(path string, overwrite bool, write func(io.Writer) error) (bool, error) {
	log := logger.Get()
	if _, err := os.Stat(path); err == nil && !overwrite {
		log.Info("output exists, skipping", zap.String("file", path))
		return false, nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, osmgraph.Wrap(osmgraph.KindInternal, err, "stat %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return false, osmgraph.Wrap(osmgraph.KindInternal, err, "failed to create %s", path)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := write(zw); err != nil {
		return false, osmgraph.Wrap(osmgraph.KindInternal, err, "writing %s", path)
	}
	if err := zw.Close(); err != nil {
		return false, osmgraph.Wrap(osmgraph.KindInternal, err, "closing %s", path)
	}
	if err := f.Close(); err != nil {
		return false, osmgraph.Wrap(osmgraph.KindInternal, err, "closing %s", path)
	}
	log.Debug("wrote output table", zap.String("file", path))
	return true, nil
}

const cancelCheckEvery = 10000

func writeCSV(ctx context.Context, w io.Writer, header []string, n int, record func(int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if i%cancelCheckEvery == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := cw.Write(record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeLines writes one unquoted value per line, for the enumerated txt tables
func writeLines(ctx context.Context, w io.Writer, n int, line func(int) string) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		if i%cancelCheckEvery == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := bw.WriteString(line(i)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
