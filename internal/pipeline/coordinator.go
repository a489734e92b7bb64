// Package pipeline runs a graph build: read the OSM source, mutate the
// graph through a fixed sequence of passes, then vectorize and write it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/config"
	"github.com/wegman-software/osm2graph-go/internal/consolidate"
	"github.com/wegman-software/osm2graph-go/internal/extent"
	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/metrics"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/output"
	"github.com/wegman-software/osm2graph-go/internal/parquet"
	"github.com/wegman-software/osm2graph-go/internal/pbf"
	"github.com/wegman-software/osm2graph-go/internal/progress"
	"github.com/wegman-software/osm2graph-go/internal/proj"
	"github.com/wegman-software/osm2graph-go/internal/simplify"
	"github.com/wegman-software/osm2graph-go/internal/truncate"
	"github.com/wegman-software/osm2graph-go/internal/vectorize"
)

// Coordinator orchestrates a graph build
type Coordinator struct {
	cfg        *config.Config
	filter     filter.Filter
	extent     *extent.Extent
	components truncate.ComponentFilter
	policy     consolidate.CoordinatePolicy
	geometry   output.GeometryFormat
	tr         *proj.Transformer

	collector *metrics.Collector
	stats     *BuildStats
}

// NewCoordinator validates cfg and prepares the filter, extent and
// projection it names.
func NewCoordinator(cfg *config.Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Coordinator{cfg: cfg}

	var err error
	if c.components, err = cfg.Components(); err != nil {
		return nil, err
	}
	if c.policy, err = consolidate.ParseCoordinatePolicy(cfg.CoordinatePolicy); err != nil {
		return nil, err
	}
	if c.geometry, err = output.ParseGeometryFormat(cfg.GeometryFormat); err != nil {
		return nil, err
	}
	if c.tr, err = proj.NewTransformer(cfg.Projection); err != nil {
		return nil, err
	}

	switch {
	case cfg.ExtentFile != "":
		if c.extent, err = extent.Read(cfg.ExtentFile); err != nil {
			return nil, err
		}
	case cfg.BBox != nil && cfg.BBox.IsSet:
		if c.extent, err = extent.Parse(cfg.BBox.WKT()); err != nil {
			return nil, err
		}
	}

	if c.filter, err = filter.New(cfg.Filter); err != nil {
		return nil, err
	}
	return c, nil
}

// Close releases the element filter
func (c *Coordinator) Close() error {
	if c.filter != nil {
		return c.filter.Close()
	}
	return nil
}

// Run reads the configured input and builds the graph
func (c *Coordinator) Run(ctx context.Context) (*BuildStats, error) {
	return c.run(ctx, nil)
}

// RunScanner builds the graph from an already opened OSM scanner, such
// as an osmxml one
func (c *Coordinator) RunScanner(ctx context.Context, scanner osm.Scanner) (*BuildStats, error) {
	return c.run(ctx, scanner)
}

func (c *Coordinator) run(ctx context.Context, scanner osm.Scanner) (*BuildStats, error) {
	log := logger.Get()
	c.stats = &BuildStats{Sizes: make(map[string]GraphSize)}

	if c.cfg.MetricsInterval > 0 {
		metricsCtx, cancelMetrics := context.WithCancel(ctx)
		defer cancelMetrics()

		c.collector = metrics.NewCollector(c.cfg.MetricsInterval, log)
		go c.collector.Start(metricsCtx)
		log.Info("System metrics collection started",
			zap.Duration("interval", c.cfg.MetricsInterval))
	}

	rep := newReporter(5*time.Second, func(stage string) {
		if c.collector != nil {
			c.collector.SetStage(stage)
		}
	})
	go rep.run()
	defer rep.Close()

	res, err := c.read(ctx, scanner, rep)
	if err != nil {
		return nil, err
	}
	vg, err := c.Build(ctx, res, rep.Sink())
	if err != nil {
		return nil, err
	}
	if err := c.write(ctx, vg); err != nil {
		return nil, err
	}

	if c.collector != nil {
		c.stats.PeakRSS = c.collector.PeakRSS()
	}
	log.Info("Graph build complete",
		zap.Int("vertices", c.stats.Vertices),
		zap.Int("edges", c.stats.Edges),
		zap.Int("skipped_edges", c.stats.SkippedEdges),
		zap.Duration("duration", c.stats.Total().Round(time.Millisecond)))
	return c.stats, nil
}

func (c *Coordinator) read(ctx context.Context, scanner osm.Scanner, rep *reporter) (*pbf.Result, error) {
	opts := pbf.Options{
		Workers:  c.cfg.Workers,
		Filter:   c.filter,
		Progress: rep.Sink(),
	}
	if c.extent != nil {
		opts.Extent = c.extent
	}

	var res *pbf.Result
	err := c.stage("read", func() error {
		var err error
		if scanner != nil {
			res, err = pbf.Read(ctx, scanner, opts)
		} else {
			res, err = pbf.ReadFile(ctx, c.cfg.InputFile, opts)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	c.stats.Read = res.Stats
	return res, nil
}

// Build runs every graph pass over a read result and vectorizes it
func (c *Coordinator) Build(ctx context.Context, res *pbf.Result, sink progress.Sink) (*vectorize.Graph, error) {
	if c.stats == nil {
		c.stats = &BuildStats{Sizes: make(map[string]GraphSize)}
	}

	var g *osmgraph.Graph
	err := c.stage("graph", func() error {
		var err error
		g, err = osmgraph.New(res.Nodes, res.Ways)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.measure("graph", g)

	if err := c.mutate(ctx, g, "components", func() (err error) {
		c.stats.Components, err = truncate.FilterComponents(g, c.components)
		return err
	}); err != nil {
		return nil, err
	}

	reshaped := false
	if c.cfg.Simplify {
		reshaped = true
		if err := c.mutate(ctx, g, "simplify", func() error {
			r, err := simplify.Graph(g, sink)
			c.stats.Simplify = &r
			return err
		}); err != nil {
			return nil, err
		}
	}

	if c.extent != nil {
		reshaped = true
		if err := c.mutate(ctx, g, "truncate", func() (err error) {
			if c.cfg.TruncateByEdge {
				c.stats.Truncated, err = truncate.ByEdge(g, c.extent)
			} else {
				c.stats.Truncated, err = truncate.ByNode(g, c.extent)
			}
			return err
		}); err != nil {
			return nil, err
		}
	}

	if reshaped {
		if err := c.mutate(ctx, g, "components_again", func() error {
			r, err := truncate.FilterComponents(g, c.components)
			c.stats.ComponentsAgain = &r
			return err
		}); err != nil {
			return nil, err
		}
	}

	if c.cfg.Consolidate {
		if err := c.mutate(ctx, g, "consolidate", func() error {
			r, err := consolidate.Graph(g, consolidate.Options{
				ToleranceMeters: c.cfg.ToleranceMeters,
				Policy:          c.policy,
				Workers:         c.cfg.Workers,
				Progress:        sink,
			})
			c.stats.Consolidate = &r
			return err
		}); err != nil {
			return nil, err
		}
	}

	var vg *vectorize.Graph
	err = c.stage("vectorize", func() error {
		var err error
		vg, err = vectorize.Run(g, vectorize.Options{
			Workers:           c.cfg.Workers,
			Strict:            c.cfg.Strict,
			IgnoreInvalidTags: c.cfg.IgnoreInvalidTags,
			Progress:          sink,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	c.stats.Vertices = len(vg.Vertices)
	c.stats.Edges = len(vg.Edges)
	c.stats.SkippedEdges = vg.Skipped
	return vg, nil
}

// mutate runs one graph pass. In strict mode the graph invariants are
// checked after the pass.
func (c *Coordinator) mutate(ctx context.Context, g *osmgraph.Graph, name string, pass func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.stage(name, pass); err != nil {
		return err
	}
	if c.cfg.Strict {
		if err := g.CheckInvariants(); err != nil {
			return fmt.Errorf("after %s: %w", name, err)
		}
	}
	c.measure(name, g)
	return nil
}

func (c *Coordinator) write(ctx context.Context, vg *vectorize.Graph) error {
	err := c.stage("output", func() error {
		var err error
		c.stats.Output, err = output.Write(ctx, vg, output.Options{
			Dir:         c.cfg.OutputDir,
			Overwrite:   c.cfg.Overwrite,
			Tables:      c.cfg.Tables,
			Geometry:    c.geometry,
			Transformer: c.tr,
			Workers:     c.cfg.Workers,
		})
		return err
	})
	if err != nil || !c.cfg.Parquet {
		return err
	}
	c.stats.Parquet = true
	return c.stage("parquet", func() error {
		return parquet.WriteGraph(ctx, vg, parquet.Options{
			Dir:         c.cfg.OutputDir,
			Overwrite:   c.cfg.Overwrite,
			BatchSize:   c.cfg.BatchSize,
			Transformer: c.tr,
		})
	})
}

func (c *Coordinator) stage(name string, fn func() error) error {
	log := logger.Stage(name)
	if c.collector != nil {
		c.collector.SetStage(name)
	}
	start := time.Now()
	log.Debug("Stage started")
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	d := time.Since(start)
	c.stats.Timings = append(c.stats.Timings, StageTiming{Stage: name, Duration: d})
	log.Info("Stage complete", zap.Duration("duration", d.Round(time.Millisecond)))
	return nil
}

func (c *Coordinator) measure(stage string, g *osmgraph.Graph) {
	size := GraphSize{Nodes: g.NumNodes(), Connected: g.NumConnectedNodes(), Pairs: g.NumPairs()}
	c.stats.Sizes[stage] = size
	logger.Stage(stage).Debug("Graph size",
		zap.Int("nodes", size.Nodes),
		zap.Int("connected", size.Connected),
		zap.Int("pairs", size.Pairs))
}
