package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/config"
	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/output"
	"github.com/wegman-software/osm2graph-go/internal/pipeline"
	"github.com/wegman-software/osm2graph-go/internal/proj"
)

var (
	bboxStr       string
	projectionStr string
	filterType    string
	filterTags    string
	filterPath    string
	tablesStr     string
)

var buildCmd = &cobra.Command{
	Use:   "build [input.osm.pbf]",
	Short: "Build a road graph and write it as tables",
	Long: `Build a routable graph from an OSM PBF extract:

  1. Read nodes and ways, keeping ways accepted by the element filter
  2. Keep the selected connected components
  3. Simplify chains of pass-through nodes into single edges
  4. Truncate to the extent, then filter components again
  5. Consolidate nodes lying within the tolerance of each other
  6. Write vertex, edge, geometry and speed tables

The input may also be given as "input" in the config file.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
	buildCmd.Flags().BoolVar(&cfg.Parquet, "parquet", cfg.Parquet, "Also write vertices.parquet and edges.parquet")
}

// addBuildFlags registers the graph flags shared by build and import
func addBuildFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&cfg.ExtentFile, "extent", cfg.ExtentFile, "WKT polygon file bounding the study area")
	f.StringVarP(&bboxStr, "bbox", "b", "", "Bounding box extent: minlon,minlat,maxlon,maxlat")

	f.StringVar(&filterType, "filter", string(cfg.Filter.Type), "Element filter: no_filter, all_public, highway_tags, style, lua")
	f.StringVar(&filterTags, "filter-tags", "", "Comma separated highway classes for the highway_tags filter")
	f.StringVar(&filterPath, "filter-path", "", "Rules file (style) or script (lua) for the element filter")

	f.StringVar(&cfg.ComponentFilter, "components", cfg.ComponentFilter, "Component filter: largest, keep_all, top_k:<n>, least_k:<n>")
	f.BoolVar(&cfg.Simplify, "simplify", cfg.Simplify, "Simplify chains of pass-through nodes")
	f.BoolVar(&cfg.Consolidate, "consolidate", cfg.Consolidate, "Consolidate nearby nodes")
	f.Float64Var(&cfg.ToleranceMeters, "tolerance", cfg.ToleranceMeters, "Consolidation buffer radius in meters")
	f.StringVar(&cfg.CoordinatePolicy, "coordinate-policy", cfg.CoordinatePolicy, "Merged vertex position: centroid or representative")
	f.BoolVar(&cfg.TruncateByEdge, "truncate-by-edge", cfg.TruncateByEdge, "Keep edges with either end inside the extent")
	f.BoolVar(&cfg.Strict, "strict", cfg.Strict, "Fail on degenerate edges and check graph invariants after every pass")
	f.BoolVar(&cfg.IgnoreInvalidTags, "ignore-invalid-tags", cfg.IgnoreInvalidTags, "Treat unparseable tag values as absent")

	f.StringVar(&tablesStr, "tables", "", "Comma separated tables to write (default all)")
	f.StringVar(&cfg.GeometryFormat, "geometry-format", cfg.GeometryFormat, "Edge geometry encoding: wkt or polyline")
	f.StringVarP(&projectionStr, "projection", "E", "4326", "Output projection SRID (4326 or 3857)")
	f.BoolVar(&cfg.Overwrite, "overwrite", cfg.Overwrite, "Overwrite existing output files")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per Parquet record batch")
}

// applyBuildFlags moves flags that need parsing into cfg and validates it
func applyBuildFlags(c *cobra.Command, args []string) error {
	f := c.Flags()
	if len(args) == 1 {
		cfg.InputFile = args[0]
	}
	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			return err
		}
		cfg.BBox = bbox
	}
	if f.Changed("projection") {
		srid, err := proj.ParseSRID(projectionStr)
		if err != nil {
			return err
		}
		cfg.Projection = srid
	}
	if f.Changed("filter") {
		cfg.Filter.Type = filter.Type(filterType)
	}
	if f.Changed("filter-tags") {
		cfg.Filter.Tags = splitList(filterTags)
	}
	if f.Changed("filter-path") {
		cfg.Filter.Path = filterPath
	}
	if f.Changed("tables") {
		tables, err := output.ParseTables(splitList(tablesStr))
		if err != nil {
			return err
		}
		cfg.Tables = tables
	}
	return cfg.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildLogFields() []zap.Field {
	fields := []zap.Field{
		zap.String("input", cfg.InputFile),
		zap.String("output", cfg.OutputDir),
		zap.Int("workers", cfg.Workers),
		zap.String("filter", string(cfg.Filter.Type)),
		zap.String("components", cfg.ComponentFilter),
		zap.Bool("simplify", cfg.Simplify),
		zap.Bool("consolidate", cfg.Consolidate),
		zap.Int("projection", cfg.Projection),
	}
	if cfg.Consolidate {
		fields = append(fields, zap.Float64("tolerance_m", cfg.ToleranceMeters))
	}
	if cfg.ExtentFile != "" {
		fields = append(fields, zap.String("extent", cfg.ExtentFile))
	}
	if cfg.BBox != nil && cfg.BBox.IsSet {
		fields = append(fields, zap.String("bbox",
			fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", cfg.BBox.MinLon, cfg.BBox.MinLat, cfg.BBox.MaxLon, cfg.BBox.MaxLat)))
	}
	return fields
}

func runBuild(cmd *cobra.Command, args []string) {
	if err := applyBuildFlags(cmd, args); err != nil {
		exitWithError("invalid configuration", err)
	}
	log := logger.Get()
	totalStart := time.Now()
	log.Info("Starting graph build", buildLogFields()...)

	ctx, cancel := signalContext()
	defer cancel()

	stats := build(ctx)
	logSummary(stats, time.Since(totalStart))
}

// build runs the coordinator and exits on failure
func build(ctx context.Context) *pipeline.BuildStats {
	coordinator, err := pipeline.NewCoordinator(cfg)
	if err != nil {
		exitWithError("failed to create pipeline", err)
	}
	defer coordinator.Close()

	stats, err := coordinator.Run(ctx)
	if err != nil {
		exitWithError("build failed", err)
	}
	return stats
}

func logSummary(stats *pipeline.BuildStats, elapsed time.Duration) {
	fields := []zap.Field{
		zap.Duration("total_time", elapsed.Round(time.Second)),
		zap.Int64("nodes_read", stats.Read.NodesVisited),
		zap.Int64("ways_read", stats.Read.WaysVisited),
		zap.Int("components", stats.Components.Components),
		zap.Int("vertices", stats.Vertices),
		zap.Int("edges", stats.Edges),
		zap.Strings("written", stats.Output.Written),
	}
	if stats.Consolidate != nil {
		fields = append(fields,
			zap.Int("merged_vertices", stats.Consolidate.MergedVertices),
			zap.Int("retired_nodes", stats.Consolidate.RetiredNodes))
	}
	if stats.Simplify != nil {
		fields = append(fields, zap.Int("simplified_nodes", stats.Simplify.RemovedNodes))
	}
	if len(stats.Output.Skipped) > 0 {
		fields = append(fields, zap.Strings("skipped_existing", stats.Output.Skipped))
	}
	if stats.PeakRSS > 0 {
		fields = append(fields, zap.Uint64("peak_rss_bytes", stats.PeakRSS))
	}
	logger.Get().Info("Build complete", fields...)
}
