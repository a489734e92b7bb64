package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/loader"
	"github.com/wegman-software/osm2graph-go/internal/logger"
)

var importCmd = &cobra.Command{
	Use:   "import [input.osm.pbf]",
	Short: "Build a road graph and load it into PostGIS",
	Long: `Build the graph as the build command does, always writing the Parquet
tables, then COPY them into <schema>.<prefix>_vertices and
<schema>.<prefix>_edges with PostGIS geometry in the output projection.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	addBuildFlags(importCmd)

	importCmd.Flags().BoolVar(&cfg.CreateIndexes, "create-indexes", cfg.CreateIndexes, "Create key and spatial indexes after loading")
	importCmd.Flags().BoolVar(&cfg.DropExisting, "drop-existing", cfg.DropExisting, "Drop existing tables before loading")
	importCmd.Flags().StringVar(&cfg.TablePrefix, "table-prefix", cfg.TablePrefix, "Prefix of the vertex and edge table names")
}

func runImport(cmd *cobra.Command, args []string) {
	cfg.Parquet = true
	if err := applyBuildFlags(cmd, args); err != nil {
		exitWithError("invalid configuration", err)
	}
	log := logger.Get()
	totalStart := time.Now()

	fields := append(buildLogFields(),
		zap.String("database", fmt.Sprintf("%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)),
		zap.String("schema", cfg.DBSchema),
		zap.String("prefix", cfg.TablePrefix))
	log.Info("Starting graph import", fields...)

	ctx, cancel := signalContext()
	defer cancel()

	stats := build(ctx)
	logSummary(stats, time.Since(totalStart))

	loadStart := time.Now()
	l, err := loader.NewLoader(ctx, cfg)
	if err != nil {
		exitWithError("failed to create loader", err)
	}
	defer l.Close()

	loadStats, err := l.Run(ctx)
	if err != nil {
		exitWithError("load failed", err)
	}
	log.Info("Import complete",
		zap.Duration("load_time", time.Since(loadStart).Round(time.Second)),
		zap.Duration("total_time", time.Since(totalStart).Round(time.Second)),
		zap.Int64("vertices", loadStats.VerticesLoaded),
		zap.Int64("edges", loadStats.EdgesLoaded),
	)
}
