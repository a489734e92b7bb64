package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/config"
	"github.com/wegman-software/osm2graph-go/internal/logger"
)

var (
	cfg             = config.DefaultConfig()
	configFile      string
	verbose         bool
	logFile         string
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "osm2graph-go",
	Short: "Build routable road graphs from OpenStreetMap extracts",
	Long: `osm2graph-go reads an OSM PBF extract and turns its road network into a
routable graph of vertices and edges.

Features:
  - Element filters: public roads, highway classes, YAML rules or a Lua script
  - Component filtering and truncation to a WKT extent or bounding box
  - Chain simplification and consolidation of nearby intersection nodes
  - Gzipped CSV tables, Parquet with EWKB geometry, and PostGIS loading`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := loadConfigFile(cmd, configFile); err != nil {
				return err
			}
		}
		flags := cmd.Flags()
		if configFile == "" || flags.Changed("verbose") {
			cfg.Verbose = verbose
		}
		if configFile == "" || flags.Changed("log-file") {
			cfg.LogFile = logFile
		}
		if configFile == "" || flags.Changed("metrics-interval") {
			cfg.MetricsInterval = metricsInterval
		}

		if cfg.LogFile != "" {
			logger.InitWithFile(cfg.Verbose, cfg.LogFile)
		} else {
			logger.Init(cfg.Verbose)
		}
		if configFile != "" {
			logger.Get().Debug("Loaded config file", zap.String("path", configFile))
		}
		return nil
	},
}

func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML or TOML config file; explicit flags override it")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputDir, "output-dir", "o", cfg.OutputDir, "Directory for graph tables")
	rootCmd.PersistentFlags().IntVarP(&cfg.Workers, "workers", "j", cfg.Workers, "Number of parallel workers")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 30*time.Second, "Interval for system metrics logging (0 disables)")

	// Database flags (persistent so they're available to all subcommands)
	rootCmd.PersistentFlags().StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	rootCmd.PersistentFlags().IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBName, "db-name", "d", cfg.DBName, "PostgreSQL database name")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBUser, "db-user", "U", cfg.DBUser, "PostgreSQL user")
	rootCmd.PersistentFlags().StringVarP(&cfg.DBPassword, "db-password", "W", cfg.DBPassword, "PostgreSQL password")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema")
}

// loadConfigFile overlays the file onto cfg, then reapplies every flag
// given on the command line so flags win over the file. It runs before
// the logger is initialised.
func loadConfigFile(cmd *cobra.Command, path string) error {
	changed := make(map[*pflag.Flag]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f] = f.Value.String()
	})

	if err := cfg.LoadFile(path); err != nil {
		return err
	}
	for f, v := range changed {
		if err := f.Value.Set(v); err != nil {
			return err
		}
	}
	return nil
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}
