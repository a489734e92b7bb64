package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm2graph-go/internal/consolidate"
	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/output"
	"github.com/wegman-software/osm2graph-go/internal/proj"
	"github.com/wegman-software/osm2graph-go/internal/truncate"
)

// BBox represents a geographic bounding box
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	IsSet                          bool
}

// Contains checks if a point is within the bounding box
func (b *BBox) Contains(lat, lon float64) bool {
	if b == nil || !b.IsSet {
		return true
	}
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// WKT returns the box as a polygon, usable wherever an extent file is
func (b *BBox) WKT() string {
	bound := orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
	return wkt.MarshalString(bound.ToPolygon())
}

// ParseBBox parses a bbox string in format "minlon,minlat,maxlon,maxlat"
func ParseBBox(s string) (*BBox, error) {
	if s == "" {
		return &BBox{IsSet: false}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "bbox must have 4 values: minlon,minlat,maxlon,maxlat")
	}

	var coords [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "invalid bbox coordinate %q", p)
		}
		coords[i] = v
	}

	bbox := &BBox{
		MinLon: coords[0],
		MinLat: coords[1],
		MaxLon: coords[2],
		MaxLat: coords[3],
		IsSet:  true,
	}

	if bbox.MinLon >= bbox.MaxLon {
		return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "minlon (%f) must be < maxlon (%f)", bbox.MinLon, bbox.MaxLon)
	}
	if bbox.MinLat >= bbox.MaxLat {
		return nil, osmgraph.Errorf(osmgraph.KindConfiguration, "minlat (%f) must be < maxlat (%f)", bbox.MinLat, bbox.MaxLat)
	}

	return bbox, nil
}

// Config holds the configuration of a graph build. Field tags name the
// keys accepted in YAML and TOML config files.
type Config struct {
	// Input settings
	InputFile  string        `yaml:"input" toml:"input"`
	ExtentFile string        `yaml:"extent,omitempty" toml:"extent,omitempty"` // WKT polygon
	BBox       *BBox         `yaml:"-" toml:"-"`
	Filter     filter.Config `yaml:"element_filter" toml:"element_filter"`

	// Graph settings
	ComponentFilter   string  `yaml:"component_filter" toml:"component_filter"`
	TruncateByEdge    bool    `yaml:"truncate_by_edge" toml:"truncate_by_edge"`
	Consolidate       bool    `yaml:"consolidate" toml:"consolidate"`
	Simplify          bool    `yaml:"simplify" toml:"simplify"`
	ToleranceMeters   float64 `yaml:"tolerance_meters" toml:"tolerance_meters"`
	CoordinatePolicy  string  `yaml:"coordinate_policy" toml:"coordinate_policy"`
	Strict            bool    `yaml:"strict" toml:"strict"`
	IgnoreInvalidTags bool    `yaml:"ignore_invalid_tags" toml:"ignore_invalid_tags"`

	// Output settings
	OutputDir      string        `yaml:"output_dir" toml:"output_dir"`
	Tables         output.Tables `yaml:"tables" toml:"tables"`
	GeometryFormat string        `yaml:"geometry_format" toml:"geometry_format"`
	Projection     int           `yaml:"projection" toml:"projection"` // Target SRID (4326 or 3857)
	Parquet        bool          `yaml:"parquet" toml:"parquet"`
	Overwrite      bool          `yaml:"overwrite" toml:"overwrite"`

	// Database settings
	DBHost        string `yaml:"db_host" toml:"db_host"`
	DBPort        int    `yaml:"db_port" toml:"db_port"`
	DBName        string `yaml:"db_name" toml:"db_name"`
	DBUser        string `yaml:"db_user" toml:"db_user"`
	DBPassword    string `yaml:"db_password" toml:"db_password"`
	DBSchema      string `yaml:"db_schema" toml:"db_schema"`
	TablePrefix   string `yaml:"table_prefix" toml:"table_prefix"`
	DropExisting  bool   `yaml:"drop_existing" toml:"drop_existing"`
	CreateIndexes bool   `yaml:"create_indexes" toml:"create_indexes"`

	// Processing settings
	Workers   int `yaml:"workers" toml:"workers"`
	BatchSize int `yaml:"batch_size" toml:"batch_size"`

	// Logging and metrics
	Verbose         bool          `yaml:"verbose" toml:"verbose"`
	LogFile         string        `yaml:"log_file" toml:"log_file"` // Path to log file (empty = no file logging)
	MetricsInterval time.Duration `yaml:"metrics_interval" toml:"metrics_interval"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Filter:           filter.Config{Type: filter.AllPublic},
		ComponentFilter:  string(truncate.Largest),
		Consolidate:      true,
		Simplify:         true,
		ToleranceMeters:  consolidate.DefaultToleranceMeters,
		CoordinatePolicy: string(consolidate.Centroid),
		OutputDir:        "./graph",
		Tables:           output.AllTables(),
		GeometryFormat:   string(output.WKT),
		Projection:       proj.SRID4326, // WGS84 by default
		DBHost:           "localhost",
		DBPort:           5432,
		DBName:           "osm",
		DBUser:           "postgres",
		DBSchema:         "public",
		TablePrefix:      "osm",
		CreateIndexes:    true,
		Workers:          runtime.NumCPU(),
		BatchSize:        100000,
		MetricsInterval:  30 * time.Second,
	}
}

// LoadFile overlays a YAML or TOML file, picked by extension, onto c.
// Keys absent from the file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return osmgraph.Wrap(osmgraph.KindConfiguration, err, "reading config file %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return osmgraph.Errorf(osmgraph.KindConfiguration, "config file %s: unsupported extension (yaml, yml, toml)", path)
	}
	if err != nil {
		return osmgraph.Wrap(osmgraph.KindConfiguration, err, "parsing config file %s", path)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Components returns the parsed component filter
func (c *Config) Components() (truncate.ComponentFilter, error) {
	return truncate.ParseComponentFilter(c.ComponentFilter)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "input file is required")
	}
	if c.Workers < 1 {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "workers must be at least 1")
	}
	if c.BatchSize < 1000 {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "batch size must be at least 1000")
	}
	if c.ExtentFile != "" && c.BBox != nil && c.BBox.IsSet {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "extent file and bbox are mutually exclusive")
	}
	if _, err := c.Components(); err != nil {
		return err
	}
	if c.Consolidate && c.ToleranceMeters <= 0 {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "tolerance must be positive, got %v", c.ToleranceMeters)
	}
	if _, err := consolidate.ParseCoordinatePolicy(c.CoordinatePolicy); err != nil {
		return err
	}
	format, err := output.ParseGeometryFormat(c.GeometryFormat)
	if err != nil {
		return err
	}
	if _, err := proj.NewTransformer(c.Projection); err != nil {
		return err
	}
	// polylines encode degrees; projected metres would overflow them
	if format == output.Polyline && c.Projection != proj.SRID4326 {
		return osmgraph.Errorf(osmgraph.KindConfiguration, "polyline geometry requires EPSG:4326 output, got %d", c.Projection)
	}
	switch c.Filter.Type {
	case filter.Style, filter.Lua:
		if c.Filter.Path == "" {
			return osmgraph.Errorf(osmgraph.KindConfiguration, "%s element filter needs a path", c.Filter.Type)
		}
	}
	return nil
}
