// Package loader copies the Parquet vertex and edge tables into PostGIS.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2graph-go/internal/config"
	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/parquet"
)

// Stats holds loader statistics
type Stats struct {
	VerticesLoaded int64
	EdgesLoaded    int64
}

// Table describes one graph table and the Parquet file it is loaded from
type Table struct {
	Name     string
	Source   string
	Columns  string // column definitions, geometry excluded
	GeomType string
	Key      string
}

// Tables returns the vertex and edge tables for a schema and prefix
func Tables(schema, prefix string) []Table {
	qualify := func(name string) string {
		if prefix != "" {
			name = prefix + "_" + name
		}
		return schema + "." + name
	}
	return []Table{
		{
			Name:   qualify("vertices"),
			Source: parquet.VerticesFile,
			Columns: `vertex_id BIGINT NOT NULL,
				osmid BIGINT NOT NULL,
				x DOUBLE PRECISION NOT NULL,
				y DOUBLE PRECISION NOT NULL,
				highway TEXT,
				ele TEXT,
				consolidated_ids TEXT`,
			GeomType: "Point",
			Key:      "vertex_id",
		},
		{
			Name:   qualify("edges"),
			Source: parquet.EdgesFile,
			Columns: `edge_id BIGINT NOT NULL,
				osmid BIGINT NOT NULL,
				src_vertex_id BIGINT NOT NULL,
				dst_vertex_id BIGINT NOT NULL,
				highway TEXT,
				name TEXT,
				oneway TEXT,
				maxspeed_kph DOUBLE PRECISION,
				speed_kph DOUBLE PRECISION,
				way_ids TEXT,
				length_meters DOUBLE PRECISION NOT NULL`,
			GeomType: "LineString",
			Key:      "edge_id",
		},
	}
}

// CreateSQL returns the CREATE statement for t
func (t Table) CreateSQL(srid int) string {
	return fmt.Sprintf("CREATE UNLOGGED TABLE IF NOT EXISTS %s (\n\t\t\t\t%s,\n\t\t\t\tgeom GEOMETRY(%s, %d)\n\t\t\t)",
		t.Name, t.Columns, t.GeomType, srid)
}

// IndexSQL returns the statements that index and analyze t
func (t Table) IndexSQL() []string {
	short := t.Name[strings.LastIndex(t.Name, ".")+1:]
	return []string{
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s)", short, t.Key, t.Name, t.Key),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_geom_idx ON %s USING GIST (geom)", short, t.Name),
		fmt.Sprintf("ANALYZE %s", t.Name),
	}
}

// Loader loads Parquet files into PostgreSQL
type Loader struct {
	cfg  *config.Config
	pool *pgxpool.Pool
}

// NewLoader creates a new PostgreSQL loader
func NewLoader(ctx context.Context, cfg *config.Config) (*Loader, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to parse connection string")
	}
	poolConfig.MaxConns = int32(max(cfg.Workers, 2))

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return &Loader{cfg: cfg, pool: pool}, nil
}

// Close closes connections
func (l *Loader) Close() error {
	l.pool.Close()
	return nil
}

// Run loads both tables in parallel, then indexes them
func (l *Loader) Run(ctx context.Context) (*Stats, error) {
	log := logger.Stage("load")
	stats := &Stats{}

	if _, err := l.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		return nil, fmt.Errorf("failed to create PostGIS extension: %w", err)
	}
	if l.cfg.DBSchema != "public" {
		if _, err := l.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", l.cfg.DBSchema)); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	tables := Tables(l.cfg.DBSchema, l.cfg.TablePrefix)
	counts := make([]int64, len(tables))

	for _, t := range tables {
		source := filepath.Join(l.cfg.OutputDir, t.Source)
		if _, err := os.Stat(source); err != nil {
			return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "missing %s, run build with --parquet first", source)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		i, t := i, t
		source := filepath.Join(l.cfg.OutputDir, t.Source)
		g.Go(func() error {
			log.Info("Loading table", zap.String("table", t.Name))
			n, err := l.loadTable(gctx, t, source)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", t.Name, err)
			}
			counts[i] = n
			log.Info("Table loaded", zap.String("table", t.Name), zap.Int64("rows", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	stats.VerticesLoaded, stats.EdgesLoaded = counts[0], counts[1]

	if l.cfg.CreateIndexes {
		log.Info("Creating indexes in parallel", zap.Int("tables", len(tables)))
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range tables {
			t := t
			g.Go(func() error { return l.createIndexes(gctx, t) })
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		log.Info("All indexes created")
	}
	return stats, nil
}

func (l *Loader) loadTable(ctx context.Context, t Table, source string) (int64, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if l.cfg.DropExisting {
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", t.Name)); err != nil {
			return 0, fmt.Errorf("failed to drop table: %w", err)
		}
	}
	if _, err := conn.Exec(ctx, t.CreateSQL(l.cfg.Projection)); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}
	if !l.cfg.DropExisting {
		if _, err := conn.Exec(ctx, fmt.Sprintf("TRUNCATE %s", t.Name)); err != nil {
			return 0, fmt.Errorf("failed to truncate table: %w", err)
		}
	}

	count, err := copyFromParquet(ctx, conn.Conn(), t, source)
	if err != nil {
		return 0, err
	}

	// best effort; the data is committed either way
	if _, err := conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s SET LOGGED", t.Name)); err != nil {
		logger.Get().Warn("could not set table logged", zap.String("table", t.Name), zap.Error(err))
	}
	return count, nil
}

func (l *Loader) createIndexes(ctx context.Context, t Table) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SET maintenance_work_mem = '1GB'"); err != nil {
		logger.Get().Debug("maintenance_work_mem not raised", zap.Error(err))
	}
	for _, stmt := range t.IndexSQL() {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// ReadTable reads a whole Parquet file into an Arrow table
func ReadTable(ctx context.Context, path string) (arrow.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	tbl, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	return tbl, nil
}

// copyFromParquet streams the file into a temp table with COPY, then
// converts the EWKB column while inserting into the final table.
func copyFromParquet(ctx context.Context, conn *pgx.Conn, t Table, source string) (int64, error) {
	tbl, err := ReadTable(ctx, source)
	if err != nil {
		return 0, err
	}
	defer tbl.Release()
	if tbl.NumRows() == 0 {
		return 0, nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tempTable := "graph_load_tmp"
	tempSQL := fmt.Sprintf(`
		CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP;
		ALTER TABLE %s DROP COLUMN geom, ADD COLUMN geom_wkb BYTEA
	`, tempTable, t.Name, tempTable)
	if _, err := tx.Exec(ctx, tempSQL); err != nil {
		return 0, fmt.Errorf("failed to create temp table: %w", err)
	}

	columns := columnNames(tbl.Schema())
	src := newTableSource(tbl, 10000)
	defer src.Release()

	n, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, columns, src)
	if err != nil {
		return 0, fmt.Errorf("COPY failed: %w", err)
	}

	plain := columns[:len(columns)-1]
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s, geom) SELECT %s, ST_GeomFromEWKB(geom_wkb) FROM %s",
		t.Name, strings.Join(plain, ", "), strings.Join(plain, ", "), tempTable)
	if _, err := tx.Exec(ctx, insertSQL); err != nil {
		return 0, fmt.Errorf("failed to insert from temp table: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}

// columnNames maps Parquet fields to temp table columns; geom carries EWKB
func columnNames(schema *arrow.Schema) []string {
	names := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		if f.Name == "geom" {
			names = append(names, "geom_wkb")
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// tableSource implements pgx.CopyFromSource over an Arrow table
type tableSource struct {
	reader *array.TableReader
	rec    arrow.Record
	row    int
	values []any
	err    error
}

func newTableSource(tbl arrow.Table, chunkSize int64) *tableSource {
	return &tableSource{reader: array.NewTableReader(tbl, chunkSize), row: -1}
}

func (s *tableSource) Next() bool {
	for s.rec == nil || s.row+1 >= int(s.rec.NumRows()) {
		if !s.reader.Next() {
			s.err = s.reader.Err()
			return false
		}
		s.rec = s.reader.Record()
		s.row = -1
	}
	s.row++
	s.values = make([]any, s.rec.NumCols())
	for i, col := range s.rec.Columns() {
		v, err := cellValue(col, s.row)
		if err != nil {
			s.err = err
			return false
		}
		s.values[i] = v
	}
	return true
}

func (s *tableSource) Values() ([]any, error) {
	return s.values, nil
}

func (s *tableSource) Err() error {
	return s.err
}

func (s *tableSource) Release() {
	s.reader.Release()
}

func cellValue(col arrow.Array, i int) (any, error) {
	if col.IsNull(i) {
		return nil, nil
	}
	switch a := col.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.Binary:
		return a.Value(i), nil
	}
	return nil, osmgraph.Errorf(osmgraph.KindInternal, "unsupported column type %s", col.DataType())
}
