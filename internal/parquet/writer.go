package parquet

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/output"
	"github.com/wegman-software/osm2graph-go/internal/proj"
	"github.com/wegman-software/osm2graph-go/internal/vectorize"
)

// File names
const (
	VerticesFile = "vertices.parquet"
	EdgesFile    = "edges.parquet"
)

// VertexSchema is the vertices.parquet schema
var VertexSchema = arrow.NewSchema([]arrow.Field{
	{Name: "vertex_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "osmid", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "y", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "highway", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "ele", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "consolidated_ids", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "geom", Type: arrow.BinaryTypes.Binary, Nullable: false},
}, nil)

// EdgeSchema is the edges.parquet schema
var EdgeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "edge_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "osmid", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "src_vertex_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "dst_vertex_id", Type: arrow.PrimitiveTypes.Int64, Nullable: false},
	{Name: "highway", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "name", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "oneway", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "maxspeed_kph", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "speed_kph", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "way_ids", Type: arrow.BinaryTypes.String, Nullable: false},
	{Name: "length_meters", Type: arrow.PrimitiveTypes.Float64, Nullable: false},
	{Name: "geom", Type: arrow.BinaryTypes.Binary, Nullable: false},
}, nil)

// tableWriter batches records into a zstd-compressed Parquet file
type tableWriter struct {
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
}

func newTableWriter(path string, schema *arrow.Schema, batchSize int) (*tableWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	if batchSize < 1 {
		batchSize = 100000
	}
	return &tableWriter{
		file:      f,
		writer:    writer,
		builder:   array.NewRecordBuilder(memory.DefaultAllocator, schema),
		batchSize: batchSize,
	}, nil
}

func (w *tableWriter) rowDone() error {
	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *tableWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes pending rows and closes the file
func (w *tableWriter) Close() error {
	defer w.builder.Release()
	if err := w.flush(); err != nil {
		w.file.Close()
		return err
	}
	// closes the underlying file as well
	return w.writer.Close()
}

// VertexWriter writes vertices to Parquet
type VertexWriter struct {
	*tableWriter
	srid int
}

// NewVertexWriter creates a vertex Parquet writer
func NewVertexWriter(path string, batchSize, srid int) (*VertexWriter, error) {
	tw, err := newTableWriter(path, VertexSchema, batchSize)
	if err != nil {
		return nil, err
	}
	return &VertexWriter{tableWriter: tw, srid: srid}, nil
}

// Write appends a vertex row
func (w *VertexWriter) Write(r output.VertexRow) error {
	geom, err := ewkb.Marshal(orb.Point{r.X, r.Y}, w.srid)
	if err != nil {
		return err
	}
	w.builder.Field(0).(*array.Int64Builder).Append(int64(r.VertexID))
	w.builder.Field(1).(*array.Int64Builder).Append(r.OSMID)
	w.builder.Field(2).(*array.Float64Builder).Append(r.X)
	w.builder.Field(3).(*array.Float64Builder).Append(r.Y)
	w.builder.Field(4).(*array.StringBuilder).Append(r.Highway)
	w.builder.Field(5).(*array.StringBuilder).Append(r.Ele)
	w.builder.Field(6).(*array.StringBuilder).Append(r.ConsolidatedIDs)
	w.builder.Field(7).(*array.BinaryBuilder).Append(geom)
	return w.rowDone()
}

// EdgeWriter writes edges to Parquet
type EdgeWriter struct {
	*tableWriter
	srid int
}

// NewEdgeWriter creates an edge Parquet writer
func NewEdgeWriter(path string, batchSize, srid int) (*EdgeWriter, error) {
	tw, err := newTableWriter(path, EdgeSchema, batchSize)
	if err != nil {
		return nil, err
	}
	return &EdgeWriter{tableWriter: tw, srid: srid}, nil
}

// Write appends an edge row. geom must already be projected.
func (w *EdgeWriter) Write(r output.EdgeRow, e vectorize.Edge, geom orb.LineString, speed float64, hasSpeed bool) error {
	wkb, err := ewkb.Marshal(geom, w.srid)
	if err != nil {
		return err
	}
	w.builder.Field(0).(*array.Int64Builder).Append(int64(r.EdgeID))
	w.builder.Field(1).(*array.Int64Builder).Append(r.OSMID)
	w.builder.Field(2).(*array.Int64Builder).Append(int64(r.SrcVertexID))
	w.builder.Field(3).(*array.Int64Builder).Append(int64(r.DstVertexID))
	w.builder.Field(4).(*array.StringBuilder).Append(r.Highway)
	w.builder.Field(5).(*array.StringBuilder).Append(r.Name)
	w.builder.Field(6).(*array.StringBuilder).Append(r.Oneway)
	appendOptional(w.builder.Field(7).(*array.Float64Builder), e.MaxspeedKph, e.HasMaxspeed)
	appendOptional(w.builder.Field(8).(*array.Float64Builder), speed, hasSpeed)
	w.builder.Field(9).(*array.StringBuilder).Append(r.WayIDs)
	w.builder.Field(10).(*array.Float64Builder).Append(r.Length)
	w.builder.Field(11).(*array.BinaryBuilder).Append(wkb)
	return w.rowDone()
}

func appendOptional(b *array.Float64Builder, v float64, ok bool) {
	if ok {
		b.Append(v)
	} else {
		b.AppendNull()
	}
}

// Options configures WriteGraph
type Options struct {
	Dir         string
	Overwrite   bool
	BatchSize   int
	Transformer *proj.Transformer
}

// WriteGraph writes vertices.parquet and edges.parquet concurrently.
// Existing files are skipped unless Overwrite is set.
func WriteGraph(ctx context.Context, vg *vectorize.Graph, opts Options) error {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return osmgraph.Wrap(osmgraph.KindConfiguration, err, "failed to create output directory")
	}
	srid := opts.Transformer.SRID()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path := filepath.Join(opts.Dir, VerticesFile)
		if skip(path, opts.Overwrite) {
			return nil
		}
		w, err := NewVertexWriter(path, opts.BatchSize, srid)
		if err != nil {
			return osmgraph.Wrap(osmgraph.KindInternal, err, "creating %s", path)
		}
		for i, v := range vg.Vertices {
			if i%opts.batch() == 0 && ctx.Err() != nil {
				w.Close()
				return ctx.Err()
			}
			if err := w.Write(output.NewVertexRow(v, opts.Transformer)); err != nil {
				w.Close()
				return osmgraph.Wrap(osmgraph.KindInternal, err, "writing %s", path)
			}
		}
		return w.Close()
	})
	g.Go(func() error {
		path := filepath.Join(opts.Dir, EdgesFile)
		if skip(path, opts.Overwrite) {
			return nil
		}
		w, err := NewEdgeWriter(path, opts.BatchSize, srid)
		if err != nil {
			return osmgraph.Wrap(osmgraph.KindInternal, err, "creating %s", path)
		}
		for i, e := range vg.Edges {
			if i%opts.batch() == 0 && ctx.Err() != nil {
				w.Close()
				return ctx.Err()
			}
			speed, ok := vg.Speeds.Speed(e)
			geom := opts.Transformer.LineString(e.Geometry)
			if err := w.Write(output.NewEdgeRow(e), e, geom, speed, ok); err != nil {
				w.Close()
				return osmgraph.Wrap(osmgraph.KindInternal, err, "writing %s", path)
			}
		}
		return w.Close()
	})
	return g.Wait()
}

func (o Options) batch() int {
	if o.BatchSize < 1 {
		return 100000
	}
	return o.BatchSize
}

func skip(path string, overwrite bool) bool {
	if _, err := os.Stat(path); err == nil && !overwrite {
		logger.Get().Info("output exists, skipping", zap.String("file", path))
		return true
	}
	return false
}
