// Package pbf reads OSM nodes and ways into the node and way tables the
// graph is built from.
package pbf

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/filter"
	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/osmgraph"
	"github.com/wegman-software/osm2graph-go/internal/progress"
)

var (
	// ErrNoNodesFound is returned when no node survives reading
	ErrNoNodesFound = osmgraph.Errorf(osmgraph.KindMalformedInput, "no nodes found in source")
	// ErrNoWaysFound is returned when no way survives reading
	ErrNoWaysFound = osmgraph.Errorf(osmgraph.KindMalformedInput, "no ways found in source")
)

// Extent limits which nodes are kept while reading
type Extent interface {
	ContainsBuffered(lon, lat float64) bool
}

// Options configures a read
type Options struct {
	Workers  int
	Filter   filter.Filter
	Extent   Extent
	Progress progress.Sink
}

// Stats holds read statistics
type Stats struct {
	NodesVisited  int64
	WaysVisited   int64
	Relations     int64
	BytesRead     int64
	NodesRejected int64 // outside the extent or ID 0
	WaysRejected  int64 // by the element filter
	DroppedWays   int   // referencing nodes that were not kept, or too short
	OrphanNodes   int   // kept nodes no surviving way uses
}

// Result holds the node and way tables, each sorted by ID
type Result struct {
	Nodes []*osmgraph.Node
	Ways  []*osmgraph.Way
	Stats Stats
}

// ReadFile reads a PBF file
func ReadFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "opening %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, osmgraph.Wrap(osmgraph.KindConfiguration, err, "stat %s", path)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	scanner := osmpbf.New(ctx, f, workers)
	defer scanner.Close()

	r := newReader(opts)
	r.stats.BytesRead = info.Size()
	r.scanned = scanner.FullyScannedBytes
	return r.run(ctx, scanner)
}

// Read consumes any OSM scanner, e.g. an osmxml scanner
func Read(ctx context.Context, scanner osm.Scanner, opts Options) (*Result, error) {
	return newReader(opts).run(ctx, scanner)
}

type reader struct {
	opts    Options
	stats   Stats
	scanned func() int64

	nodes    map[osmgraph.NodeID]*osmgraph.Node
	ways     map[osmgraph.WayID]*osmgraph.Way
	elements atomic.Int64
}

func newReader(opts Options) *reader {
	return &reader{
		opts:  opts,
		nodes: make(map[osmgraph.NodeID]*osmgraph.Node),
		ways:  make(map[osmgraph.WayID]*osmgraph.Way),
	}
}

func (r *reader) run(ctx context.Context, scanner osm.Scanner) (*Result, error) {
	log := logger.Get()
	start := time.Now()

	stop := NewProgressTicker(ctx, 2*time.Second, r.report).Start()
	defer stop()

	for scanner.Scan() {
		var err error
		switch e := scanner.Object().(type) {
		case *osm.Node:
			r.stats.NodesVisited++
			r.addNode(e)
		case *osm.Way:
			r.stats.WaysVisited++
			err = r.addWay(e)
		case *osm.Relation:
			r.stats.Relations++
		}
		if err != nil {
			return nil, err
		}
		r.elements.Add(1)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, osmgraph.Wrap(osmgraph.KindMalformedInput, err, "reading OSM source")
	}
	stop()
	r.report()

	if len(r.nodes) == 0 {
		return nil, ErrNoNodesFound
	}
	if len(r.ways) == 0 {
		return nil, ErrNoWaysFound
	}
	r.prune()
	if len(r.ways) == 0 {
		return nil, ErrNoWaysFound
	}

	res := &Result{
		Nodes: make([]*osmgraph.Node, 0, len(r.nodes)),
		Ways:  make([]*osmgraph.Way, 0, len(r.ways)),
		Stats: r.stats,
	}
	for _, n := range r.nodes {
		res.Nodes = append(res.Nodes, n)
	}
	for _, w := range r.ways {
		res.Ways = append(res.Ways, w)
	}
	slices.SortFunc(res.Nodes, func(a, b *osmgraph.Node) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(res.Ways, func(a, b *osmgraph.Way) int { return cmp.Compare(a.ID, b.ID) })

	log.Info("OSM source read",
		zap.Int("nodes", len(res.Nodes)),
		zap.Int("ways", len(res.Ways)),
		zap.Int64("nodes_rejected", r.stats.NodesRejected),
		zap.Int64("ways_rejected", r.stats.WaysRejected),
		zap.Int("ways_dropped", r.stats.DroppedWays),
		zap.Int("orphan_nodes", r.stats.OrphanNodes),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)))
	return res, nil
}

func (r *reader) addNode(n *osm.Node) {
	log := logger.Get()
	if n.ID == 0 {
		log.Warn("node missing OSM id ignored", zap.Float64("lon", n.Lon), zap.Float64("lat", n.Lat))
		r.stats.NodesRejected++
		return
	}
	id := osmgraph.NodeID(n.ID)
	if _, ok := r.nodes[id]; ok {
		log.Warn("node occurs more than once in source", zap.Int64("id", int64(id)))
	}
	if r.opts.Extent != nil && !r.opts.Extent.ContainsBuffered(n.Lon, n.Lat) {
		r.stats.NodesRejected++
		return
	}
	r.nodes[id] = &osmgraph.Node{
		ID:       id,
		Lon:      float32(n.Lon),
		Lat:      float32(n.Lat),
		Highway:  n.Tags.Find("highway"),
		Ele:      n.Tags.Find("ele"),
		Junction: n.Tags.Find("junction"),
		Railway:  n.Tags.Find("railway"),
		Ref:      n.Tags.Find("ref"),
	}
}

func (r *reader) addWay(w *osm.Way) error {
	if r.opts.Filter != nil {
		ok, err := r.opts.Filter.AcceptWay(int64(w.ID), w.Tags.Map())
		if err != nil {
			return err
		}
		if !ok {
			r.stats.WaysRejected++
			return nil
		}
	}

	id := osmgraph.WayID(w.ID)
	if _, ok := r.ways[id]; ok {
		logger.Get().Warn("way occurs more than once in source", zap.Int64("id", int64(id)))
	}

	var tags osmgraph.Tags
	for _, key := range osmgraph.TagKeys {
		if v := w.Tags.Find(key); v != "" {
			tags.Set(key, v)
		}
	}
	ids := make([]osmgraph.NodeID, len(w.Nodes))
	for i, wn := range w.Nodes {
		ids[i] = osmgraph.NodeID(wn.ID)
	}
	r.ways[id] = osmgraph.NewWay(id, ids, tags)
	return nil
}

// prune removes ways that reference nodes not kept and then nodes that no
// surviving way uses.
func (r *reader) prune() {
	used := make(map[osmgraph.NodeID]struct{}, len(r.nodes))
	for id, w := range r.ways {
		complete := len(w.Nodes) >= 2
		for _, n := range w.Nodes {
			if _, ok := r.nodes[n]; !ok {
				complete = false
				break
			}
		}
		if !complete {
			delete(r.ways, id)
			r.stats.DroppedWays++
			continue
		}
		for _, n := range w.Nodes {
			used[n] = struct{}{}
		}
	}
	for id := range r.nodes {
		if _, ok := used[id]; !ok {
			delete(r.nodes, id)
			r.stats.OrphanNodes++
		}
	}
	if r.stats.DroppedWays > 0 {
		logger.Get().Info("removed ways with missing nodes", zap.Int("ways", r.stats.DroppedWays))
	}
}

func (r *reader) report() {
	done := r.elements.Load()
	total := int64(0)
	if r.scanned != nil {
		done = r.scanned()
		total = r.stats.BytesRead
	}
	r.opts.Progress.Send("read", done, total)
	if total > 0 {
		logger.Get().Debug("read progress",
			zap.String("processed", progress.FormatBytes(done)),
			zap.String("total", progress.FormatBytes(total)),
			zap.String("percent", fmt.Sprintf("%.1f%%", float64(done)/float64(total)*100)))
	}
}
