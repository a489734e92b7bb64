package pipeline

import (
	"time"

	"github.com/wegman-software/osm2graph-go/internal/consolidate"
	"github.com/wegman-software/osm2graph-go/internal/output"
	"github.com/wegman-software/osm2graph-go/internal/pbf"
	"github.com/wegman-software/osm2graph-go/internal/simplify"
	"github.com/wegman-software/osm2graph-go/internal/truncate"
)

// StageTiming records how long a pass took
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// GraphSize counts the graph after a pass
type GraphSize struct {
	Nodes     int
	Connected int
	Pairs     int
}

// BuildStats holds statistics of one graph build
type BuildStats struct {
	Read pbf.Stats

	Components      truncate.FilterResult
	Simplify        *simplify.Result
	Truncated       int
	ComponentsAgain *truncate.FilterResult
	Consolidate     *consolidate.Result

	Vertices     int
	Edges        int
	SkippedEdges int

	Output  output.Stats
	Parquet bool

	Sizes   map[string]GraphSize
	Timings []StageTiming
	PeakRSS uint64
}

// Total returns the summed duration of every stage
func (s *BuildStats) Total() time.Duration {
	var d time.Duration
	for _, t := range s.Timings {
		d += t.Duration
	}
	return d
}
