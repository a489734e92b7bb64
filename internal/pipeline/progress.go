package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/logger"
	"github.com/wegman-software/osm2graph-go/internal/progress"
)

// reporter logs progress events sent by the passes. Each stage gets its
// own tracker; a stage is logged at most once per interval, plus once
// when it completes.
type reporter struct {
	events   chan progress.Event
	done     chan struct{}
	interval time.Duration

	trackers map[string]*progress.Tracker
	lastLog  map[string]time.Time
	onStage  func(stage string)
}

func newReporter(interval time.Duration, onStage func(string)) *reporter {
	return &reporter{
		events:   make(chan progress.Event, 256),
		done:     make(chan struct{}),
		interval: interval,
		trackers: make(map[string]*progress.Tracker),
		lastLog:  make(map[string]time.Time),
		onStage:  onStage,
	}
}

// Sink returns the send side handed to the passes
func (r *reporter) Sink() progress.Sink {
	return r.events
}

func (r *reporter) run() {
	defer close(r.done)
	for ev := range r.events {
		r.handle(ev)
	}
}

// Close stops the reporter after draining queued events
func (r *reporter) Close() {
	close(r.events)
	<-r.done
}

func (r *reporter) handle(ev progress.Event) {
	t, ok := r.trackers[ev.Stage]
	if !ok {
		t = progress.NewTracker(ev.Total, ev.Stage)
		r.trackers[ev.Stage] = t
		if r.onStage != nil {
			r.onStage(ev.Stage)
		}
	}
	complete := ev.Total > 0 && ev.Done >= ev.Total
	if !complete && time.Since(r.lastLog[ev.Stage]) < r.interval {
		return
	}
	r.lastLog[ev.Stage] = time.Now()

	p := t.Calculate(ev.Done)
	fields := []zap.Field{
		zap.String("stage", ev.Stage),
		zap.Int64("done", ev.Done),
		zap.Int64("total", ev.Total),
		zap.String("rate", progress.FormatThroughput(p.Throughput)),
	}
	if ev.Total > 0 {
		fields = append(fields, zap.Float64("pct", float64(int(p.Percentage*10))/10))
	}
	if !complete {
		fields = append(fields, zap.String("eta", progress.FormatETA(p.ETA)))
	}
	logger.Get().Info("Progress", fields...)
}
