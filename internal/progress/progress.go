// Package progress carries progress events from graph passes to whoever
// is reporting them. Passes never share counters; they send events.
package progress

import (
	"fmt"
	"time"
)

// Event reports how far a stage has got
type Event struct {
	Stage string
	Done  int64
	Total int64
}

// Sink receives events. A nil Sink discards them.
type Sink chan<- Event

// Send delivers ev without blocking when s is nil
func (s Sink) Send(stage string, done, total int64) {
	if s == nil {
		return
	}
	s <- Event{Stage: stage, Done: done, Total: total}
}

// Every returns true for done counts that should be reported, so a pass
// emitting once per item only sends about a hundred events.
func Every(done, total int64) bool {
	if total <= 100 {
		return true
	}
	return done == total || done%(total/100) == 0
}

// Tracker tracks elapsed time and throughput for a long-running stage
type Tracker struct {
	total     int64
	startTime time.Time
	stage     string
}

// NewTracker creates a tracker for a stage with a known total (0 if unknown)
func NewTracker(total int64, stage string) *Tracker {
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		stage:     stage,
	}
}

// Progress holds current progress information
type Progress struct {
	Current    int64
	Total      int64
	Percentage float64
	Elapsed    time.Duration
	ETA        time.Duration
	Throughput float64 // items per second
	Stage      string
}

// Calculate returns progress metrics for the current count
func (p *Tracker) Calculate(current int64) Progress {
	elapsed := time.Since(p.startTime)

	var percentage float64
	var eta time.Duration
	var throughput float64
	if elapsed.Seconds() > 0 {
		throughput = float64(current) / elapsed.Seconds()
	}
	if p.total > 0 && current > 0 {
		percentage = float64(current) / float64(p.total) * 100
		if percentage < 100 && throughput > 0 {
			eta = time.Duration(float64(p.total-current)/throughput) * time.Second
		}
	}

	return Progress{
		Current:    current,
		Total:      p.total,
		Percentage: percentage,
		Elapsed:    elapsed.Round(time.Second),
		ETA:        eta.Round(time.Second),
		Throughput: throughput,
		Stage:      p.stage,
	}
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats throughput as human-readable items per second
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
