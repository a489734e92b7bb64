// Package metrics samples process and host resource usage while a graph
// is being built and logs it next to the current pipeline stage.
package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2graph-go/internal/progress"
)

// Snapshot holds one sample
type Snapshot struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // can exceed 100% on multi-core
	IOWaitPercent     float64
	RSSBytes          uint64
	MemoryUsedBytes   uint64
	MemoryPercent     float64
	Stage             string
	Timestamp         time.Time
}

// Collector periodically samples resource usage
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	lastCPUTimes cpu.TimesStat
	hasCPUTimes  bool

	mu      sync.RWMutex
	stage   string
	last    *Snapshot
	peakRSS uint64
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// SetStage records the pipeline stage attached to later samples
func (c *Collector) SetStage(stage string) {
	c.mu.Lock()
	c.stage = stage
	c.mu.Unlock()
}

// Start samples until ctx is cancelled
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.log(c.Collect())
		}
	}
}

// Last returns the most recent sample, nil before the first one
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// PeakRSS returns the largest resident set size seen so far
func (c *Collector) PeakRSS() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peakRSS
}

// Collect takes a sample and stores it
func (c *Collector) Collect() *Snapshot {
	s := &Snapshot{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			s.RSSBytes = info.RSS
		}
	}
	s.IOWaitPercent = c.ioWait()
	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vmem.UsedPercent
		s.MemoryUsedBytes = vmem.Used
	}

	c.mu.Lock()
	s.Stage = c.stage
	c.last = s
	c.peakRSS = max(c.peakRSS, s.RSSBytes)
	c.mu.Unlock()
	return s
}

func (c *Collector) log(s *Snapshot) {
	c.logger.Info("System metrics",
		zap.String("stage", s.Stage),
		zap.Float64("sys_cpu", round1(s.CPUPercent)),
		zap.Float64("proc_cpu", round1(s.ProcessCPUPercent)),
		zap.Float64("iowait", round1(s.IOWaitPercent)),
		zap.String("rss", progress.FormatBytes(int64(s.RSSBytes))),
		zap.Float64("mem_pct", round1(s.MemoryPercent)),
	)
}

// ioWait returns the share of CPU time spent waiting on I/O since the
// previous call
func (c *Collector) ioWait() float64 {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return 0
	}
	current := times[0]
	if !c.hasCPUTimes {
		c.lastCPUTimes = current
		c.hasCPUTimes = true
		return 0
	}

	last := c.lastCPUTimes
	totalDelta := (current.User - last.User) +
		(current.System - last.System) +
		(current.Idle - last.Idle) +
		(current.Iowait - last.Iowait) +
		(current.Irq - last.Irq) +
		(current.Softirq - last.Softirq) +
		(current.Steal - last.Steal)
	iowaitDelta := current.Iowait - last.Iowait
	c.lastCPUTimes = current

	if totalDelta <= 0 {
		return 0
	}
	return iowaitDelta / totalDelta * 100
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
