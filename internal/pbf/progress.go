package pbf

import (
	"context"
	"sync"
	"time"
)

// ProgressTicker calls a function periodically for progress updates
type ProgressTicker struct {
	ctx      context.Context
	callback func()
	interval time.Duration
}

// NewProgressTicker creates a new progress ticker
func NewProgressTicker(ctx context.Context, interval time.Duration, callback func()) *ProgressTicker {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &ProgressTicker{
		ctx:      ctx,
		callback: callback,
		interval: interval,
	}
}

// Run calls the callback on every tick until the context is done
func (p *ProgressTicker) Run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.callback()
		}
	}
}

// Start runs the ticker in the background. The returned stop function
// waits for the last callback to finish and may be called more than once.
func (p *ProgressTicker) Start() (stop func()) {
	ctx, cancel := context.WithCancel(p.ctx)
	p.ctx = ctx
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run()
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
