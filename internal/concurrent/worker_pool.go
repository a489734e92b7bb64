// Package concurrent holds the fork/map/collect worker pool used by the
// read-only graph passes.
package concurrent

import (
	"runtime"
	"sync"
)

type JobFunc[T any, G any] func(job T) G

// WorkerPool runs a fixed number of workers over a job queue. Results come
// back on a channel in completion order.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan T
	results    chan G
	wg         sync.WaitGroup
}

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan T, jobQueueSize),
		results:    make(chan G, jobQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		wp.results <- jobFunc(job)
	}
}

func (wp *WorkerPool[T, G]) Start(jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(jobFunc)
	}
}

// Wait blocks until every worker exits, then closes the results channel
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- job
}

func (wp *WorkerPool[T, G]) CollectResults() chan G {
	return wp.results
}

// Close stops accepting jobs
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

type indexed[T any] struct {
	i int
	v T
}

// Map applies fn to every item on a pool of workers and returns the
// results in input order. fn must only read shared state.
func Map[T any, G any](workers int, items []T, fn func(T) G) []G {
	out := make([]G, len(items))
	if len(items) == 0 {
		return out
	}
	wp := NewWorkerPool[indexed[T], indexed[G]](workers, min(len(items), 1024))
	wp.Start(func(job indexed[T]) indexed[G] {
		return indexed[G]{i: job.i, v: fn(job.v)}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range wp.CollectResults() {
			out[r.i] = r.v
		}
	}()

	for i, item := range items {
		wp.AddJob(indexed[T]{i: i, v: item})
	}
	wp.Close()
	wp.Wait()
	<-done
	return out
}

// MapErr is Map for fallible jobs. It returns the error of the lowest
// failing index so failures are reported deterministically.
func MapErr[T any, G any](workers int, items []T, fn func(T) (G, error)) ([]G, error) {
	type result struct {
		v   G
		err error
	}
	rs := Map(workers, items, func(item T) result {
		v, err := fn(item)
		return result{v, err}
	})
	out := make([]G, len(rs))
	for i, r := range rs {
		if r.err != nil {
			return nil, r.err
		}
		out[i] = r.v
	}
	return out, nil
}
