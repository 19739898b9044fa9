package engine

import (
	"sync"
)

// WorkerPool runs independent evaluation tasks concurrently. The engine uses
// it to evaluate per-field decisions in parallel during field filtering.
type WorkerPool struct {
	workers int
	tasks   chan func()
	started bool
	mu      sync.Mutex
}

// NewWorkerPool creates a pool with the given number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = 8
	}

	pool := &WorkerPool{
		workers: workers,
		tasks:   make(chan func(), workers*4),
	}

	pool.start()
	return pool
}

func (p *WorkerPool) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	for i := 0; i < p.workers; i++ {
		go p.worker()
	}
	p.started = true
}

func (p *WorkerPool) worker() {
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task for execution. Blocks when the queue is full.
func (p *WorkerPool) Submit(task func()) {
	p.tasks <- task
}

// Stop drains and stops the pool. Tasks submitted after Stop will panic.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	close(p.tasks)
	p.started = false
}

// Workers returns the configured worker count
func (p *WorkerPool) Workers() int {
	return p.workers
}
