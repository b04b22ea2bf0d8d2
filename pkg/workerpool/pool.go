// Package workerpool provides a bounded goroutine pool with backpressure.
//
// cartsync uses one single-worker pool per remote cart backend so writes to
// the same backend land in submission order.
//
//	pool := workerpool.New("firestore", 1)
//	defer pool.Shutdown()
//
//	err := pool.SubmitWait(func() { save() }) // blocks while the queue is full
package workerpool

import (
	"errors"
	"sync"

	"github.com/shashiranjanraj/cartsync/pkg/logger"
)

// ErrPoolClosed is returned by SubmitWait after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a bounded goroutine pool.
type Pool struct {
	name    string
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards sends on tasks against close
	closed  bool
	closeCh chan struct{}
}

// New creates a Pool with the given number of workers. Tasks run in FIFO
// order; with size 1 they also complete in that order.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		name:    name,
		tasks:   make(chan func(), size*2),
		closeCh: make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// SubmitWait enqueues task, blocking until a slot is available or the pool
// is closed.
func (p *Pool) SubmitWait(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.closeCh:
		return ErrPoolClosed
	case p.tasks <- task:
		return nil
	}
}

// Shutdown stops accepting new tasks, runs everything already queued and
// waits for the workers to exit. Safe to call multiple times.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		close(p.closeCh) // releases SubmitWait callers blocked on a full queue
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.safeRun(task)
	}
}

// safeRun keeps a panicking task from killing the worker.
func (p *Pool) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "pool", p.name, "panic", r)
		}
	}()
	task()
}
