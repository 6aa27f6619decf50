package dispatch

import (
	"sync"
	"time"

	safehaven_errors "safehaven-service/pkg/errors"
	"safehaven-service/pkg/logger"
)

// Pool is a bounded worker pool for async webhook processing. A fixed set of
// core workers drains a bounded queue; under load the pool grows up to
// maxWorkers with burst workers that exit once the queue is empty. When the
// queue is full and the ceiling is reached, Submit runs the task on the
// calling goroutine instead of dropping it: the ingress path slows down but
// no event is lost.
type Pool struct {
	tasks      chan func()
	minWorkers int
	maxWorkers int
	grace      time.Duration
	log        *logger.Logger

	mu      sync.Mutex
	workers int
	closed  bool

	wg   sync.WaitGroup
	quit chan struct{}
}

func NewPool(minWorkers, maxWorkers, queueCapacity int, grace time.Duration, log *logger.Logger) *Pool {
	if minWorkers < 1 {
		minWorkers = 1
	}
	if maxWorkers < minWorkers {
		maxWorkers = minWorkers
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}
	if log == nil {
		log = logger.NewNop()
	}

	p := &Pool{
		tasks:      make(chan func(), queueCapacity),
		minWorkers: minWorkers,
		maxWorkers: maxWorkers,
		grace:      grace,
		log:        log,
		workers:    minWorkers,
		quit:       make(chan struct{}),
	}

	for i := 0; i < minWorkers; i++ {
		p.wg.Add(1)
		go p.coreWorker()
	}
	return p
}

// Submit enqueues a task and returns without waiting for it to run.
// Returns ErrShuttingDown once Shutdown has been called.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return safehaven_errors.ErrShuttingDown
	}
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		return nil
	default:
	}

	if p.tryGrow() {
		select {
		case p.tasks <- task:
			return nil
		default:
		}
	}

	// Saturated: caller-runs backpressure.
	task()
	return nil
}

// Shutdown stops accepting work and waits up to the grace period for queued
// and in-flight tasks to finish. Tasks still running after the grace period
// are abandoned.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.quit)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Infof("dispatch pool drained")
	case <-time.After(p.grace):
		p.log.Warnf("dispatch pool shutdown grace period (%s) elapsed, abandoning remaining work", p.grace)
	}
}

// Workers reports the current number of live workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// QueueDepth reports the number of queued tasks not yet picked up.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

func (p *Pool) tryGrow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.workers >= p.maxWorkers {
		return false
	}
	p.workers++
	p.wg.Add(1)
	go p.burstWorker()
	return true
}

func (p *Pool) release() {
	p.mu.Lock()
	p.workers--
	p.mu.Unlock()
}

func (p *Pool) coreWorker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.quit:
			p.drain()
			return
		}
	}
}

// burstWorker helps while the queue has a backlog, then exits.
func (p *Pool) burstWorker() {
	defer p.wg.Done()
	defer p.release()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.quit:
			p.drain()
			return
		default:
			return
		}
	}
}

// drain runs whatever is still queued at shutdown.
func (p *Pool) drain() {
	for {
		select {
		case task := <-p.tasks:
			task()
		default:
			return
		}
	}
}
