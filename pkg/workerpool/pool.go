// Package workerpool provides a bounded goroutine pool with backpressure.
//
// The queue worker hands every job attempt to a Pool so that at most N
// deliveries run at once, no matter how many jobs are waiting.
//
//	pool := workerpool.New("push", 8)
//	defer pool.Shutdown()
//
//	if err := pool.Submit(task); errors.Is(err, workerpool.ErrPoolFull) {
//	    // back off and retry
//	}
package workerpool

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// ErrPoolFull is returned by Submit when every worker is busy and the task
// buffer is at capacity.
var ErrPoolFull = errors.New("workerpool: pool is full")

// ErrPoolClosed is returned after Shutdown has been called.
var ErrPoolClosed = errors.New("workerpool: pool is closed")

// Pool is a bounded goroutine pool.
type Pool struct {
	name  string
	size  int
	tasks chan func()
	wg    sync.WaitGroup

	// mu guards closed and the close of tasks so a send never races Shutdown.
	mu     sync.RWMutex
	closed bool

	busy   atomic.Int64
	panics atomic.Int64
}

// New creates a Pool with size workers (minimum 1). The task buffer holds
// 2×size pending tasks.
func New(name string, size int) *Pool {
	if size <= 0 {
		size = 1
	}

	p := &Pool{
		name:  name,
		size:  size,
		tasks: make(chan func(), size*2),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Busy returns how many workers are executing a task right now.
func (p *Pool) Busy() int { return int(p.busy.Load()) }

// Panics returns how many tasks have panicked since the pool started.
func (p *Pool) Panics() int { return int(p.panics.Load()) }

// Submit enqueues task without blocking.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until task is accepted. Shutdown waits for pending
// SubmitWait callers, so it is only safe to call from a goroutine that is not
// itself responsible for calling Shutdown concurrently with a full buffer.
func (p *Pool) SubmitWait(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Shutdown stops accepting tasks, runs everything already buffered and waits
// for the workers to exit. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

// run executes task, recovering panics so one bad job doesn't kill a worker.
func (p *Pool) run(task func()) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			p.panics.Add(1)
			logger.Error("workerpool: task panicked",
				"pool", p.name,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
