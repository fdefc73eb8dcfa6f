// Package schedule runs periodic background tasks, such as refreshing the
// active-orders gauge.
//
//	s := schedule.New()
//	s.Every(30 * time.Second).Name("orders.active-gauge").WithoutOverlapping().Run(refresh)
//	go s.Start(ctx)
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// Task is a scheduled unit of work. ctx is cancelled when the scheduler stops.
type Task func(ctx context.Context) error

type entry struct {
	id        string
	interval  time.Duration
	task      Task
	noOverlap bool

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// Scheduler holds registered entries and dispatches due ones every tick.
type Scheduler struct {
	tick time.Duration

	mu      sync.Mutex
	entries []*entry
	wg      sync.WaitGroup
}

// New creates a Scheduler that checks for due tasks every second.
func New() *Scheduler {
	return &Scheduler{tick: time.Second}
}

// Builder configures one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

// Every starts a builder for a task repeating at interval. The first run
// happens on the first tick after Start.
func (s *Scheduler) Every(interval time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: interval}}
}

// Name gives the entry an identifier for logs and List.
func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// WithoutOverlapping skips a run while the previous one is still executing.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

// Run registers task.
func (b *Builder) Run(task Task) {
	b.e.task = task

	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
}

// Start blocks, dispatching due tasks until ctx is cancelled, then waits for
// running tasks to return.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	logger.Info("schedule: scheduler started", "tasks", len(s.List()))

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("schedule: scheduler stopped")
			return nil
		case now := <-ticker.C:
			s.mu.Lock()
			current := make([]*entry, len(s.entries))
			copy(current, s.entries)
			s.mu.Unlock()

			for _, e := range current {
				s.dispatch(ctx, e, now)
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.interval {
		e.mu.Unlock()
		return
	}
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
		}()

		if err := e.task(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("schedule: task failed", "id", e.id, "error", err)
		}
	}()
}

// List returns "id [interval]" for every entry, sorted by id.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, e.interval))
	}
	sort.Strings(out)
	return out
}
