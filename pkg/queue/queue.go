// Package queue runs background jobs for orderdesk: Web Push deliveries and
// Slack alerts.
//
// Jobs are JSON envelopes pushed onto a Driver (memory, Redis or RabbitMQ).
// A single pop loop hands each envelope to a bounded worker pool; every
// attempt runs under its own timeout and failing jobs are retried with linear
// backoff before being recorded as failed.
//
//	q := queue.NewManager(queue.NewMemoryDriver(1000), queue.Options{Workers: 8})
//	q.Register("push.deliver", deliverPush)
//	go q.Start(ctx)
//
//	q.Dispatch(ctx, "push.deliver", payload)
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
	"github.com/shashiranjanraj/orderdesk/pkg/workerpool"
)

// Handler processes one job payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Driver is the queue storage backend. Pop blocks until a job is available or
// ctx is done; it may return (nil, nil) on an idle timeout.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
	Close() error
}

// Options tunes the worker side of a Manager.
type Options struct {
	Workers  int           // concurrent job attempts (default 8)
	Timeout  time.Duration // per attempt (default 10s)
	MaxRetry int           // attempts before a job is recorded as failed (default 3)
	Backoff  time.Duration // multiplied by the attempt number (default 1s)

	// KeepFailed caps the in-memory failed-job log; the oldest entries are
	// evicted first (default 500). The database keeps the full history.
	KeepFailed int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetry <= 0 {
		o.MaxRetry = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.KeepFailed <= 0 {
		o.KeepFailed = 500
	}
	return o
}

// FailedJob holds a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  json.RawMessage
	Err      error
	Attempts int
	FailedAt time.Time
}

type envelope struct {
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	DispatchedAt time.Time       `json:"dispatched_at"`
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so the Manager records the job as failed without
// retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Manager owns the driver, the handler registry and the failed-job log.
type Manager struct {
	driver Driver
	opts   Options

	mu       sync.RWMutex
	handlers map[string]Handler
	failed   []FailedJob
	db       *gorm.DB
}

// NewManager creates a Manager on top of driver.
func NewManager(driver Driver, opts Options) *Manager {
	return &Manager{
		driver:   driver,
		opts:     opts.withDefaults(),
		handlers: map[string]Handler{},
	}
}

// Register binds a job type to its handler. Call at boot, before Start.
func (m *Manager) Register(jobType string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[jobType] = h
}

// Dispatch marshals payload and pushes it as a job of jobType. A job the
// driver has no room for is recorded as failed with zero attempts.
func (m *Manager) Dispatch(ctx context.Context, jobType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("queue: marshal %s payload: %w", jobType, err)
	}

	env := envelope{Type: jobType, Payload: body, DispatchedAt: time.Now().UTC()}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	if err := m.driver.Push(ctx, raw); err != nil {
		if errors.Is(err, ErrQueueFull) {
			metrics.RecordQueueJob(jobType, "dropped", env.DispatchedAt)
			m.recordFailed(env, err, 0)
		}
		return fmt.Errorf("queue: dispatch %s: %w", jobType, err)
	}
	return nil
}

// Start runs the pop loop until ctx is cancelled, then waits for in-flight
// jobs to finish. Jobs still sitting in the driver are left there.
func (m *Manager) Start(ctx context.Context) error {
	pool := workerpool.New("queue", m.opts.Workers)
	defer pool.Shutdown()

	logger.Info("queue: worker started", "workers", m.opts.Workers, "max_retry", m.opts.MaxRetry)

	for {
		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("queue: worker stopping")
				return nil
			}
			logger.Error("queue: pop failed", "error", err)
			if !sleep(ctx, 500*time.Millisecond) {
				return nil
			}
			continue
		}
		if raw == nil {
			continue
		}

		if err := pool.SubmitWait(func() { m.process(ctx, raw) }); err != nil {
			return fmt.Errorf("queue: submit: %w", err)
		}
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	handler, ok := m.handlers[env.Type]
	m.mu.RUnlock()

	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		m.recordFailed(env, fmt.Errorf("no handler registered for %q", env.Type), 0)
		return
	}

	m.runWithRetry(ctx, env, handler)
}

// runWithRetry keeps in-flight attempts alive past shutdown (each is bounded
// by Timeout) but stops waiting between retries once ctx is cancelled.
func (m *Manager) runWithRetry(ctx context.Context, env envelope, handler Handler) {
	runCtx := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxRetry; attempt++ {
		start := time.Now()
		err := m.attempt(runCtx, handler, env.Payload)
		if err == nil {
			metrics.RecordQueueJob(env.Type, "success", start)
			logger.Debug("queue: job processed", "type", env.Type, "attempt", attempt)
			return
		}
		lastErr = err

		if IsPermanent(err) || attempt == m.opts.MaxRetry {
			metrics.RecordQueueJob(env.Type, "failed", start)
			m.recordFailed(env, lastErr, attempt)
			logger.Error("queue: job failed", "type", env.Type, "attempts", attempt, "error", lastErr)
			return
		}

		metrics.RecordQueueJob(env.Type, "retry", start)
		logger.Warn("queue: job failed, retrying", "type", env.Type, "attempt", attempt, "error", err)

		if !sleep(ctx, time.Duration(attempt)*m.opts.Backoff) {
			m.recordFailed(env, fmt.Errorf("shutdown before retry: %w", lastErr), attempt)
			return
		}
	}
}

func (m *Manager) attempt(ctx context.Context, handler Handler, payload json.RawMessage) (err error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			err = Permanent(fmt.Errorf("job panicked: %v", rec))
		}
	}()
	return handler(ctx, payload)
}

// FailedJobs returns a snapshot of the most recent jobs recorded as failed by
// this process, oldest first.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

// Close releases the driver.
func (m *Manager) Close() error { return m.driver.Close() }

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
