package queue

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by MemoryDriver.Push when the buffer has no room.
var ErrQueueFull = errors.New("queue: buffer full")

// MemoryDriver is an in-process, channel-backed queue driver. Not durable
// across restarts.
type MemoryDriver struct {
	ch chan []byte
}

// NewMemoryDriver creates an in-memory queue holding up to capacity jobs
// (default 1000).
func NewMemoryDriver(capacity int) *MemoryDriver {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryDriver{ch: make(chan []byte, capacity)}
}

// Push never waits: a full buffer yields ErrQueueFull so callers on the
// request path are not held up by slow consumers.
func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

// Len reports how many jobs are waiting.
func (d *MemoryDriver) Len() int { return len(d.ch) }

func (d *MemoryDriver) Close() error { return nil }
