package event_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/event"
)

func TestFireCallsListenersInOrder(t *testing.T) {
	bus := event.New()
	var calls []string

	bus.Listen("updateOrderStatus", func(_ context.Context, p json.RawMessage) error {
		calls = append(calls, "first:"+string(p))
		return nil
	})
	bus.Listen("updateOrderStatus", func(context.Context, json.RawMessage) error {
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, bus.Fire(context.Background(), "updateOrderStatus", json.RawMessage(`1`)))
	assert.Equal(t, []string{"first:1", "second"}, calls)
	assert.True(t, bus.Has("updateOrderStatus"))
}

func TestFireJoinsErrors(t *testing.T) {
	bus := event.New()
	boom := errors.New("boom")
	bus.Listen("x", func(context.Context, json.RawMessage) error { return boom })
	bus.Listen("x", func(context.Context, json.RawMessage) error { return nil })

	assert.ErrorIs(t, bus.Fire(context.Background(), "x", nil), boom)
}

func TestNoListener(t *testing.T) {
	bus := event.New()
	assert.ErrorIs(t, bus.Fire(context.Background(), "missing", nil), event.ErrNoListener)

	bus.Listen("y", func(context.Context, json.RawMessage) error { return nil })
	bus.Flush()
	assert.False(t, bus.Has("y"))
}
