package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shashiranjanraj/orderdesk/pkg/queue"
)

type greeting struct {
	Name string `json:"name"`
}

func startManager(t *testing.T, opts queue.Options, register func(*queue.Manager)) *queue.Manager {
	t.Helper()

	m := queue.NewManager(queue.NewMemoryDriver(16), opts)
	register(m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m
}

func TestDispatchAndProcess(t *testing.T) {
	got := make(chan string, 1)

	m := startManager(t, queue.Options{Workers: 2}, func(m *queue.Manager) {
		m.Register("greet", func(_ context.Context, payload json.RawMessage) error {
			var g greeting
			if err := json.Unmarshal(payload, &g); err != nil {
				return queue.Permanent(err)
			}
			got <- g.Name
			return nil
		})
	})

	require.NoError(t, m.Dispatch(context.Background(), "greet", greeting{Name: "kitchen"}))

	select {
	case name := <-got:
		assert.Equal(t, "kitchen", name)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
	assert.Empty(t, m.FailedJobs())
}

func TestRetryThenFail(t *testing.T) {
	var attempts atomic.Int32

	m := startManager(t, queue.Options{Workers: 1, MaxRetry: 3, Backoff: time.Millisecond}, func(m *queue.Manager) {
		m.Register("flaky", func(context.Context, json.RawMessage) error {
			attempts.Add(1)
			return errors.New("push service unavailable")
		})
	})

	require.NoError(t, m.Dispatch(context.Background(), "flaky", greeting{}))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 3, attempts.Load())

	failed := m.FailedJobs()[0]
	assert.Equal(t, "flaky", failed.Type)
	assert.Equal(t, 3, failed.Attempts)
	assert.EqualError(t, failed.Err, "push service unavailable")
}

func TestRetryThenSucceed(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{})

	m := startManager(t, queue.Options{Workers: 1, MaxRetry: 3, Backoff: time.Millisecond}, func(m *queue.Manager) {
		m.Register("second-time-lucky", func(context.Context, json.RawMessage) error {
			if attempts.Add(1) < 2 {
				return errors.New("try again")
			}
			close(done)
			return nil
		})
	})

	require.NoError(t, m.Dispatch(context.Background(), "second-time-lucky", nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Empty(t, m.FailedJobs())
}

func TestPermanentErrorSkipsRetry(t *testing.T) {
	var attempts atomic.Int32

	m := startManager(t, queue.Options{Workers: 1, MaxRetry: 5, Backoff: time.Millisecond}, func(m *queue.Manager) {
		m.Register("broken", func(context.Context, json.RawMessage) error {
			attempts.Add(1)
			return queue.Permanent(errors.New("malformed"))
		})
	})

	require.NoError(t, m.Dispatch(context.Background(), "broken", nil))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, attempts.Load())
	assert.True(t, queue.IsPermanent(m.FailedJobs()[0].Err))
}

func TestAttemptTimeout(t *testing.T) {
	m := startManager(t, queue.Options{Workers: 1, MaxRetry: 1, Timeout: 20 * time.Millisecond}, func(m *queue.Manager) {
		m.Register("slow", func(ctx context.Context, _ json.RawMessage) error {
			<-ctx.Done()
			return ctx.Err()
		})
	})

	require.NoError(t, m.Dispatch(context.Background(), "slow", nil))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, m.FailedJobs()[0].Err, context.DeadlineExceeded)
}

func TestUnregisteredJobIsRecorded(t *testing.T) {
	m := startManager(t, queue.Options{Workers: 1}, func(*queue.Manager) {})

	require.NoError(t, m.Dispatch(context.Background(), "nobody.listens", nil))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "nobody.listens", m.FailedJobs()[0].Type)
}

func TestFailedJobsPersisted(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:failedjobs?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&queue.FailedJobRecord{}))

	m := startManager(t, queue.Options{Workers: 1, MaxRetry: 1}, func(m *queue.Manager) {
		m.UseDB(db)
		m.Register("push.deliver", func(context.Context, json.RawMessage) error {
			return errors.New("410 gone")
		})
	})

	require.NoError(t, m.Dispatch(context.Background(), "push.deliver", greeting{Name: "x"}))

	require.Eventually(t, func() bool {
		rows, err := queue.ListFailed(context.Background(), db, 10)
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rows, err := queue.ListFailed(context.Background(), db, 10)
	require.NoError(t, err)
	assert.Equal(t, "push.deliver", rows[0].JobType)
	assert.JSONEq(t, `{"name":"x"}`, rows[0].Payload)
	assert.Equal(t, "410 gone", rows[0].Error)
}

func TestMemoryDriverPushNeverWaits(t *testing.T) {
	d := queue.NewMemoryDriver(1)
	require.NoError(t, d.Push(context.Background(), []byte("a")))
	assert.Equal(t, 1, d.Len())

	assert.ErrorIs(t, d.Push(context.Background(), []byte("b")), queue.ErrQueueFull)
	assert.Equal(t, 1, d.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Push(ctx, []byte("c")), context.Canceled)
}

func TestDispatchOnFullQueueRecordsDroppedJob(t *testing.T) {
	// No worker is started, so the single slot stays taken.
	m := queue.NewManager(queue.NewMemoryDriver(1), queue.Options{})
	require.NoError(t, m.Dispatch(context.Background(), "push.deliver", greeting{Name: "first"}))

	start := time.Now()
	err := m.Dispatch(context.Background(), "push.deliver", greeting{Name: "second"})
	assert.Less(t, time.Since(start), time.Second)
	require.ErrorIs(t, err, queue.ErrQueueFull)

	failed := m.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "push.deliver", failed[0].Type)
	assert.Equal(t, 0, failed[0].Attempts)
	assert.JSONEq(t, `{"name":"second"}`, string(failed[0].Payload))
}

func TestFailedJobLogIsCapped(t *testing.T) {
	m := queue.NewManager(queue.NewMemoryDriver(1), queue.Options{KeepFailed: 3})
	require.NoError(t, m.Dispatch(context.Background(), "fill", greeting{}))

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.Error(t, m.Dispatch(context.Background(), "push.deliver", greeting{Name: name}))
	}

	failed := m.FailedJobs()
	require.Len(t, failed, 3)
	for i, name := range []string{"c", "d", "e"} {
		assert.JSONEq(t, `{"name":"`+name+`"}`, string(failed[i].Payload))
	}
}
