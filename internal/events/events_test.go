package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitOrFail(t *testing.T, b *Bus) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Test timed out waiting for event handlers")
	}
}

func TestBus(t *testing.T) {
	t.Run("Subscribe and Publish", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := NewBus()
		bus.Start(ctx)

		var received Event
		bus.Subscribe(EventSceneCompleted, func(_ context.Context, e Event) error {
			received = e
			return nil
		})

		bus.Publish(Event{Type: EventSceneCompleted, JobID: "job-1", SceneIndex: 2, TotalScenes: 5})
		waitOrFail(t, bus)

		assert.Equal(t, EventSceneCompleted, received.Type)
		assert.Equal(t, "job-1", received.JobID)
		assert.Equal(t, 2, received.SceneIndex)
	})

	t.Run("Multiple Handlers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := NewBus()
		bus.Start(ctx)

		var mu sync.Mutex
		calls := map[string]int{}
		record := func(name string) Handler {
			return func(context.Context, Event) error {
				mu.Lock()
				defer mu.Unlock()
				calls[name]++
				return nil
			}
		}
		bus.Subscribe(EventJobCompleted, record("credits"))
		bus.Subscribe(EventJobCompleted, record("metrics"))
		bus.Subscribe(EventJobFailed, record("failed"))

		bus.Publish(Event{Type: EventJobCompleted, JobID: "job-1"})
		waitOrFail(t, bus)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, calls["credits"])
		assert.Equal(t, 1, calls["metrics"])
		assert.Zero(t, calls["failed"])
	})

	t.Run("Handler errors do not stop delivery", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		bus := NewBus()
		bus.Start(ctx)

		var mu sync.Mutex
		seen := 0
		bus.Subscribe(EventJobFailed, func(context.Context, Event) error {
			mu.Lock()
			seen++
			mu.Unlock()
			return errors.New("boom")
		})

		bus.Publish(Event{Type: EventJobFailed, JobID: "a"})
		bus.Publish(Event{Type: EventJobFailed, JobID: "b"})
		waitOrFail(t, bus)

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, 2, seen)
	})
}
