package concurrency

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_TryAcquireRelease(t *testing.T) {
	g := NewGuard()

	require.True(t, g.TryAcquire())
	assert.True(t, g.Held())
	assert.False(t, g.TryAcquire(), "second acquire must fail while held")

	g.Release()
	assert.False(t, g.Held())
	assert.True(t, g.TryAcquire(), "slot must be reusable after release")
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	g := NewGuard()
	require.True(t, g.TryAcquire())

	g.Release()
	g.Release()

	assert.True(t, g.TryAcquire())
}

func TestGuard_Execute(t *testing.T) {
	g := NewGuard()

	t.Run("busy_while_task_runs", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- g.Execute(func() error {
				close(started)
				<-release
				return nil
			})
		}()

		<-started
		assert.ErrorIs(t, g.Execute(func() error { return nil }), ErrBusy)

		close(release)
		require.NoError(t, <-done)
		assert.False(t, g.Held())
	})

	t.Run("concurrent_acquirers_get_exactly_one_slot", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		acquired := 0

		gate := make(chan struct{})
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				if g.TryAcquire() {
					mu.Lock()
					acquired++
					mu.Unlock()
				}
			}()
		}
		close(gate)
		wg.Wait()

		assert.Equal(t, 1, acquired)
		g.Release()
	})
}
