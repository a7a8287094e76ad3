package writequeue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SerializesPerUser(t *testing.T) {
	m := New(Config{}, nil)
	defer m.Shutdown(context.Background())

	var running, maxRunning atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Execute(context.Background(), 1, func() error {
				n := running.Add(1)
				for {
					cur := maxRunning.Load()
					if n <= cur || maxRunning.CompareAndSwap(cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), maxRunning.Load())
	assert.Equal(t, 0, m.QueueCount())
}

func TestManager_DifferentUsersRunConcurrently(t *testing.T) {
	m := New(Config{}, nil)
	defer m.Shutdown(context.Background())

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.Execute(context.Background(), 1, func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		done <- m.Execute(context.Background(), 2, func() error { return nil })
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("user 2 blocked behind user 1")
	}
	close(release)
}

func TestManager_WaitTimeout(t *testing.T) {
	m := New(Config{WaitTimeout: 20 * time.Millisecond}, nil)
	defer m.Shutdown(context.Background())

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = m.Execute(context.Background(), 7, func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	var ran bool
	err := m.Execute(context.Background(), 7, func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrWriteTimeout)
	assert.False(t, ran)
	close(release)
}

func TestManager_Shutdown(t *testing.T) {
	m := New(Config{}, nil)
	require.NoError(t, m.Shutdown(context.Background()))

	err := m.Execute(context.Background(), 1, func() error { return nil })
	assert.ErrorIs(t, err, ErrWriteQueueClosed)
}
