package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Submit(t *testing.T) {
	p := New(Config{MaxWorkers: 2, QueueSize: 4}, nil)
	defer p.Shutdown(context.Background())

	want := errors.New("boom")
	err := p.Submit(context.Background(), func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestPool_RunAll(t *testing.T) {
	p := New(Config{MaxWorkers: 3, QueueSize: 1}, nil)
	defer p.Shutdown(context.Background())

	var ran atomic.Int64
	fns := make([]func(context.Context) error, 20)
	for i := range fns {
		i := i
		fns[i] = func(ctx context.Context) error {
			ran.Add(1)
			if i%5 == 0 {
				return errors.New("odd one out")
			}
			return nil
		}
	}

	errs := p.RunAll(context.Background(), fns)
	require.Len(t, errs, 20)
	assert.Equal(t, int64(20), ran.Load())
	for i, err := range errs {
		if i%5 == 0 {
			assert.Error(t, err, "index %d", i)
		} else {
			assert.NoError(t, err, "index %d", i)
		}
	}
}

func TestPool_Closed(t *testing.T) {
	p := New(Config{MaxWorkers: 1}, nil)
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Submit(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolClosed)
	assert.ErrorIs(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil }), ErrWorkerPoolClosed)

	// 重复关闭无副作用
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_Full(t *testing.T) {
	p := New(Config{MaxWorkers: 1, QueueSize: 1}, nil)
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil }))

	err := p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerPoolFull)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, p.Shutdown(ctx))
	assert.Len(t, p.Collectors("test"), 2)
}
