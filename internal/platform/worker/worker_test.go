package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32

	err := Loop(ctx, Config{
		Name:         "test",
		PollInterval: time.Millisecond,
		Process: func(context.Context) error {
			if calls.Add(1) == 3 {
				cancel()
			}

			return nil
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLoop_OnErrorStops(t *testing.T) {
	boom := errors.New("boom")

	err := Loop(context.Background(), Config{
		Name:    "test",
		Process: func(context.Context) error { return boom },
		OnError: func(error) bool { return false },
	})

	assert.ErrorIs(t, err, boom)
}

func TestLoop_RecoversPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32

	err := Loop(ctx, Config{
		Name: "test",
		Process: func(context.Context) error {
			if calls.Add(1) == 1 {
				panic("bad job")
			}

			cancel()

			return nil
		},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoop_PeriodicTaskRunsFirstIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32

	_ = Loop(ctx, Config{
		Name: "test",
		PeriodicTasks: []PeriodicTask{{
			Name:     "requeue",
			Interval: time.Hour,
			Run:      func(context.Context) { ran.Add(1) },
		}},
		Process: func(context.Context) error {
			cancel()

			return nil
		},
	})

	assert.Equal(t, int32(1), ran.Load())
}

func TestPool_RunsWorkersConcurrently(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		inFlight atomic.Int32
		allIn    atomic.Bool
		periodic atomic.Int32
	)

	err := Pool(ctx, 3, Config{
		Name: "analysis",
		Process: func(ctx context.Context) error {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)

			if n == 3 {
				allIn.Store(true)
				cancel()
			}

			<-ctx.Done()

			return nil
		},
		PeriodicTasks: []PeriodicTask{{
			Name:     "requeue",
			Interval: time.Hour,
			Run:      func(context.Context) { periodic.Add(1) },
		}},
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, allIn.Load())
	assert.Equal(t, int32(1), periodic.Load(), "periodic tasks run on one worker only")
}

func TestWait(t *testing.T) {
	require.NoError(t, Wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
