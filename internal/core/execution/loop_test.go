package execution

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfiniteLoop_StopsOnStepError(t *testing.T) {
	errBoom := errors.New("boom")
	calls := 0

	err := InfiniteLoop(context.Background(), func(context.Context) error {
		calls++
		if calls == 3 {
			return errBoom
		}
		return nil
	})

	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "loop iteration 3")
	assert.Equal(t, 3, calls)
}

func TestDelayedInfiniteLoop_WaitsBetweenSteps(t *testing.T) {
	const delay = 20 * time.Millisecond
	var starts []time.Time

	err := DelayedInfiniteLoop(context.Background(), delay, func(context.Context) error {
		starts = append(starts, time.Now())
		if len(starts) == 3 {
			return errors.New("done")
		}
		return nil
	})
	require.Error(t, err)
	require.Len(t, starts, 3)

	for i := 1; i < len(starts); i++ {
		assert.GreaterOrEqual(t, starts[i].Sub(starts[i-1]), delay)
	}
}

func TestLoop_CancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan error, 1)
	go func() {
		done <- DelayedInfiniteLoop(ctx, time.Hour, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoop_CancelDuringStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := InfiniteLoop(ctx, func(context.Context) error {
		calls++
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "loop must not start another step once cancelled")
}

func TestLoop_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := InfiniteLoop(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestLoop_PanicPropagates(t *testing.T) {
	assert.Panics(t, func() {
		_ = InfiniteLoop(context.Background(), func(context.Context) error {
			panic("step blew up")
		})
	})
}

func TestLoop_StateAndIterations(t *testing.T) {
	l := NewLoop(Fixed(time.Hour), zerolog.Nop())
	assert.Equal(t, StateStopped, l.State())

	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan State, 1)

	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(context.Context) error {
			seen <- l.State()
			return nil
		})
	}()

	assert.Equal(t, StateRunningStep, <-seen)
	require.Eventually(t, func() bool { return l.State() == StateSleeping }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), l.Iterations())

	cancel()
	<-done
	assert.Equal(t, StateStopped, l.State())
}

func TestJitter_Bounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max time.Duration
	}{
		{name: "default", min: DefaultJitterMin, max: DefaultJitterMax},
		{name: "equal", min: 5 * time.Millisecond, max: 5 * time.Millisecond},
		{name: "swapped", min: 10 * time.Millisecond, max: time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := min(tt.min, tt.max), max(tt.min, tt.max)
			delay := Jitter(tt.min, tt.max)
			for range 1000 {
				d := delay()
				assert.GreaterOrEqual(t, d, lo)
				assert.LessOrEqual(t, d, hi)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running-step", StateRunningStep.String())
	assert.Equal(t, "sleeping", StateSleeping.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
