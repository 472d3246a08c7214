// Package execution runs step functions forever with a pause between iterations.
//
// Every long-running manager is one of these loops. A loop is single threaded: a step
// runs to completion before the pause starts, and iterations never overlap. Loops in
// different processes coordinate only through the bus and the shared world they poll.
package execution

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Default bounds of the jittered pause used by InfiniteLoop.
const (
	DefaultJitterMin = 1 * time.Millisecond
	DefaultJitterMax = 100 * time.Millisecond
)

// StepFunc is one iteration of a loop.
type StepFunc func(ctx context.Context) error

// DelayFunc returns the pause to take after a completed step.
type DelayFunc func() time.Duration

// Fixed pauses for d after every step.
func Fixed(d time.Duration) DelayFunc {
	return func() time.Duration { return d }
}

// Jitter pauses for a duration drawn uniformly from [min, max]. Random pauses keep
// many loops polling the same state from waking in lockstep.
func Jitter(min, max time.Duration) DelayFunc {
	if max < min {
		min, max = max, min
	}
	span := int64(max - min)
	return func() time.Duration {
		return min + time.Duration(rand.Int64N(span+1))
	}
}

// State is the phase a loop is in.
type State int32

const (
	StateRunningStep State = iota
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunningStep:
		return "running-step"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Loop alternates between running a step and sleeping until the step fails or the
// context is cancelled.
type Loop struct {
	delay DelayFunc
	log   zerolog.Logger

	state      atomic.Int32
	iterations atomic.Uint64
}

// NewLoop creates a loop that pauses for delay() after every step.
func NewLoop(delay DelayFunc, log zerolog.Logger) *Loop {
	l := &Loop{delay: delay, log: log}
	l.state.Store(int32(StateStopped))
	return l
}

// State returns the loop's current phase.
func (l *Loop) State() State { return State(l.state.Load()) }

// Iterations returns the number of steps started.
func (l *Loop) Iterations() uint64 { return l.iterations.Load() }

// Run executes step, pauses, and repeats. It returns the first step error, wrapped, or
// ctx.Err() once the context is cancelled; cancellation is checked after each step
// and during each pause. Panics in step are not recovered.
func (l *Loop) Run(ctx context.Context, step StepFunc) error {
	defer l.state.Store(int32(StateStopped))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.state.Store(int32(StateRunningStep))
		n := l.iterations.Add(1)

		if err := step(ctx); err != nil {
			l.log.Debug().Err(err).Uint64("iteration", n).Msg("step failed, stopping loop")
			return fmt.Errorf("loop iteration %d: %w", n, err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		l.state.Store(int32(StateSleeping))
		if err := sleep(ctx, l.delay()); err != nil {
			return err
		}
	}
}

// InfiniteLoop runs step forever with a jittered pause of 1ms to 100ms between
// iterations.
func InfiniteLoop(ctx context.Context, step StepFunc) error {
	return NewLoop(Jitter(DefaultJitterMin, DefaultJitterMax), loopLogger(ctx)).Run(ctx, step)
}

// DelayedInfiniteLoop runs step forever, pausing for delay after each completed step.
// The pause starts when the step returns, so the cadence is not a fixed rate.
func DelayedInfiniteLoop(ctx context.Context, delay time.Duration, step StepFunc) error {
	return NewLoop(Fixed(delay), loopLogger(ctx)).Run(ctx, step)
}

// loopLogger derives the loop's logger from the one attached to ctx, if any.
func loopLogger(ctx context.Context) zerolog.Logger {
	return zerolog.Ctx(ctx).With().Str("component", "loop").Logger()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
