// Package manager provides the skeleton every long-running manager script shares: a
// listener on the bus driven by a cooperative loop.
package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/execution"
)

// Manager owns one subscriber on the bus and the loop that services it.
type Manager struct {
	name     string
	bus      *comms.Bus
	listener *comms.Listener
	loop     *execution.Loop
	log      zerolog.Logger
}

// New joins the bus as name and prepares a loop that pauses for delay() between ticks.
func New(ctx context.Context, bus *comms.Bus, name string, delay execution.DelayFunc, log zerolog.Logger) (*Manager, error) {
	listener, err := bus.Listen(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("start manager %s: %w", name, err)
	}

	return &Manager{
		name:     name,
		bus:      bus,
		listener: listener,
		loop:     execution.NewLoop(delay, log.With().Str("component", "loop").Logger()),
		log:      log,
	}, nil
}

// Name returns the manager's subscriber name.
func (m *Manager) Name() string { return m.name }

// Bus returns the bus the manager publishes on.
func (m *Manager) Bus() *comms.Bus { return m.bus }

// Listener returns the manager's listener so callers can register handlers.
func (m *Manager) Listener() *comms.Listener { return m.listener }

// Loop returns the loop driving the manager.
func (m *Manager) Loop() *execution.Loop { return m.loop }

// Run ticks until ctx is cancelled or a tick fails. Each tick calls poll (when not nil)
// and then drains the listener, so requests are answered from the freshest state.
// The manager leaves the bus when Run returns.
func (m *Manager) Run(ctx context.Context, poll execution.StepFunc) error {
	m.log.Info().Str("subscriber", m.name).Msg("manager started")

	err := m.loop.Run(ctx, func(ctx context.Context) error {
		if poll != nil {
			if err := poll(ctx); err != nil {
				return fmt.Errorf("poll: %w", err)
			}
		}
		return m.listener.Drain(ctx)
	})

	if cerr := m.listener.Close(context.WithoutCancel(ctx)); cerr != nil {
		m.log.Warn().Err(cerr).Msg("leave bus")
	}

	if errors.Is(err, context.Canceled) {
		m.log.Info().Str("subscriber", m.name).Uint64("ticks", m.loop.Iterations()).Msg("manager stopped")
		return nil
	}
	return err
}
