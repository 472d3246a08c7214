package manager

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/core/execution"
	"github.com/hay-kot/portbus/internal/messages"
	"github.com/hay-kot/portbus/internal/store/memory"
)

func TestManager_PollThenDrain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := memory.NewDirectory()
	bus := comms.NewBus(memory.New(), dir, zerolog.Nop())

	m, err := New(ctx, bus, "grower", execution.Fixed(time.Millisecond), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "grower", m.Name())

	var order []string
	comms.Handle(m.Listener(), messages.GrowEvent, func(_ context.Context, _ comms.Message, g messages.Grow) error {
		order = append(order, "handle:"+string(g.Status))
		cancel()
		return nil
	})

	polls := 0
	err = m.Run(ctx, func(ctx context.Context) error {
		polls++
		order = append(order, "poll")
		if polls == 2 {
			ev, err := messages.GrowEvent.Event(messages.Grow{Status: messages.GrowComplete})
			if err != nil {
				return err
			}
			return bus.SendEvent(ctx, ev, "grower")
		}
		return nil
	})

	require.NoError(t, err, "cancellation is a clean stop")
	assert.Equal(t, []string{"poll", "poll", "handle:COMPLETE"}, order)
	assert.Equal(t, uint64(2), m.Loop().Iterations())
	assert.Equal(t, execution.StateStopped, m.Loop().State())

	members, err := dir.Members(context.Background())
	require.NoError(t, err)
	assert.Empty(t, members, "manager leaves the bus when Run returns")
}

func TestNew_RejectsBadName(t *testing.T) {
	bus := comms.NewBus(memory.New(), memory.NewDirectory(), zerolog.Nop())

	_, err := New(context.Background(), bus, "", execution.Fixed(0), zerolog.Nop())
	assert.Error(t, err)
}
