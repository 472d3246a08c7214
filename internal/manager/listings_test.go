package manager

import (
	"context"
	"errors"
	"sync"
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

// world is a mutable ListingsSource for testing.
type world struct {
	mu       sync.Mutex
	listings []messages.Listing
}

func (w *world) set(listings ...messages.Listing) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listings = listings
}

func (w *world) Listings(context.Context) ([]messages.Listing, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]messages.Listing(nil), w.listings...), nil
}

// inbox collects listings delivered to a test subscriber.
type inbox struct {
	mu      sync.Mutex
	changed []messages.Listings
	replies []messages.Listings
}

func (in *inbox) counts() (int, int) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.changed), len(in.replies)
}

func (in *inbox) lastReply() messages.Listings {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.replies[len(in.replies)-1]
}

func newTestBus() *comms.Bus {
	return comms.NewBus(memory.New(), memory.NewDirectory(), zerolog.Nop())
}

func newInbox(t *testing.T, ctx context.Context, bus *comms.Bus, name string) (*comms.Listener, *inbox) {
	t.Helper()
	l, err := bus.Listen(ctx, name)
	require.NoError(t, err)

	in := &inbox{}
	comms.Handle(l, messages.ListingsChangedEvent, func(_ context.Context, _ comms.Message, p messages.Listings) error {
		in.mu.Lock()
		defer in.mu.Unlock()
		in.changed = append(in.changed, p)
		return nil
	})
	comms.Handle(l, messages.ListingsResponse, func(_ context.Context, _ comms.Message, p messages.Listings) error {
		in.mu.Lock()
		defer in.mu.Unlock()
		in.replies = append(in.replies, p)
		return nil
	})
	return l, in
}

func TestListingsManager_BroadcastsAndReplies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := memory.NewDirectory()
	bus := comms.NewBus(memory.New(), dir, zerolog.Nop())
	hacker, in := newInbox(t, ctx, bus, "hacker")

	src := &world{}
	src.set(
		messages.Listing{Symbol: "FSIG", Price: 30},
		messages.Listing{Symbol: "ECP", Price: 12.5},
	)

	m, err := New(ctx, bus, "stocks", execution.Fixed(time.Millisecond), zerolog.Nop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- NewListingsManager(m, src).Run(ctx) }()

	drainUntil := func(cond func() bool) {
		t.Helper()
		require.Eventually(t, func() bool {
			if err := hacker.Drain(ctx); err != nil {
				return false
			}
			return cond()
		}, 2*time.Second, 5*time.Millisecond)
	}

	drainUntil(func() bool { c, _ := in.counts(); return c == 1 })

	req, err := messages.ListingsRequest.Request("hacker", messages.Listings{
		Listings: []messages.Listing{{Symbol: "ECP"}, {Symbol: "NOPE"}},
	})
	require.NoError(t, err)
	require.NoError(t, bus.SendEvent(ctx, req, "stocks"))

	drainUntil(func() bool { _, r := in.counts(); return r == 1 })
	assert.Equal(t, []messages.Listing{{Symbol: "ECP", Price: 12.5}}, in.lastReply().Listings)

	src.set(messages.Listing{Symbol: "ECP", Price: 13})
	drainUntil(func() bool { c, _ := in.counts(); return c == 2 })

	cancel()
	require.NoError(t, <-done)

	members, err := dir.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hacker"}, members)
}

func TestListingsManager_SourceErrorStopsRun(t *testing.T) {
	ctx := context.Background()
	errOffline := errors.New("offline")

	m, err := New(ctx, newTestBus(), "stocks", execution.Fixed(time.Millisecond), zerolog.Nop())
	require.NoError(t, err)

	src := ListingsSourceFunc(func(context.Context) ([]messages.Listing, error) {
		return nil, errOffline
	})

	err = NewListingsManager(m, src).Run(ctx)
	assert.ErrorIs(t, err, errOffline)
}

func TestListingsState_Update(t *testing.T) {
	s := &listingsState{bySymbol: make(map[string]messages.Listing)}

	assert.True(t, s.update(nil), "first poll always counts")
	assert.False(t, s.update(nil))

	a := messages.Listing{Symbol: "A", Price: 1}
	b := messages.Listing{Symbol: "B", Price: 2}
	assert.True(t, s.update([]messages.Listing{b, a}))
	assert.False(t, s.update([]messages.Listing{a, b}), "order does not matter")
	assert.Equal(t, []messages.Listing{a, b}, s.snapshot)

	assert.Equal(t, []messages.Listing{a, b}, s.lookup(nil))
	assert.Equal(t, []messages.Listing{b}, s.lookup([]messages.Listing{{Symbol: "B"}, {Symbol: "C"}}))
}

func TestListingsManager_RepliesToRecordWithoutKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := memory.New()
	bus := comms.NewBus(transport, memory.NewDirectory(), zerolog.Nop())
	requester, in := newInbox(t, ctx, bus, "S")

	src := &world{}
	src.set(messages.Listing{Symbol: "ECP", Price: 12.5})

	m, err := New(ctx, bus, "stocks", execution.Fixed(time.Millisecond), zerolog.Nop())
	require.NoError(t, err)

	// A producer that only writes messageType and sender.
	record := []byte(`{"messageType":"stock-listings-request","sender":"S"}`)
	require.NoError(t, transport.Send(ctx, comms.ChannelFor("stocks"), record))

	done := make(chan error, 1)
	go func() { done <- NewListingsManager(m, src).Run(ctx) }()

	require.Eventually(t, func() bool {
		if err := requester.Drain(ctx); err != nil {
			return false
		}
		_, replies := in.counts()
		return replies == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []messages.Listing{{Symbol: "ECP", Price: 12.5}}, in.lastReply().Listings)

	cancel()
	require.NoError(t, <-done)
}
