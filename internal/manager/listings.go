package manager

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/messages"
)

// ListingsSource reads the current stock listings from the shared world.
type ListingsSource interface {
	Listings(ctx context.Context) ([]messages.Listing, error)
}

// ListingsSourceFunc adapts a function to ListingsSource.
type ListingsSourceFunc func(ctx context.Context) ([]messages.Listing, error)

func (f ListingsSourceFunc) Listings(ctx context.Context) ([]messages.Listing, error) {
	return f(ctx)
}

// ListingsManager keeps a cache of stock listings. It broadcasts a
// stock-listings-changed event whenever the listings change and answers
// stock-listings-request messages with the cached listings. A request that names
// symbols receives only those it names that are known.
type ListingsManager struct {
	manager *Manager
	source  ListingsSource
}

// NewListingsManager serves listings read from source on m.
func NewListingsManager(m *Manager, source ListingsSource) *ListingsManager {
	return &ListingsManager{manager: m, source: source}
}

// listingsState is owned by a single Run call. It is created when the loop starts and
// discarded when it ends.
type listingsState struct {
	bySymbol map[string]messages.Listing
	snapshot []messages.Listing
	polled   bool
}

// Run serves listings until ctx is cancelled or a tick fails.
func (lm *ListingsManager) Run(ctx context.Context) error {
	var (
		bus   = lm.manager.Bus()
		log   = lm.manager.log
		state = &listingsState{bySymbol: make(map[string]messages.Listing)}
	)

	comms.Handle(lm.manager.Listener(), messages.ListingsRequest,
		func(ctx context.Context, msg comms.Message, want messages.Listings) error {
			req, ok := msg.(comms.Request)
			if !ok || req.Sender() == "" {
				log.Warn().
					Str("message_type", msg.MessageType()).
					Str("kind", string(msg.Kind())).
					Msg("cannot reply, not a request with a sender")
				return nil
			}

			resp, err := messages.ListingsResponse.Response(messages.Listings{Listings: state.lookup(want.Listings)})
			if err != nil {
				return err
			}
			return bus.Reply(ctx, req, resp)
		})

	return lm.manager.Run(ctx, func(ctx context.Context) error {
		listings, err := lm.source.Listings(ctx)
		if err != nil {
			return fmt.Errorf("read listings: %w", err)
		}

		if !state.update(listings) {
			return nil
		}

		log.Debug().Int("listings", len(state.snapshot)).Msg("listings changed")

		ev, err := messages.ListingsChangedEvent.Event(messages.Listings{Listings: state.snapshot})
		if err != nil {
			return err
		}
		return bus.SendEvent(ctx, ev, "")
	})
}

// update replaces the cache with listings and reports whether anything changed.
// The first update always counts as a change.
func (s *listingsState) update(listings []messages.Listing) bool {
	next := slices.Clone(listings)
	slices.SortFunc(next, func(a, b messages.Listing) int {
		return strings.Compare(a.Symbol, b.Symbol)
	})

	if s.polled && slices.Equal(next, s.snapshot) {
		return false
	}

	s.polled = true
	s.snapshot = next
	clear(s.bySymbol)
	for _, l := range next {
		s.bySymbol[l.Symbol] = l
	}
	return true
}

// lookup returns the cached listings for the symbols in want, or every listing when
// want is empty.
func (s *listingsState) lookup(want []messages.Listing) []messages.Listing {
	if len(want) == 0 {
		return s.snapshot
	}

	out := make([]messages.Listing, 0, len(want))
	for _, w := range want {
		if l, ok := s.bySymbol[w.Symbol]; ok {
			out = append(out, l)
		}
	}
	return out
}
