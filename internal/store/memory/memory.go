// Package memory provides an in-process comms.Transport and comms.Directory.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/hay-kot/portbus/internal/core/comms"
)

const defaultCapacity = 50

// Transport implements comms.Transport with bounded in-memory queues.
type Transport struct {
	capacity int
	overflow comms.Overflow

	mu      sync.Mutex
	queues  map[string][][]byte
	dropped map[string]int
}

// New creates an in-memory transport with the default capacity and DropOldest policy.
func New() *Transport {
	return &Transport{
		capacity: defaultCapacity,
		overflow: comms.DropOldest,
		queues:   make(map[string][][]byte),
		dropped:  make(map[string]int),
	}
}

// WithCapacity sets the maximum number of queued entries per channel.
func (t *Transport) WithCapacity(n int) *Transport {
	t.capacity = n
	return t
}

// WithOverflow sets the policy applied when a channel is full.
func (t *Transport) WithOverflow(o comms.Overflow) *Transport {
	t.overflow = o
	return t
}

// Send appends a copy of data to channel.
func (t *Transport) Send(_ context.Context, channel string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[channel]
	if t.capacity > 0 && len(q) >= t.capacity {
		if t.overflow == comms.DropNewest {
			t.dropped[channel]++
			return nil
		}
		cut := len(q) - t.capacity + 1
		t.dropped[channel] += cut
		q = q[cut:]
	}
	t.queues[channel] = append(q, bytes.Clone(data))
	return nil
}

// ReceiveAll removes and returns every entry queued on channel.
func (t *Transport) ReceiveAll(_ context.Context, channel string) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	q := t.queues[channel]
	delete(t.queues, channel)
	return q, nil
}

// Depth returns the number of entries queued on channel.
func (t *Transport) Depth(channel string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues[channel])
}

// Dropped returns the number of entries channel has discarded on overflow. Receiving
// does not reset it.
func (t *Transport) Dropped(channel string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped[channel]
}

// Directory implements comms.Directory in memory.
type Directory struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{members: make(map[string]struct{})}
}

func (d *Directory) Join(_ context.Context, subscriber string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[subscriber] = struct{}{}
	return nil
}

func (d *Directory) Leave(_ context.Context, subscriber string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members, subscriber)
	return nil
}

func (d *Directory) Members(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.members))
	for m := range d.members {
		out = append(out, m)
	}
	slices.Sort(out)
	return out, nil
}
