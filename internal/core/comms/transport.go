package comms

import (
	"context"
	"fmt"
	"strings"
)

// Transport is the queue primitive the bus runs on. A channel is a bounded FIFO queue
// with many writers and a single reader.
type Transport interface {
	// Send appends data to the channel. When the channel is full one entry is dropped
	// according to the transport's Overflow policy; Send does not block or fail for it.
	Send(ctx context.Context, channel string, data []byte) error
	// ReceiveAll removes and returns every queued entry, oldest first.
	ReceiveAll(ctx context.Context, channel string) ([][]byte, error)
}

// Directory tracks the subscribers a broadcast is delivered to.
type Directory interface {
	Join(ctx context.Context, subscriber string) error
	Leave(ctx context.Context, subscriber string) error
	// Members returns the joined subscriber names, sorted.
	Members(ctx context.Context) ([]string, error)
}

// Overflow selects which entry a full channel discards.
type Overflow string

const (
	// DropOldest discards the oldest queued entry to make room for the new one.
	DropOldest Overflow = "drop-oldest"
	// DropNewest discards the entry being sent.
	DropNewest Overflow = "drop-newest"
)

// Valid reports whether o is a known policy.
func (o Overflow) Valid() bool {
	return o == DropOldest || o == DropNewest
}

// ChannelFor returns the private channel owned by subscriber.
func ChannelFor(subscriber string) string {
	return "sub/" + subscriber
}

// SubscriberOf is the inverse of ChannelFor. It returns false for channels that are not
// a subscriber's private channel.
func SubscriberOf(channel string) (string, bool) {
	name, ok := strings.CutPrefix(channel, "sub/")
	return name, ok && name != ""
}

// ValidateSubscriber checks a subscriber name is usable as a channel owner.
func ValidateSubscriber(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("subscriber name is required")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("subscriber name %q cannot contain path separators", name)
	}
	return nil
}
