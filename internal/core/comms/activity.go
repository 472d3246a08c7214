package comms

import "time"

// ActivityType represents the type of bus activity.
type ActivityType string

const (
	ActivitySend    ActivityType = "send"
	ActivityReceive ActivityType = "receive"
	ActivityDrop    ActivityType = "drop"
)

// Activity represents a single bus activity event.
type Activity struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Channel     string       `json:"channel"`
	MessageType string       `json:"message_type,omitempty"`
	Kind        Kind         `json:"kind,omitempty"`
	Subscriber  string       `json:"subscriber,omitempty"`
	Reason      string       `json:"reason,omitempty"` // For drop events
	Timestamp   time.Time    `json:"timestamp"`
}

// ActivityRecorder receives activity events. Recording is best effort.
type ActivityRecorder interface {
	Record(activity Activity) error
}

// ActivityStore defines persistence operations for activity events.
type ActivityStore interface {
	ActivityRecorder
	// List returns recent activity events, newest first.
	// Limit of 0 returns all events.
	List(limit int) ([]Activity, error)
	// ListSince returns activity events since the given time, newest first.
	ListSince(since time.Time, limit int) ([]Activity, error)
}
