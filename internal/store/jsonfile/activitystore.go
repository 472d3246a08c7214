package jsonfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/portbus/internal/core/comms"
)

const (
	defaultMaxActivities = 1000
	activityFilename     = "activity.jsonl"
)

// ActivityStore implements comms.ActivityStore using a JSONL file. The bus records
// every send, receive and drop here when activity is enabled.
type ActivityStore struct {
	dir           string
	maxActivities int
	mu            sync.Mutex
}

// NewActivityStore creates a new activity store at the given directory.
func NewActivityStore(dir string) *ActivityStore {
	return &ActivityStore{
		dir:           dir,
		maxActivities: defaultMaxActivities,
	}
}

// WithMaxActivities sets the maximum number of activities to retain.
func (s *ActivityStore) WithMaxActivities(max int) *ActivityStore {
	s.maxActivities = max
	return s
}

func (s *ActivityStore) filePath() string {
	return filepath.Join(s.dir, activityFilename)
}

func (s *ActivityStore) lockPath() string {
	return s.filePath() + ".lock"
}

// Record appends an activity, trimming the log to the retention limit.
func (s *ActivityStore) Record(activity comms.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	return withFileLock(s.lockPath(), syscall.LOCK_EX, func() error {
		activities, err := s.readUnsafe()
		if err != nil {
			return err
		}

		activities = append(activities, activity)
		if s.maxActivities > 0 && len(activities) > s.maxActivities {
			activities = activities[len(activities)-s.maxActivities:]
		}

		return s.writeUnsafe(activities)
	})
}

// List returns recent activity events, newest first.
func (s *ActivityStore) List(limit int) ([]comms.Activity, error) {
	return s.collect(limit, func(comms.Activity) bool { return true })
}

// ListSince returns activity events since the given time, newest first.
func (s *ActivityStore) ListSince(since time.Time, limit int) ([]comms.Activity, error) {
	return s.collect(limit, func(a comms.Activity) bool { return a.Timestamp.After(since) })
}

func (s *ActivityStore) collect(limit int, keep func(comms.Activity) bool) ([]comms.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []comms.Activity
	err := withFileLock(s.lockPath(), syscall.LOCK_SH, func() error {
		activities, err := s.readUnsafe()
		if err != nil {
			return err
		}

		for i := len(activities) - 1; i >= 0; i-- {
			if !keep(activities[i]) {
				continue
			}
			result = append(result, activities[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	return result, err
}

// readUnsafe reads all activities from the file, skipping malformed lines.
// Caller must hold the file lock.
func (s *ActivityStore) readUnsafe() ([]comms.Activity, error) {
	f, err := os.Open(s.filePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open activity file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var activities []comms.Activity
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var activity comms.Activity
		if err := json.Unmarshal(scanner.Bytes(), &activity); err != nil {
			continue
		}
		activities = append(activities, activity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read activity file: %w", err)
	}

	return activities, nil
}

// writeUnsafe replaces the file with activities, one JSON object per line.
// Caller must hold the exclusive file lock.
func (s *ActivityStore) writeUnsafe(activities []comms.Activity) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range activities {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("encode activity: %w", err)
		}
	}
	return writeAtomic(s.filePath(), buf.Bytes())
}
