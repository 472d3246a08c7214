package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hay-kot/portbus/internal/core/comms"
)

const defaultCapacity = 50

// PortFile is the JSON structure stored on disk for one channel.
type PortFile struct {
	Channel   string      `json:"channel"`
	Entries   []PortEntry `json:"entries"`
	Dropped   int         `json:"dropped"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PortEntry is one queued record.
type PortEntry struct {
	ID       string    `json:"id"`
	Data     string    `json:"data"`
	QueuedAt time.Time `json:"queued_at"`
}

// ChannelInfo summarizes a channel for inspection.
type ChannelInfo struct {
	Name      string    `json:"name"`
	Depth     int       `json:"depth"`
	Dropped   int       `json:"dropped"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PortStore implements comms.Transport using one JSON file per channel. Writers and
// the draining reader may live in different processes; every access holds a flock on
// the channel's lock file.
type PortStore struct {
	dir      string
	capacity int
	overflow comms.Overflow
	mu       sync.RWMutex
}

// NewPortStore creates a port store rooted at dir
// (e.g., $XDG_DATA_HOME/portbus/ports).
func NewPortStore(dir string) *PortStore {
	return &PortStore{
		dir:      dir,
		capacity: defaultCapacity,
		overflow: comms.DropOldest,
	}
}

// WithCapacity sets the maximum number of entries queued per channel.
func (s *PortStore) WithCapacity(n int) *PortStore {
	s.capacity = n
	return s
}

// WithOverflow sets the policy applied when a channel is full.
func (s *PortStore) WithOverflow(o comms.Overflow) *PortStore {
	s.overflow = o
	return s
}

// portPath returns the file path for a channel. Channel names are path-escaped so
// that any name maps to a single file and back.
func (s *PortStore) portPath(channel string) string {
	return filepath.Join(s.dir, url.PathEscape(channel)+".json")
}

func (s *PortStore) lockPath(channel string) string {
	return s.portPath(channel) + ".lock"
}

// Send appends data to the channel, dropping an entry when the channel is full.
func (s *PortStore) Send(ctx context.Context, channel string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(s.lockPath(channel), syscall.LOCK_EX, func() error {
		port, err := s.load(channel)
		if err != nil {
			return err
		}

		if s.capacity > 0 && len(port.Entries) >= s.capacity {
			if s.overflow == comms.DropNewest {
				port.Dropped++
				return s.save(port)
			}
			// The capacity may have shrunk since the entries were queued.
			cut := len(port.Entries) - s.capacity + 1
			port.Dropped += cut
			port.Entries = port.Entries[cut:]
		}

		port.Entries = append(port.Entries, PortEntry{
			ID:       uuid.NewString(),
			Data:     string(data),
			QueuedAt: time.Now(),
		})
		port.UpdatedAt = time.Now()

		return s.save(port)
	})
}

// ReceiveAll removes and returns every entry queued on channel, oldest first.
func (s *PortStore) ReceiveAll(ctx context.Context, channel string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out [][]byte
	err := withFileLock(s.lockPath(channel), syscall.LOCK_EX, func() error {
		port, err := s.load(channel)
		if err != nil {
			return err
		}
		if len(port.Entries) == 0 {
			return nil
		}

		out = make([][]byte, 0, len(port.Entries))
		for _, e := range port.Entries {
			out = append(out, []byte(e.Data))
		}

		port.Entries = nil
		port.UpdatedAt = time.Now()
		return s.save(port)
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Remove deletes the channel's queue file along with anything still queued on it.
func (s *PortStore) Remove(ctx context.Context, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return withFileLock(s.lockPath(channel), syscall.LOCK_EX, func() error {
		if err := os.Remove(s.portPath(channel)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove port file: %w", err)
		}
		return nil
	})
}

// Channels returns a summary of every channel that has a file, sorted by name.
func (s *PortStore) Channels(ctx context.Context) ([]ChannelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names, err := s.listChannelsUnsafe()
	if err != nil {
		return nil, err
	}

	infos := make([]ChannelInfo, 0, len(names))
	for _, name := range names {
		err := withFileLock(s.lockPath(name), syscall.LOCK_SH, func() error {
			port, err := s.load(name)
			if err != nil {
				return err
			}
			infos = append(infos, ChannelInfo{
				Name:      name,
				Depth:     len(port.Entries),
				Dropped:   port.Dropped,
				UpdatedAt: port.UpdatedAt,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return infos, nil
}

// listChannelsUnsafe returns all channel names without locking.
// Caller must hold s.mu.
func (s *PortStore) listChannelsUnsafe() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ports directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		escaped, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok {
			continue
		}
		name, err := url.PathUnescape(escaped)
		if err != nil {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

// load reads a channel file from disk.
// Returns an empty port if the file doesn't exist.
func (s *PortStore) load(channel string) (PortFile, error) {
	data, err := os.ReadFile(s.portPath(channel))
	if err != nil {
		if os.IsNotExist(err) {
			return PortFile{Channel: channel}, nil
		}
		return PortFile{}, fmt.Errorf("read port file: %w", err)
	}

	if len(data) == 0 {
		return PortFile{Channel: channel}, nil
	}

	var port PortFile
	if err := json.Unmarshal(data, &port); err != nil {
		return PortFile{}, fmt.Errorf("parse port file: %w", err)
	}
	port.Channel = channel

	return port, nil
}

// save writes a channel file to disk atomically.
func (s *PortStore) save(port PortFile) error {
	data, err := json.MarshalIndent(port, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal port: %w", err)
	}
	return writeAtomic(s.portPath(port.Channel), data)
}
