package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Member is a subscriber entry in the registry.
type Member struct {
	Name     string    `json:"name"`
	PID      int       `json:"pid,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}

// RegistryFile is the root JSON structure stored on disk for the registry.
type RegistryFile struct {
	Members map[string]Member `json:"members"`
}

// Registry implements comms.Directory using a JSON file shared by all processes.
type Registry struct {
	path string
	mu   sync.RWMutex
}

// NewRegistry creates a registry at the given path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

func (r *Registry) lockPath() string {
	return r.path + ".lock"
}

// Join records subscriber as a broadcast recipient. Joining again refreshes the entry.
func (r *Registry) Join(ctx context.Context, subscriber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return withFileLock(r.lockPath(), syscall.LOCK_EX, func() error {
		file, err := r.load()
		if err != nil {
			return err
		}

		file.Members[subscriber] = Member{
			Name:     subscriber,
			PID:      os.Getpid(),
			JoinedAt: time.Now(),
		}
		return r.save(file)
	})
}

// Leave removes subscriber. Leaving when not joined is not an error.
func (r *Registry) Leave(ctx context.Context, subscriber string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return withFileLock(r.lockPath(), syscall.LOCK_EX, func() error {
		file, err := r.load()
		if err != nil {
			return err
		}

		if _, ok := file.Members[subscriber]; !ok {
			return nil
		}

		delete(file.Members, subscriber)
		return r.save(file)
	})
}

// Members returns the joined subscriber names, sorted.
func (r *Registry) Members(ctx context.Context) ([]string, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	for i, m := range entries {
		names[i] = m.Name
	}
	return names, nil
}

// List returns every member entry, sorted by name.
func (r *Registry) List(ctx context.Context) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var members []Member
	err := withFileLock(r.lockPath(), syscall.LOCK_SH, func() error {
		file, err := r.load()
		if err != nil {
			return err
		}

		for _, m := range file.Members {
			members = append(members, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})
	return members, nil
}

// load reads the registry file from disk.
// Returns an empty registry if the file doesn't exist.
func (r *Registry) load() (RegistryFile, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return RegistryFile{Members: make(map[string]Member)}, nil
		}
		return RegistryFile{}, err
	}

	if len(data) == 0 {
		return RegistryFile{Members: make(map[string]Member)}, nil
	}

	var file RegistryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return RegistryFile{}, fmt.Errorf("parse %s: %w", r.path, err)
	}

	if file.Members == nil {
		file.Members = make(map[string]Member)
	}

	return file, nil
}

func (r *Registry) save(file RegistryFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(r.path, data)
}
