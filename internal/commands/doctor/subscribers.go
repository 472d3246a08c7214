package doctor

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/hay-kot/portbus/internal/store/jsonfile"
)

// Registry is the subset of jsonfile.Registry the subscriber check needs.
type Registry interface {
	List(ctx context.Context) ([]jsonfile.Member, error)
	Leave(ctx context.Context, subscriber string) error
}

// SubscriberCheck finds registry members whose process has exited without leaving.
// Broadcasts keep filling the queues of such members until they are removed.
type SubscriberCheck struct {
	registry Registry
	fix      bool
	alive    func(pid int) bool
}

// NewSubscriberCheck creates a stale subscriber check. If fix is true, stale members
// are removed from the registry.
func NewSubscriberCheck(registry Registry, fix bool) *SubscriberCheck {
	return &SubscriberCheck{registry: registry, fix: fix, alive: processAlive}
}

func (c *SubscriberCheck) Name() string {
	return "Subscribers"
}

func (c *SubscriberCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	members, err := c.registry.List(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "List subscribers",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	var stale []jsonfile.Member
	for _, m := range members {
		if m.PID > 0 && !c.alive(m.PID) {
			stale = append(stale, m)
		}
	}

	if len(stale) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "No stale subscribers",
			Status: StatusPass,
			Detail: fmt.Sprintf("%d joined", len(members)),
		})
		return result
	}

	for _, m := range stale {
		if !c.fix {
			result.Items = append(result.Items, CheckItem{
				Label:   m.Name,
				Status:  StatusWarn,
				Detail:  fmt.Sprintf("process %d is gone but still joined", m.PID),
				Fixable: true,
			})
			continue
		}

		if err := c.registry.Leave(ctx, m.Name); err != nil {
			result.Items = append(result.Items, CheckItem{
				Label:  m.Name,
				Status: StatusFail,
				Detail: fmt.Sprintf("failed to remove: %v", err),
			})
			continue
		}
		result.Items = append(result.Items, CheckItem{
			Label:  m.Name,
			Status: StatusFixed,
			Detail: "removed stale subscriber",
		})
	}

	return result
}

// processAlive reports whether pid names a running process. EPERM means the process
// exists but belongs to someone else.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
