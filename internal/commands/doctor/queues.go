package doctor

import (
	"context"
	"fmt"

	"github.com/hay-kot/portbus/internal/core/comms"
	"github.com/hay-kot/portbus/internal/store/jsonfile"
)

// Ports is the subset of jsonfile.PortStore the queue check needs.
type Ports interface {
	Channels(ctx context.Context) ([]jsonfile.ChannelInfo, error)
	Remove(ctx context.Context, channel string) error
}

// Members lists the subscribers currently joined.
type Members interface {
	Members(ctx context.Context) ([]string, error)
}

// QueueCheck inspects every channel file. Queues that dropped entries point at a
// listener that drains too slowly; queues owned by nobody are left over from
// subscribers that have gone.
type QueueCheck struct {
	ports   Ports
	members Members
	fix     bool
}

// NewQueueCheck creates a queue check. If fix is true, orphaned queue files are deleted.
func NewQueueCheck(ports Ports, members Members, fix bool) *QueueCheck {
	return &QueueCheck{ports: ports, members: members, fix: fix}
}

func (c *QueueCheck) Name() string {
	return "Queues"
}

func (c *QueueCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	channels, err := c.ports.Channels(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "List channels",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	members, err := c.members.Members(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "List subscribers",
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}
	joined := make(map[string]bool, len(members))
	for _, m := range members {
		joined[m] = true
	}

	for _, ch := range channels {
		sub, ok := comms.SubscriberOf(ch.Name)
		if !ok || !joined[sub] {
			result.Items = append(result.Items, c.orphan(ctx, ch))
			continue
		}
		if ch.Dropped > 0 {
			result.Items = append(result.Items, CheckItem{
				Label:  ch.Name,
				Status: StatusWarn,
				Detail: fmt.Sprintf("%d entries dropped on overflow", ch.Dropped),
			})
		}
	}

	if len(result.Items) == 0 {
		result.Items = append(result.Items, CheckItem{
			Label:  "Queues healthy",
			Status: StatusPass,
			Detail: fmt.Sprintf("%d channels", len(channels)),
		})
	}

	return result
}

func (c *QueueCheck) orphan(ctx context.Context, ch jsonfile.ChannelInfo) CheckItem {
	if !c.fix {
		return CheckItem{
			Label:   ch.Name,
			Status:  StatusWarn,
			Detail:  fmt.Sprintf("no joined subscriber, %d entries queued", ch.Depth),
			Fixable: true,
		}
	}

	if err := c.ports.Remove(ctx, ch.Name); err != nil {
		return CheckItem{
			Label:  ch.Name,
			Status: StatusFail,
			Detail: fmt.Sprintf("failed to delete: %v", err),
		}
	}
	return CheckItem{
		Label:  ch.Name,
		Status: StatusFixed,
		Detail: "deleted orphaned queue",
	}
}
