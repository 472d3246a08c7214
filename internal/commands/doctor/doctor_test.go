package doctor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/portbus/internal/core/config"
	"github.com/hay-kot/portbus/internal/store/jsonfile"
)

type mockRegistry struct {
	members []jsonfile.Member
	left    []string
}

func (m *mockRegistry) List(_ context.Context) ([]jsonfile.Member, error) {
	return m.members, nil
}

func (m *mockRegistry) Leave(_ context.Context, subscriber string) error {
	m.left = append(m.left, subscriber)
	return nil
}

func TestSubscriberCheck(t *testing.T) {
	reg := &mockRegistry{members: []jsonfile.Member{
		{Name: "stocks", PID: 100},
		{Name: "hacker", PID: 200},
		{Name: "no-pid"},
	}}
	alive := func(pid int) bool { return pid == 100 }

	t.Run("report", func(t *testing.T) {
		check := &SubscriberCheck{registry: reg, alive: alive}
		result := check.Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, "hacker", result.Items[0].Label)
		assert.Equal(t, StatusWarn, result.Items[0].Status)
		assert.True(t, result.Items[0].Fixable)
		assert.Empty(t, reg.left)
	})

	t.Run("fix", func(t *testing.T) {
		check := &SubscriberCheck{registry: reg, alive: alive, fix: true}
		result := check.Run(context.Background())

		require.Len(t, result.Items, 1)
		assert.Equal(t, StatusFixed, result.Items[0].Status)
		assert.Equal(t, []string{"hacker"}, reg.left)
	})
}

func TestProcessAlive_Self(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
}

type staticMembers []string

func (s staticMembers) Members(context.Context) ([]string, error) { return s, nil }

func TestQueueCheck(t *testing.T) {
	ctx := context.Background()
	ports := jsonfile.NewPortStore(t.TempDir()).WithCapacity(1)

	for _, ch := range []string{"sub/stocks", "sub/gone", "sub/hacker", "sub/hacker"} {
		require.NoError(t, ports.Send(ctx, ch, []byte("{}")))
	}
	members := staticMembers{"stocks", "hacker"}

	result := NewQueueCheck(ports, members, false).Run(ctx)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "sub/gone", result.Items[0].Label)
	assert.True(t, result.Items[0].Fixable)
	assert.Equal(t, "sub/hacker", result.Items[1].Label)
	assert.Contains(t, result.Items[1].Detail, "1 entries dropped")

	result = NewQueueCheck(ports, members, true).Run(ctx)
	assert.Equal(t, StatusFixed, result.Items[0].Status)

	channels, err := ports.Channels(ctx)
	require.NoError(t, err)
	assert.Len(t, channels, 2)
}

func TestConfigCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	result := NewConfigCheck(&cfg, filepath.Join(t.TempDir(), "config.yaml")).Run(context.Background())
	require.Len(t, result.Items, 4)
	assert.Equal(t, CheckItem{Label: "transport", Status: StatusPass, Detail: "capacity 50, drop-oldest"}, result.Items[0])
	assert.Equal(t, CheckItem{Label: "scheduler", Status: StatusPass, Detail: "jitter 1ms..100ms, delay 1s"}, result.Items[1])

	cfg.Transport.Capacity = 0
	cfg.Activity.Enabled = false
	result = NewConfigCheck(&cfg, "").Run(context.Background())

	labels := map[string]Status{}
	for _, item := range result.Items {
		labels[item.Label] = item.Status
	}
	assert.Equal(t, StatusFail, labels["transport.capacity"])
	assert.Equal(t, StatusWarn, labels["activity.enabled"])
	assert.NotContains(t, labels, "transport", "settings are not reported while invalid")
}

func TestConfigCheck_NotLoaded(t *testing.T) {
	result := NewConfigCheck(nil, "").Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestCount(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		staticCheck{items: []CheckItem{{Status: StatusPass}, {Status: StatusFixed}, {Status: StatusWarn, Fixable: true}}},
		staticCheck{items: []CheckItem{{Status: StatusFail}}},
	})

	tally := Count(results)
	assert.Equal(t, Tally{Passed: 2, Warned: 1, Failed: 1, Fixable: 1}, tally)
	assert.False(t, tally.Healthy())

	data, err := json.Marshal(results[0].Items[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"label":"","status":"fixed"}`, string(data))
}

type staticCheck struct {
	items []CheckItem
}

func (s staticCheck) Name() string { return "static" }

func (s staticCheck) Run(context.Context) Result {
	return Result{Name: s.Name(), Items: s.items}
}
