package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_JoinLeave(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(filepath.Join(t.TempDir(), "subscribers.json"))

	members, err := r.Members(ctx)
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, r.Join(ctx, "stocks"))
	require.NoError(t, r.Join(ctx, "hacker"))
	require.NoError(t, r.Join(ctx, "stocks"))

	members, err = r.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hacker", "stocks"}, members)

	require.NoError(t, r.Leave(ctx, "stocks"))
	require.NoError(t, r.Leave(ctx, "never-joined"))

	members, err = r.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hacker"}, members)
}

func TestRegistry_ListRecordsPID(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, NewRegistry(path).Join(ctx, "stocks"))

	list, err := NewRegistry(path).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "stocks", list[0].Name)
	assert.Equal(t, os.Getpid(), list[0].PID)
	assert.False(t, list[0].JoinedAt.IsZero())
}

func TestRegistry_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := NewRegistry(path).Members(context.Background())
	assert.Error(t, err)
}
