package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestSQLite(t *testing.T, path string) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(path, 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLiteBackend_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	b := openTestSQLite(t, filepath.Join(t.TempDir(), "slots.db"))

	require.NoError(t, b.Set(ctx, "cart", "[]", "tab-1"))
	require.NoError(t, b.Set(ctx, "cart", `[{"id":"a"}]`, "tab-1"))

	v, ok, err := b.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"a"}]`, v)

	require.NoError(t, b.Remove(ctx, "cart", "tab-1"))
	_, ok, err = b.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteBackend_PollReportsOtherWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "slots.db")
	writer := openTestSQLite(t, path)
	reader := openTestSQLite(t, path)

	var fromReader, fromWriter []ChangeEvent
	defer reader.Subscribe(func(ev ChangeEvent) { fromReader = append(fromReader, ev) })()
	defer writer.Subscribe(func(ev ChangeEvent) { fromWriter = append(fromWriter, ev) })()

	require.NoError(t, writer.Set(ctx, "cart", `["x"]`, "tab-1"))
	require.NoError(t, reader.Poll(ctx))
	require.NoError(t, writer.Poll(ctx))

	require.Len(t, fromReader, 1)
	assert.Equal(t, `["x"]`, fromReader[0].NewValue)
	assert.Equal(t, "", fromReader[0].Source)
	require.Len(t, fromWriter, 1, "writer must not hear its own write from polling")

	require.NoError(t, writer.Remove(ctx, "cart", "tab-1"))
	require.NoError(t, reader.Poll(ctx))

	require.Len(t, fromReader, 2)
	assert.True(t, fromReader[1].Removed)
}

func TestSQLiteBackend_PollSeesRemoveThenRewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "slots.db")
	writer := openTestSQLite(t, path)
	reader := openTestSQLite(t, path)

	require.NoError(t, writer.Set(ctx, "cart", `["x"]`, "tab-1"))
	require.NoError(t, reader.Poll(ctx))

	var seen []ChangeEvent
	defer reader.Subscribe(func(ev ChangeEvent) { seen = append(seen, ev) })()

	require.NoError(t, writer.Remove(ctx, "cart", "tab-1"))
	require.NoError(t, writer.Set(ctx, "cart", `["y"]`, "tab-1"))
	require.NoError(t, reader.Poll(ctx))

	require.Len(t, seen, 1)
	assert.False(t, seen[0].Removed)
	assert.Equal(t, `["y"]`, seen[0].NewValue)
}
