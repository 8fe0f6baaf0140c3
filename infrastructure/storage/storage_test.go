package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArea_ScopesKeysToPartition(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	alice := NewArea(backend, "alice", "tab-1")
	bob := NewArea(backend, "bob", "tab-2")

	require.NoError(t, alice.Set(ctx, "cart", "[1]"))

	v, ok, err := alice.Get(ctx, "cart")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[1]", v)

	_, ok, err = bob.Get(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArea_WatchSkipsOwnWrites(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	tab1 := NewArea(backend, "visitor", "tab-1")
	tab2 := NewArea(backend, "visitor", "tab-2")
	other := NewArea(backend, "someone-else", "tab-3")

	var seen1, seen2 []ChangeEvent
	defer tab1.Watch(func(ev ChangeEvent) { seen1 = append(seen1, ev) })()
	defer tab2.Watch(func(ev ChangeEvent) { seen2 = append(seen2, ev) })()

	require.NoError(t, tab1.Set(ctx, "cart", "a"))
	require.NoError(t, other.Set(ctx, "cart", "b"))

	assert.Empty(t, seen1)
	require.Len(t, seen2, 1)
	assert.Equal(t, "cart", seen2[0].Key)
	assert.Equal(t, "a", seen2[0].NewValue)
	assert.Equal(t, "tab-1", seen2[0].Source)
}

func TestArea_WatchDeliversExternalWrites(t *testing.T) {
	backend := NewMemoryBackend()
	tab := NewArea(backend, "visitor", "tab-1")

	var seen []ChangeEvent
	unsubscribe := tab.Watch(func(ev ChangeEvent) { seen = append(seen, ev) })

	backend.SetRaw("visitor/cart", "x")
	unsubscribe()
	backend.SetRaw("visitor/cart", "y")

	require.Len(t, seen, 1)
	assert.Equal(t, "", seen[0].Source)
}

func TestMemoryBackend_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("injected write failure", func(t *testing.T) {
		backend := NewMemoryBackend()
		boom := errors.New("disabled")
		backend.FailWrites(boom)

		assert.ErrorIs(t, backend.Set(ctx, "k", "v", ""), boom)

		backend.FailWrites(nil)
		assert.NoError(t, backend.Set(ctx, "k", "v", ""))
	})

	t.Run("quota", func(t *testing.T) {
		backend := NewMemoryBackend()
		backend.MaxValueBytes = 4

		assert.ErrorIs(t, backend.Set(ctx, "k", "12345", ""), ErrQuotaExceeded)
		_, ok, _ := backend.Get(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("closed", func(t *testing.T) {
		backend := NewMemoryBackend()
		require.NoError(t, backend.Close())

		assert.ErrorIs(t, backend.Set(ctx, "k", "v", ""), ErrUnavailable)
		_, _, err := backend.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestMemoryBackend_RemoveNotifiesOnlyWhenPresent(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	var seen []ChangeEvent
	defer backend.Subscribe(func(ev ChangeEvent) { seen = append(seen, ev) })()

	require.NoError(t, backend.Remove(ctx, "missing", "src"))
	require.NoError(t, backend.Set(ctx, "k", "v", "src"))
	require.NoError(t, backend.Remove(ctx, "k", "src"))

	require.Len(t, seen, 2)
	assert.True(t, seen[1].Removed)
	assert.Equal(t, "v", seen[1].OldValue)
}
