package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suryansh-business-work/party-wings-website/application/notify"
	"github.com/suryansh-business-work/party-wings-website/application/quotesync"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

func newSynchronizer(t *testing.T, backend *storage.MemoryBackend) *quotesync.Synchronizer {
	t.Helper()
	s := quotesync.New(storage.NewArea(backend, "visitor", "tab"), notify.NewBus())
	s.Initialize()
	return s
}

func TestPublish_AddAndGet(t *testing.T) {
	g := NewGlobals()
	m := Publish(g, newSynchronizer(t, storage.NewMemoryBackend()))
	defer m.Unmount()

	require.True(t, Add(g, quote.Selection{ID: "svc-1", Title: "Balloon Decoration"}))

	items, ok := Get(g)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "svc-1", items[0].ID)
}

func TestPublish_RemoveAndClear(t *testing.T) {
	g := NewGlobals()
	Publish(g, newSynchronizer(t, storage.NewMemoryBackend()))

	Add(g, quote.Selection{ID: "a"})
	Add(g, quote.Selection{ID: "b"})
	require.True(t, Remove(g, "a"))

	items, _ := Get(g)
	assert.Equal(t, []string{"b"}, items.IDs())

	require.True(t, Clear(g))
	items, _ = Get(g)
	assert.Empty(t, items)
}

func TestPublish_GetReflectsLatestState(t *testing.T) {
	g := NewGlobals()
	s := newSynchronizer(t, storage.NewMemoryBackend())
	Publish(g, s)

	s.Add(quote.Selection{ID: "direct"})

	items, _ := Get(g)
	assert.Equal(t, []string{"direct"}, items.IDs())
}

func TestUnmount_RetractsEntryPoints(t *testing.T) {
	g := NewGlobals()
	m := Publish(g, newSynchronizer(t, storage.NewMemoryBackend()))
	assert.Equal(t, []string{AddToQuote, ClearQuote, GetQuote, RemoveFromQuote}, g.Names())

	m.Unmount()

	assert.Empty(t, g.Names())
	assert.False(t, Add(g, quote.Selection{ID: "a"}))
	assert.False(t, Remove(g, "a"))
	assert.False(t, Clear(g))
	_, ok := Get(g)
	assert.False(t, ok)
}

func TestPublish_LastMountedWins(t *testing.T) {
	g := NewGlobals()
	first := newSynchronizer(t, storage.NewMemoryBackend())
	second := newSynchronizer(t, storage.NewMemoryBackend())
	firstMount := Publish(g, first)
	secondMount := Publish(g, second)

	Add(g, quote.Selection{ID: "a"})
	assert.Empty(t, first.Items())
	assert.Equal(t, []string{"a"}, second.Items().IDs())

	// Tearing down the older mount must not retract the newer one.
	firstMount.Unmount()
	assert.Len(t, g.Names(), 4)
	items, ok := Get(g)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, items.IDs())

	secondMount.Unmount()
	assert.Empty(t, g.Names())
}

func TestGlobals_DeleteRequiresMatchingToken(t *testing.T) {
	g := NewGlobals()
	old := g.Set("x", ClearFunc(func() {}))
	g.Set("x", ClearFunc(func() {}))

	assert.False(t, g.Delete("x", old))
	_, ok := g.Lookup("x")
	assert.True(t, ok)
}
