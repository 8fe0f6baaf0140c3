package badge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/bridge"
	"github.com/suryansh-business-work/party-wings-website/application/notify"
	"github.com/suryansh-business-work/party-wings-website/application/quotesync"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

type page struct {
	backend *storage.MemoryBackend
	area    *storage.Area
	bus     *notify.Bus
	globals *bridge.Globals
}

func newPage() *page {
	backend := storage.NewMemoryBackend()
	return &page{
		backend: backend,
		area:    storage.NewArea(backend, "visitor", "tab-1"),
		bus:     notify.NewBus(),
		globals: bridge.NewGlobals(),
	}
}

func TestBadge_FollowsSynchronizer(t *testing.T) {
	p := newPage()
	s := quotesync.New(p.area, p.bus)
	s.Initialize()
	bridge.Publish(p.globals, s)
	b := Mount(p.area, p.bus, p.globals, zap.NewNop())
	defer b.Unmount()

	s.Add(quote.Selection{ID: "a"})
	s.Add(quote.Selection{ID: "b"})

	assert.Equal(t, 2, b.Count())
	assert.Equal(t, []string{"a", "b"}, b.Items().IDs())
}

func TestBadge_RemoveUsesBridge(t *testing.T) {
	p := newPage()
	s := quotesync.New(p.area, p.bus)
	s.Initialize()
	bridge.Publish(p.globals, s)
	b := Mount(p.area, p.bus, p.globals, zap.NewNop())
	s.Add(quote.Selection{ID: "a"})
	s.Add(quote.Selection{ID: "b"})

	b.Remove("a")

	assert.Equal(t, []string{"b"}, s.Items().IDs())
	assert.Equal(t, []string{"b"}, b.Items().IDs())
}

func TestBadge_RemoveWithoutBridgeWritesStore(t *testing.T) {
	p := newPage()
	p.backend.SetRaw("visitor/"+quote.StorageKey, `[{"id":"a"},{"id":"b"}]`)
	b := Mount(p.area, p.bus, p.globals, zap.NewNop())
	var events []notify.Event
	p.bus.Subscribe(quote.EventQuoteUpdated, func(ev notify.Event) { events = append(events, ev) })

	b.Remove("a")

	assert.Equal(t, []string{"b"}, b.Items().IDs())
	raw, _, err := p.area.Get(context.Background(), quote.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, quote.Decode(raw).IDs())
	require.Len(t, events, 1)
	assert.Empty(t, events[0].OriginID)
}

func TestBadge_ClearWithoutBridge(t *testing.T) {
	p := newPage()
	p.backend.SetRaw("visitor/"+quote.StorageKey, `[{"id":"a"}]`)
	b := Mount(p.area, p.bus, p.globals, zap.NewNop())

	b.Clear()

	assert.Zero(t, b.Count())
}

func TestBadge_StorageSignals(t *testing.T) {
	p := newPage()
	b := Mount(p.area, p.bus, p.globals, zap.NewNop())
	var counts []int
	b.OnChange(func(c quote.Collection) { counts = append(counts, len(c)) })

	p.backend.SetRaw("visitor/"+quote.StorageKey, `[{"id":"a"}]`)
	p.bus.Dispatch(notify.Event{Name: notify.EventStorage, Key: "token"})
	assert.Zero(t, b.Count())

	p.bus.Dispatch(notify.Event{Name: notify.EventStorage, Key: quote.StorageKey})
	assert.Equal(t, 1, b.Count())

	p.bus.Dispatch(notify.Event{Name: notify.EventStorage})
	assert.Equal(t, []int{1, 1}, counts)
}

func TestBadge_UnmountStopsUpdates(t *testing.T) {
	p := newPage()
	b := Mount(p.area, p.bus, p.globals, zap.NewNop())
	b.Unmount()
	reads := b.Reads()

	p.bus.Dispatch(notify.Event{Name: quote.EventQuoteUpdated})

	assert.Equal(t, reads, b.Reads())
}
