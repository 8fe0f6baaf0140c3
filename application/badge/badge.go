// Package badge is the cart badge widget: a listener that mirrors the
// persisted quote selections and offers quick removal.
package badge

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/bridge"
	"github.com/suryansh-business-work/party-wings-website/application/notify"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

// Store is the persisted slot access the badge needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Badge shows the selection count and list. It re-reads the store on every
// in-document update and on storage signals for the quote slot.
type Badge struct {
	store   Store
	events  *notify.Bus
	globals *bridge.Globals
	logger  *zap.Logger

	mu          sync.Mutex
	items       quote.Collection
	reads       int
	unsubscribe []func()
	listeners   []func(quote.Collection)
}

// Mount reads the current selections and subscribes to changes.
func Mount(store Store, events *notify.Bus, globals *bridge.Globals, logger *zap.Logger) *Badge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Badge{
		store:   store,
		events:  events,
		globals: globals,
		logger:  logger,
	}
	b.reload()
	b.unsubscribe = []func(){
		events.Subscribe(quote.EventQuoteUpdated, func(notify.Event) { b.reload() }),
		events.Subscribe(notify.EventStorage, func(ev notify.Event) {
			if ev.Key == "" || ev.Key == quote.StorageKey {
				b.reload()
			}
		}),
	}
	return b
}

// Unmount stops listening.
func (b *Badge) Unmount() {
	for _, fn := range b.unsubscribe {
		fn()
	}
	b.unsubscribe = nil
}

// Count is the number shown on the badge.
func (b *Badge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items is the list shown when the badge is opened.
func (b *Badge) Items() quote.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items
}

// Reads reports how many times the badge has read the store.
func (b *Badge) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

// OnChange registers fn to run with the new list after every reload.
// Listeners are expected to live as long as the badge.
func (b *Badge) OnChange(fn func(quote.Collection)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Remove drops one selection, through the bridge when one is mounted.
func (b *Badge) Remove(id string) {
	if bridge.Remove(b.globals, id) {
		b.reload()
		return
	}
	next, _ := b.read().Without(id)
	b.write(next)
}

// Clear empties the cart, through the bridge when one is mounted.
func (b *Badge) Clear() {
	if bridge.Clear(b.globals) {
		b.reload()
		return
	}
	b.write(quote.Collection{})
}

// write persists next directly and tells other listeners, for documents with
// no bridge mounted.
func (b *Badge) write(next quote.Collection) {
	raw, err := quote.Encode(next)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = b.store.Set(ctx, quote.StorageKey, raw)
		cancel()
	}
	if err != nil {
		b.logger.Warn("Badge failed to persist selections", zap.Error(err))
	}
	b.events.Dispatch(notify.Event{Name: quote.EventQuoteUpdated})
	b.set(next)
}

func (b *Badge) read() quote.Collection {
	b.mu.Lock()
	b.reads++
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, ok, err := b.store.Get(ctx, quote.StorageKey)
	if err != nil || !ok {
		return quote.Collection{}
	}
	return quote.Decode(raw)
}

func (b *Badge) reload() {
	b.set(b.read())
}

func (b *Badge) set(items quote.Collection) {
	b.mu.Lock()
	b.items = items
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(items)
	}
}
