// Package notify is the in-document change notification channel.
//
// A Bus plays the role of a document's event target: listeners subscribe by
// event name and Dispatch runs every listener to completion, in subscription
// order, before returning.
package notify

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

// EventStorage is the cross-context signal raised when another document or
// process wrote a persisted slot. It never carries an origin id.
const EventStorage = "storage"

// Event is a notification delivered on a Bus.
type Event struct {
	Name string
	// OriginID tags in-document updates so the writer can recognise its own.
	OriginID string
	// Items optionally carries the collection as of the write.
	Items quote.Collection
	// Key is the storage slot for EventStorage; empty means every slot changed.
	Key string
}

// Listener handles one event.
type Listener func(Event)

type subscription struct {
	id      int
	fn      Listener
	removed atomic.Bool
}

// Bus is a synchronous publish/subscribe channel keyed by event name.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]*subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers fn for events named name. The returned func removes it
// and is safe to call more than once.
func (b *Bus) Subscribe(name string, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], &subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.id == id {
			s.removed.Store(true)
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Dispatch delivers ev to the listeners subscribed when Dispatch was called.
// A listener removed by an earlier listener of the same dispatch is skipped.
func (b *Bus) Dispatch(ev Event) {
	b.mu.RLock()
	list := slices.Clone(b.subs[ev.Name])
	b.mu.RUnlock()

	for _, s := range list {
		if s.removed.Load() {
			continue
		}
		s.fn(ev)
	}
}

// Listeners reports how many listeners are subscribed to name.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// NewOriginID returns a fresh tag for one write.
func NewOriginID() string {
	return uuid.NewString()
}
