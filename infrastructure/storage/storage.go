// Package storage provides the persisted key-value slots behind the quote cart.
//
// A Backend is shared by every document of a process (the equivalent of an
// origin's local storage). Documents see it through an Area, which scopes keys
// to one visitor partition and filters out change events caused by the
// document's own writes, so a document only hears about writes made elsewhere.
package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrUnavailable is returned by backends that are closed or disabled.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded is returned when a write would exceed a backend limit.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// ChangeEvent describes one write to a slot. Source is the id of the Area that
// wrote it, or empty when the write happened outside this process.
type ChangeEvent struct {
	Key      string
	OldValue string
	NewValue string
	Removed  bool
	Source   string
}

// Backend is a persisted key-value store with change fan-out.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value, source string) error
	Remove(ctx context.Context, key, source string) error
	// Subscribe registers fn for every change. The returned func unsubscribes.
	Subscribe(fn func(ChangeEvent)) (unsubscribe func())
	Close() error
}

// fanout delivers change events to subscribers. Delivery is synchronous in
// the writer's goroutine, in subscription order.
type fanout struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(ChangeEvent)
	order  []int
}

func (f *fanout) subscribe(fn func(ChangeEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(ChangeEvent))
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	f.order = append(f.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			for i, v := range f.order {
				if v == id {
					f.order = append(f.order[:i:i], f.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (f *fanout) publish(ev ChangeEvent) {
	f.mu.RLock()
	fns := make([]func(ChangeEvent), 0, len(f.order))
	for _, id := range f.order {
		fns = append(fns, f.subs[id])
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Area is one document's view of a visitor partition of a Backend.
type Area struct {
	backend   Backend
	partition string
	owner     string
}

// NewArea scopes backend to partition. owner identifies the document writing
// through this area; its own writes are never reported back to it.
func NewArea(backend Backend, partition, owner string) *Area {
	return &Area{backend: backend, partition: partition, owner: owner}
}

// Owner returns the id stamped on writes made through this area.
func (a *Area) Owner() string { return a.owner }

// Partition returns the visitor partition this area is scoped to.
func (a *Area) Partition() string { return a.partition }

func (a *Area) fullKey(key string) string {
	if a.partition == "" {
		return key
	}
	return a.partition + "/" + key
}

func (a *Area) localKey(full string) (string, bool) {
	if a.partition == "" {
		return full, true
	}
	prefix := a.partition + "/"
	if !strings.HasPrefix(full, prefix) {
		return "", false
	}
	return strings.TrimPrefix(full, prefix), true
}

// Get reads a slot. Missing slots report ok=false with no error.
func (a *Area) Get(ctx context.Context, key string) (string, bool, error) {
	return a.backend.Get(ctx, a.fullKey(key))
}

// Set writes a slot.
func (a *Area) Set(ctx context.Context, key, value string) error {
	return a.backend.Set(ctx, a.fullKey(key), value, a.owner)
}

// Remove deletes a slot.
func (a *Area) Remove(ctx context.Context, key string) error {
	return a.backend.Remove(ctx, a.fullKey(key), a.owner)
}

// Watch delivers changes to this partition made by anyone but this area.
// Event keys are reported without the partition prefix.
func (a *Area) Watch(fn func(ChangeEvent)) (unsubscribe func()) {
	return a.backend.Subscribe(func(ev ChangeEvent) {
		if ev.Source != "" && ev.Source == a.owner {
			return
		}
		key, ok := a.localKey(ev.Key)
		if !ok {
			return
		}
		ev.Key = key
		fn(ev)
	})
}
