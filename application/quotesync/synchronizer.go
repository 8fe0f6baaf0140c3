// Package quotesync keeps a document's quote selections in memory, mirrored
// into the persisted store and kept consistent with other documents.
package quotesync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/notify"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

// Store is the persisted slot access a Synchronizer needs. *storage.Area
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Observer receives synchronizer activity, typically for metrics.
type Observer interface {
	MutationApplied(op string)
	PersistFailed(op string)
	NotificationSuppressed()
	Refreshed(source string)
}

type nopObserver struct{}

func (nopObserver) MutationApplied(string) {}
func (nopObserver) PersistFailed(string) {}
func (nopObserver) NotificationSuppressed() {}
func (nopObserver) Refreshed(string) {}

// Refresh sources reported to the Observer.
const (
	SourceInitial  = "initial"
	SourceDocument = "document"
	SourceStorage  = "storage"
)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) { s.logger = logger }
}

// WithObserver sets the activity observer.
func WithObserver(o Observer) Option {
	return func(s *Synchronizer) { s.observer = o }
}

// WithKey overrides the storage slot. Defaults to quote.StorageKey.
func WithKey(key string) Option {
	return func(s *Synchronizer) { s.key = key }
}

// WithTimeout bounds each store call. Defaults to five seconds.
func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.timeout = d }
}

// Synchronizer owns the authoritative selection collection of one document.
//
// It is not safe for concurrent use: like the document it belongs to, all
// calls must come from one goroutine at a time.
type Synchronizer struct {
	store    Store
	events   *notify.Bus
	logger   *zap.Logger
	observer Observer
	key      string
	timeout  time.Duration

	initialized  bool
	items        quote.Collection
	lastOriginID string
	reads        int

	unsubscribe []func()

	listenersMu sync.Mutex
	nextID      int
	listeners   map[int]func(quote.Collection)
}

// New creates a Synchronizer over store that notifies through events.
func New(store Store, events *notify.Bus, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:     store,
		events:    events,
		logger:    zap.NewNop(),
		observer:  nopObserver{},
		key:       quote.StorageKey,
		timeout:   5 * time.Second,
		items:     quote.Collection{},
		listeners: make(map[int]func(quote.Collection)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads the persisted collection and starts listening for changes.
// A missing or unreadable slot yields an empty collection. Calling it again is
// a no-op.
func (s *Synchronizer) Initialize() {
	if s.initialized {
		return
	}
	s.initialized = true
	s.items = s.read(SourceInitial)

	s.unsubscribe = append(s.unsubscribe,
		s.events.Subscribe(quote.EventQuoteUpdated, s.onQuoteUpdated),
		s.events.Subscribe(notify.EventStorage, s.onStorage),
	)
	s.logger.Debug("Quote synchronizer initialized", zap.Int("items", len(s.items)))
}

// Close stops listening. The in-memory collection stays readable.
func (s *Synchronizer) Close() {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil
	s.initialized = false
}

// Items returns the current collection. Callers must not modify it; every
// change replaces the collection with a new slice.
func (s *Synchronizer) Items() quote.Collection {
	return s.items
}

// Reads reports how many times the persisted slot has been read.
func (s *Synchronizer) Reads() int {
	return s.reads
}

// LastOriginID returns the tag of the most recent write by this synchronizer.
func (s *Synchronizer) LastOriginID() string {
	return s.lastOriginID
}

// Add appends sel unless it has no id or its id is already present.
func (s *Synchronizer) Add(sel quote.Selection) {
	next, changed := s.items.With(sel)
	if !changed {
		return
	}
	s.commit("add", next)
}

// Remove drops the selection with the given id. Unknown ids are ignored.
func (s *Synchronizer) Remove(id string) {
	next, changed := s.items.Without(id)
	if !changed {
		return
	}
	s.commit("remove", next)
}

// Clear empties the collection.
func (s *Synchronizer) Clear() {
	s.commit("clear", quote.Collection{})
}

// OnChange registers fn to run after every change of the collection, whether
// made here or picked up from another writer.
func (s *Synchronizer) OnChange(fn func(quote.Collection)) (unsubscribe func()) {
	s.listenersMu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// commit replaces the collection, persists it and broadcasts the change.
func (s *Synchronizer) commit(op string, next quote.Collection) {
	s.items = next
	s.observer.MutationApplied(op)
	s.persist(op)

	s.lastOriginID = notify.NewOriginID()
	s.changed()
	s.events.Dispatch(notify.Event{
		Name:     quote.EventQuoteUpdated,
		OriginID: s.lastOriginID,
		Items:    s.items,
	})
}

// persist writes the full collection. Failures leave memory authoritative.
func (s *Synchronizer) persist(op string) {
	raw, err := quote.Encode(s.items)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err = s.store.Set(ctx, s.key, raw)
		cancel()
	}
	if err != nil {
		s.observer.PersistFailed(op)
		s.logger.Warn("Failed to persist quote selections",
			zap.String("operation", op),
			zap.Int("items", len(s.items)),
			zap.Error(err),
		)
	}
}

func (s *Synchronizer) read(source string) quote.Collection {
	s.reads++
	s.observer.Refreshed(source)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.logger.Warn("Failed to read quote selections", zap.Error(err))
		return quote.Collection{}
	}
	if !ok {
		return quote.Collection{}
	}
	return quote.Decode(raw)
}

func (s *Synchronizer) refresh(source string) {
	s.items = s.read(source)
	s.changed()
}

func (s *Synchronizer) onQuoteUpdated(ev notify.Event) {
	if ev.OriginID != "" && ev.OriginID == s.lastOriginID {
		s.observer.NotificationSuppressed()
		return
	}
	s.refresh(SourceDocument)
}

func (s *Synchronizer) onStorage(ev notify.Event) {
	if ev.Key != "" && ev.Key != s.key {
		return
	}
	s.refresh(SourceStorage)
}

func (s *Synchronizer) changed() {
	s.listenersMu.Lock()
	fns := make([]func(quote.Collection), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(s.items)
	}
}
