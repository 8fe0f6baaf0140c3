// Package document models one open page of a visitor: its own event bus and
// globals, its view of the visitor's persisted storage, and the quote provider
// tree (synchronizer plus bridge) mounted on it.
package document

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/badge"
	"github.com/suryansh-business-work/party-wings-website/application/bridge"
	"github.com/suryansh-business-work/party-wings-website/application/notify"
	"github.com/suryansh-business-work/party-wings-website/application/quotesync"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

// Option configures a Document.
type Option func(*options)

type options struct {
	id       string
	logger   *zap.Logger
	observer quotesync.Observer
}

// WithID fixes the document id instead of generating one.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver forwards synchronizer activity to o.
func WithObserver(o quotesync.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// Document is one page context. All of its state is touched only from its
// loop goroutine; the exported methods hop onto the loop.
type Document struct {
	ID      string
	Visitor string
	Events  *notify.Bus
	Globals *bridge.Globals
	Storage *storage.Area

	loop    *Loop
	logger  *zap.Logger
	sync    *quotesync.Synchronizer
	mount   *bridge.Mount
	unwatch func()

	closeOnce  sync.Once
	lastActive atomic.Int64
}

// Open creates a document for visitor over backend and mounts the quote
// provider tree on it.
func Open(backend storage.Backend, visitor string, opts ...Option) (*Document, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}

	d := &Document{
		ID:      o.id,
		Visitor: visitor,
		Events:  notify.NewBus(),
		Globals: bridge.NewGlobals(),
		Storage: storage.NewArea(backend, visitor, o.id),
		loop:    NewLoop(),
		logger:  o.logger.With(zap.String("visitor", visitor), zap.String("document", o.id)),
	}
	d.touch()

	syncOpts := []quotesync.Option{quotesync.WithLogger(d.logger)}
	if o.observer != nil {
		syncOpts = append(syncOpts, quotesync.WithObserver(o.observer))
	}

	err := d.loop.Do(func() {
		d.sync = quotesync.New(d.Storage, d.Events, syncOpts...)
		d.sync.Initialize()
		d.mount = bridge.Publish(d.Globals, d.sync)
		// Storage writes from other documents arrive on their goroutines and
		// are queued as separate tasks here.
		d.unwatch = d.Storage.Watch(func(ev storage.ChangeEvent) {
			d.loop.Post(func() {
				d.Events.Dispatch(notify.Event{Name: notify.EventStorage, Key: ev.Key})
			})
		})
	})
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Document opened")
	return d, nil
}

// Do runs fn on the document's loop.
func (d *Document) Do(fn func(d *Document)) error {
	d.touch()
	return d.loop.Do(func() { fn(d) })
}

// Add calls addToQuote on the document's globals.
func (d *Document) Add(sel quote.Selection) (quote.Collection, error) {
	return d.callBridge(func(g *bridge.Globals) { bridge.Add(g, sel) })
}

// Remove calls removeFromQuote on the document's globals.
func (d *Document) Remove(id string) (quote.Collection, error) {
	return d.callBridge(func(g *bridge.Globals) { bridge.Remove(g, id) })
}

// Clear calls clearQuote on the document's globals.
func (d *Document) Clear() (quote.Collection, error) {
	return d.callBridge(func(g *bridge.Globals) { bridge.Clear(g) })
}

// Quote calls getQuote on the document's globals.
func (d *Document) Quote() (quote.Collection, error) {
	return d.callBridge(func(*bridge.Globals) {})
}

func (d *Document) callBridge(fn func(g *bridge.Globals)) (quote.Collection, error) {
	var items quote.Collection
	err := d.Do(func(d *Document) {
		fn(d.Globals)
		items, _ = bridge.Get(d.Globals)
		items = items.Clone()
	})
	return items, err
}

// Watch mounts a badge on the document and calls fn with the selections on
// mount and after every change. fn runs on the document loop and must not
// block. The returned func unmounts the badge.
func (d *Document) Watch(fn func(quote.Collection)) (func(), error) {
	var b *badge.Badge
	err := d.Do(func(d *Document) {
		b = badge.Mount(d.Storage, d.Events, d.Globals, d.logger)
		b.OnChange(func(items quote.Collection) { fn(items.Clone()) })
		fn(b.Items().Clone())
	})
	if err != nil {
		return nil, err
	}
	return func() {
		_ = d.Do(func(*Document) { b.Unmount() })
	}, nil
}

// LastActive reports when the document last handled a call.
func (d *Document) LastActive() time.Time {
	return time.Unix(0, d.lastActive.Load())
}

func (d *Document) touch() {
	d.lastActive.Store(time.Now().UnixNano())
}

// Close unmounts the provider tree and stops the loop. The bridge entry
// points are retracted before the loop exits.
func (d *Document) Close() {
	d.closeOnce.Do(func() {
		_ = d.loop.Do(func() {
			if d.unwatch != nil {
				d.unwatch()
			}
			d.mount.Unmount()
			d.sync.Close()
		})
		d.loop.Close()
		d.logger.Debug("Document closed")
	})
}
