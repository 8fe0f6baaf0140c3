package document

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

// Registry tracks the open documents of every visitor, keyed by visitor and
// tab id.
type Registry struct {
	backend storage.Backend
	logger  *zap.Logger
	opts    []Option

	mu   sync.Mutex
	docs map[string]map[string]*Document
}

// NewRegistry creates a registry opening documents over backend with opts.
func NewRegistry(backend storage.Backend, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		backend: backend,
		logger:  logger,
		opts:    opts,
		docs:    make(map[string]map[string]*Document),
	}
}

// Get returns the document for visitor/tab, opening it on first use.
func (r *Registry) Get(visitor, tab string) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.docs[visitor][tab]; ok {
		return d, nil
	}
	opts := append([]Option{WithID(tab), WithLogger(r.logger)}, r.opts...)
	d, err := Open(r.backend, visitor, opts...)
	if err != nil {
		return nil, err
	}
	if r.docs[visitor] == nil {
		r.docs[visitor] = make(map[string]*Document)
	}
	r.docs[visitor][tab] = d
	return d, nil
}

// Close closes one document. It reports whether the document was open.
func (r *Registry) Close(visitor, tab string) bool {
	r.mu.Lock()
	d, ok := r.docs[visitor][tab]
	if ok {
		r.forget(visitor, tab)
	}
	r.mu.Unlock()

	if ok {
		d.Close()
	}
	return ok
}

func (r *Registry) forget(visitor, tab string) {
	delete(r.docs[visitor], tab)
	if len(r.docs[visitor]) == 0 {
		delete(r.docs, visitor)
	}
}

// Len reports how many documents are open.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, tabs := range r.docs {
		n += len(tabs)
	}
	return n
}

// Sweep closes documents idle for longer than maxIdle and returns how many.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var stale []*Document

	r.mu.Lock()
	for visitor, tabs := range r.docs {
		for tab, d := range tabs {
			if d.LastActive().Before(cutoff) {
				stale = append(stale, d)
				r.forget(visitor, tab)
			}
		}
	}
	r.mu.Unlock()

	for _, d := range stale {
		d.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("Closed idle documents", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run sweeps idle documents every interval until ctx is done, then closes
// everything.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep(maxIdle)
		}
	}
}

// CloseAll closes every open document.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Document
	for _, tabs := range r.docs {
		for _, d := range tabs {
			all = append(all, d)
		}
	}
	r.docs = make(map[string]map[string]*Document)
	r.mu.Unlock()

	for _, d := range all {
		d.Close()
	}
}
