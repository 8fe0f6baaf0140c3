package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps slots in process memory. It is the default for tests
// and single-instance development servers.
type MemoryBackend struct {
	mu     sync.RWMutex
	slots  map[string]string
	closed bool

	// MaxValueBytes rejects larger writes with ErrQuotaExceeded when positive.
	MaxValueBytes int

	failWrites error
	changes    fanout
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string]string)}
}

// FailWrites makes every subsequent write return err; nil restores writes.
func (m *MemoryBackend) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrUnavailable
	}
	v, ok := m.slots[key]
	return v, ok, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(ctx context.Context, key, value, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.writable(); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.MaxValueBytes > 0 && len(value) > m.MaxValueBytes {
		m.mu.Unlock()
		return ErrQuotaExceeded
	}
	old := m.slots[key]
	m.slots[key] = value
	m.mu.Unlock()

	m.changes.publish(ChangeEvent{Key: key, OldValue: old, NewValue: value, Source: source})
	return nil
}

// SetRaw writes a slot as an external writer would, with no source. Used to
// simulate another process or a hand-edited store.
func (m *MemoryBackend) SetRaw(key, value string) {
	_ = m.Set(context.Background(), key, value, "")
}

// Remove implements Backend.
func (m *MemoryBackend) Remove(ctx context.Context, key, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if err := m.writable(); err != nil {
		m.mu.Unlock()
		return err
	}
	old, ok := m.slots[key]
	delete(m.slots, key)
	m.mu.Unlock()

	if ok {
		m.changes.publish(ChangeEvent{Key: key, OldValue: old, Removed: true, Source: source})
	}
	return nil
}

func (m *MemoryBackend) writable() error {
	if m.closed {
		return ErrUnavailable
	}
	return m.failWrites
}

// Subscribe implements Backend.
func (m *MemoryBackend) Subscribe(fn func(ChangeEvent)) func() {
	return m.changes.subscribe(fn)
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
