package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	fileExt       = ".json"
	tempPrefix    = ".tmp-"
	removedMarker = "\x00removed"
)

// FileBackend stores each slot as a file in one directory. Writes by other
// processes sharing the directory are picked up with fsnotify and reported as
// changes with an empty Source.
type FileBackend struct {
	dir    string
	logger *zap.Logger

	mu      sync.Mutex
	written map[string]string // last content this process wrote, per key
	closed  bool

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	changes fanout
}

// NewFileBackend opens (creating if needed) dir and starts watching it.
func NewFileBackend(dir string, logger *zap.Logger) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch storage directory: %w", err)
	}

	b := &FileBackend{
		dir:     dir,
		logger:  logger,
		written: make(map[string]string),
		watcher: w,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go b.watchLoop()

	logger.Info("File storage opened", zap.String("dir", dir))
	return b, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, url.PathEscape(key)+fileExt)
}

func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return key, true
}

// Get implements Backend.
func (b *FileBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read slot %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements Backend. The file is replaced atomically.
func (b *FileBackend) Set(ctx context.Context, key, value, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrUnavailable
	}
	old, _, _ := b.Get(ctx, key)
	if err := b.writeAtomic(key, value); err != nil {
		b.mu.Unlock()
		return err
	}
	b.written[key] = value
	b.mu.Unlock()

	b.changes.publish(ChangeEvent{Key: key, OldValue: old, NewValue: value, Source: source})
	return nil
}

func (b *FileBackend) writeAtomic(key, value string) error {
	tmp, err := os.CreateTemp(b.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp slot file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write slot %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close slot %q: %w", key, err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace slot %q: %w", key, err)
	}
	return nil
}

// Remove implements Backend.
func (b *FileBackend) Remove(ctx context.Context, key, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrUnavailable
	}
	old, existed, _ := b.Get(ctx, key)
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		b.mu.Unlock()
		return fmt.Errorf("remove slot %q: %w", key, err)
	}
	b.written[key] = removedMarker
	b.mu.Unlock()

	if existed {
		b.changes.publish(ChangeEvent{Key: key, OldValue: old, Removed: true, Source: source})
	}
	return nil
}

// Subscribe implements Backend.
func (b *FileBackend) Subscribe(fn func(ChangeEvent)) func() {
	return b.changes.subscribe(fn)
}

// Close stops the watcher. Further writes fail with ErrUnavailable.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
	return nil
}

// watchLoop turns directory events into external change events.
func (b *FileBackend) watchLoop() {
	defer close(b.doneCh)
	defer b.watcher.Close()

	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			key, ok := keyFromPath(event.Name)
			if !ok {
				continue
			}
			b.handleExternal(key)

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Error("File watcher error", zap.Error(err))

		case <-b.stopCh:
			return
		}
	}
}

func (b *FileBackend) handleExternal(key string) {
	value, exists, err := b.Get(context.Background(), key)
	if err != nil {
		b.logger.Warn("Failed to read changed slot", zap.String("key", key), zap.Error(err))
		return
	}
	current := value
	if !exists {
		current = removedMarker
	}

	b.mu.Lock()
	if b.written[key] == current {
		// Echo of our own write.
		b.mu.Unlock()
		return
	}
	b.written[key] = current
	b.mu.Unlock()

	b.logger.Debug("Slot changed externally", zap.String("key", key), zap.Bool("removed", !exists))
	b.changes.publish(ChangeEvent{Key: key, NewValue: value, Removed: !exists})
}
