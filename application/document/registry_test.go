package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/domain/quote"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

func TestRegistry_GetReusesDocuments(t *testing.T) {
	r := NewRegistry(storage.NewMemoryBackend(), zap.NewNop())
	defer r.CloseAll()

	a, err := r.Get("visitor", "tab-1")
	require.NoError(t, err)
	b, err := r.Get("visitor", "tab-1")
	require.NoError(t, err)
	c, err := r.Get("visitor", "tab-2")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "tab-1", a.ID)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ClosePersistsForNextTab(t *testing.T) {
	r := NewRegistry(storage.NewMemoryBackend(), zap.NewNop())
	defer r.CloseAll()

	d, _ := r.Get("visitor", "tab-1")
	_, _ = d.Add(quote.Selection{ID: "a"})

	assert.True(t, r.Close("visitor", "tab-1"))
	assert.False(t, r.Close("visitor", "tab-1"))
	assert.Zero(t, r.Len())

	reopened, err := r.Get("visitor", "tab-9")
	require.NoError(t, err)
	items, _ := reopened.Quote()
	assert.Equal(t, []string{"a"}, items.IDs())
}

func TestRegistry_SweepClosesIdle(t *testing.T) {
	r := NewRegistry(storage.NewMemoryBackend(), zap.NewNop())
	defer r.CloseAll()
	idle, _ := r.Get("visitor", "idle")
	idle.lastActive.Store(time.Now().Add(-time.Hour).UnixNano())
	_, _ = r.Get("visitor", "busy")

	closed := r.Sweep(10 * time.Minute)

	assert.Equal(t, 1, closed)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, idle.Globals.Names())
}

func TestRegistry_RunClosesOnCancel(t *testing.T) {
	r := NewRegistry(storage.NewMemoryBackend(), zap.NewNop())
	_, _ = r.Get("visitor", "tab")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.Run(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("registry did not stop")
	}
	assert.Zero(t, r.Len())
}
