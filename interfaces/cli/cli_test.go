package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := RootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestQuotectl_FileStore(t *testing.T) {
	dir := t.TempDir()
	store := []string{"--driver", "file", "--dir", dir, "--visitor", "v1"}

	out, err := run(t, append([]string{"add", "dj", "--title", "DJ Night", "--price", "₹15,000"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Added dj (1 in quote)")

	out, err = run(t, append([]string{"add", "dj"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "dj already in quote")

	out, err = run(t, append([]string{"add", "cake", "--category", "Bakery"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "(2 in quote)")

	out, err = run(t, append([]string{"list"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "DJ Night")
	assert.Contains(t, out, "Bakery")
	assert.Contains(t, out, "2 in quote")

	out, err = run(t, append([]string{"remove", "ghost"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "ghost not in quote")

	out, err = run(t, append([]string{"remove", "dj"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed dj (1 in quote)")

	out, err = run(t, append([]string{"clear"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Quote cleared")

	out, err = run(t, append([]string{"list"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "No services selected yet.")
}

func TestQuotectl_VisitorsAreIsolated(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "add", "dj", "--dir", dir, "--driver", "file", "--visitor", "a")
	require.NoError(t, err)

	out, err := run(t, "list", "--dir", dir, "--driver", "file", "--visitor", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "No services selected yet.")
}

func TestQuotectl_SQLiteStore(t *testing.T) {
	db := t.TempDir() + "/quotes.db"
	_, err := run(t, "add", "dj", "--driver", "sqlite", "--db", db)
	require.NoError(t, err)

	out, err := run(t, "list", "--driver", "sqlite", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 in quote")
}

func TestQuotectl_UnsupportedDriver(t *testing.T) {
	_, err := run(t, "list", "--driver", "dynamodb")
	assert.ErrorContains(t, err, "unsupported driver")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestQuotectl_WatchSeesOtherWriters(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	root := RootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"watch", "--driver", "file", "--dir", dir})
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "No services selected yet.")
	}, 2*time.Second, 10*time.Millisecond)

	_, err := run(t, "add", "dj", "--title", "DJ Night", "--driver", "file", "--dir", dir)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "DJ Night")
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestQuotectl_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == nil || body["email"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"email is required"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":       true,
			"received": map[string]any{"name": body["name"], "services": body["selectedServices"]},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	store := []string{"--driver", "file", "--dir", dir, "--server", srv.URL}
	_, err := run(t, "add", "dj", "--driver", "file", "--dir", dir)
	require.NoError(t, err)

	_, err = run(t, append([]string{"submit", "--name", "Asha", "--phone", "9876543210"}, store...)...)
	assert.EqualError(t, err, "email is required")

	out, err := run(t, "list", "--driver", "file", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 in quote", "rejected submission keeps the quote")

	out, err = run(t, append([]string{"submit", "--name", "Asha", "--phone", "9876543210", "--email", "a@b.c"}, store...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Quote request sent!")
	assert.Contains(t, out, "1 services sent for Asha")

	out, err = run(t, "list", "--driver", "file", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No services selected yet.")
}
