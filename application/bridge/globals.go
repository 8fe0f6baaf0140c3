package bridge

import (
	"sort"
	"sync"
)

// Token identifies one registration of a global entry point.
type Token uint64

type entry struct {
	token Token
	fn    any
}

// Globals is the shared global object of a document: a registry of named
// entry points reachable by code holding no other reference.
type Globals struct {
	mu      sync.RWMutex
	next    Token
	entries map[string]entry
}

// NewGlobals creates an empty registry.
func NewGlobals() *Globals {
	return &Globals{entries: make(map[string]entry)}
}

// Set publishes fn under name, replacing any previous registration.
func (g *Globals) Set(name string, fn any) Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	g.entries[name] = entry{token: g.next, fn: fn}
	return g.next
}

// Delete removes name if it is still the registration identified by token.
func (g *Globals) Delete(name string, token Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[name]
	if !ok || e.token != token {
		return false
	}
	delete(g.entries, name)
	return true
}

// Lookup returns the entry point published under name.
func (g *Globals) Lookup(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.entries[name]
	return e.fn, ok
}

// Names lists the published entry points, sorted.
func (g *Globals) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.entries))
	for name := range g.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
