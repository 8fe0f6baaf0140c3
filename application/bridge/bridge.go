// Package bridge publishes the quote cart operations on a document's globals
// so code outside the provider tree can reach the mounted synchronizer.
package bridge

import (
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

// Entry point names.
const (
	AddToQuote      = "addToQuote"
	RemoveFromQuote = "removeFromQuote"
	ClearQuote      = "clearQuote"
	GetQuote        = "getQuote"
)

// Entry point signatures.
type (
	AddFunc    func(quote.Selection)
	RemoveFunc func(id string)
	ClearFunc  func()
	GetFunc    func() quote.Collection
)

// Target is what the bridge dispatches to. *quotesync.Synchronizer satisfies it.
type Target interface {
	Add(sel quote.Selection)
	Remove(id string)
	Clear()
	Items() quote.Collection
}

// Mount is one live publication of the entry points.
type Mount struct {
	globals *Globals
	tokens  map[string]Token
}

// Publish registers the four entry points on g, all dispatching to target.
// A later Publish on the same globals takes over every entry point.
func Publish(g *Globals, target Target) *Mount {
	m := &Mount{globals: g, tokens: make(map[string]Token, 4)}
	m.tokens[AddToQuote] = g.Set(AddToQuote, AddFunc(target.Add))
	m.tokens[RemoveFromQuote] = g.Set(RemoveFromQuote, RemoveFunc(target.Remove))
	m.tokens[ClearQuote] = g.Set(ClearQuote, ClearFunc(target.Clear))
	m.tokens[GetQuote] = g.Set(GetQuote, GetFunc(target.Items))
	return m
}

// Unmount retracts the entry points this mount still owns. Entry points
// taken over by a later mount are left in place.
func (m *Mount) Unmount() {
	for name, token := range m.tokens {
		m.globals.Delete(name, token)
	}
	m.tokens = nil
}

// Add calls the published addToQuote. It reports false when none is mounted.
func Add(g *Globals, sel quote.Selection) bool {
	fn, ok := lookup[AddFunc](g, AddToQuote)
	if ok {
		fn(sel)
	}
	return ok
}

// Remove calls the published removeFromQuote.
func Remove(g *Globals, id string) bool {
	fn, ok := lookup[RemoveFunc](g, RemoveFromQuote)
	if ok {
		fn(id)
	}
	return ok
}

// Clear calls the published clearQuote.
func Clear(g *Globals) bool {
	fn, ok := lookup[ClearFunc](g, ClearQuote)
	if ok {
		fn()
	}
	return ok
}

// Get calls the published getQuote.
func Get(g *Globals) (quote.Collection, bool) {
	fn, ok := lookup[GetFunc](g, GetQuote)
	if !ok {
		return nil, false
	}
	return fn(), true
}

func lookup[F any](g *Globals, name string) (F, bool) {
	var zero F
	v, ok := g.Lookup(name)
	if !ok {
		return zero, false
	}
	fn, ok := v.(F)
	return fn, ok
}
