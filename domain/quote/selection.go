// Package quote holds the service selections a visitor collects before
// requesting a quote, and the submission sent when they ask for one.
package quote

import (
	"encoding/json"
	"strings"
)

const (
	// StorageKey is the persisted slot holding the selection collection.
	StorageKey = "partywings_quote"

	// EventQuoteUpdated is dispatched in-document after every write of StorageKey.
	EventQuoteUpdated = "quoteUpdated"
)

// Selection is one service a visitor has tentatively added to their quote.
// Price is a display string; no arithmetic is done on it.
type Selection struct {
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Category    string `json:"category,omitempty"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Valid reports whether the selection can be stored. Records without an id
// are never persisted or broadcast.
func (s Selection) Valid() bool {
	return s.ID != ""
}

// Collection is an insertion-ordered list of selections, unique by id.
// Helpers never modify the receiver; a changed collection is always a new slice.
type Collection []Selection

// Contains reports whether a selection with the given id is present.
func (c Collection) Contains(id string) bool {
	return c.index(id) >= 0
}

func (c Collection) index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// With returns the collection with sel appended. The boolean is false, and the
// receiver is returned unchanged, when sel has no id or its id is already taken.
func (c Collection) With(sel Selection) (Collection, bool) {
	if !sel.Valid() || c.Contains(sel.ID) {
		return c, false
	}
	next := make(Collection, len(c), len(c)+1)
	copy(next, c)
	return append(next, sel), true
}

// Without returns the collection minus every selection with the given id.
func (c Collection) Without(id string) (Collection, bool) {
	if !c.Contains(id) {
		return c, false
	}
	next := make(Collection, 0, len(c))
	for _, sel := range c {
		if sel.ID != id {
			next = append(next, sel)
		}
	}
	return next, true
}

// IDs lists the selection ids in order.
func (c Collection) IDs() []string {
	ids := make([]string, len(c))
	for i, sel := range c {
		ids[i] = sel.ID
	}
	return ids
}

// Equal compares two collections field by field, order included.
func (c Collection) Equal(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy. A nil collection clones to an empty one.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// Encode serializes the collection as a JSON array. Nil encodes as "[]".
func Encode(c Collection) (string, error) {
	if c == nil {
		c = Collection{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a persisted value. Missing, malformed or non-array data yields
// an empty collection, and entries without a string id are dropped.
func Decode(raw string) Collection {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Collection{}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return Collection{}
	}
	out := make(Collection, 0, len(entries))
	for _, entry := range entries {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(entry, &probe); err != nil || probe == nil {
			continue
		}
		var id string
		if err := json.Unmarshal(probe["id"], &id); err != nil || id == "" {
			continue
		}
		var sel Selection
		// Non-string descriptive fields are dropped rather than failing the entry.
		for field, dst := range map[string]*string{
			"title":       &sel.Title,
			"category":    &sel.Category,
			"price":       &sel.Price,
			"description": &sel.Description,
			"image":       &sel.Image,
		} {
			if v, ok := probe[field]; ok {
				_ = json.Unmarshal(v, dst)
			}
		}
		sel.ID = id
		out = append(out, sel)
	}
	return out
}
