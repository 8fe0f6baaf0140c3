// Package middleware holds the HTTP middleware of the quote API.
package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Headers identifying the caller's visitor partition and tab.
const (
	VisitorHeader = "X-Visitor-ID"
	TabHeader     = "X-Tab-ID"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Identity is the visitor and tab a request acts for.
type Identity struct {
	Visitor string
	Tab     string
}

type identityKey struct{}

// Visitor resolves the caller's identity from the request headers. Missing
// or malformed ids are replaced with fresh ones; the ids in use are echoed
// in the response headers so the caller can keep them.
func Visitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			Visitor: headerID(r, VisitorHeader),
			Tab:     headerID(r, TabHeader),
		}
		w.Header().Set(VisitorHeader, id.Visitor)
		w.Header().Set(TabHeader, id.Tab)
		next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), id)))
	})
}

func headerID(r *http.Request, name string) string {
	if v := r.Header.Get(name); idPattern.MatchString(v) {
		return v
	}
	return uuid.NewString()
}

// WithVisitor stores id in ctx.
func WithVisitor(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// VisitorFromContext returns the identity set by Visitor.
func VisitorFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
