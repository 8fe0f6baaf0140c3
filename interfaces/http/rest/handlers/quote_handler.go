package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/document"
	"github.com/suryansh-business-work/party-wings-website/domain/quote"
	"github.com/suryansh-business-work/party-wings-website/interfaces/http/rest/middleware"
	apperrors "github.com/suryansh-business-work/party-wings-website/pkg/errors"
)

const heartbeatInterval = 15 * time.Second

// Registry looks up the document backing a visitor tab.
type Registry interface {
	Get(visitor, tab string) (*document.Document, error)
	Close(visitor, tab string) bool
}

// QuoteHandler exposes a tab's quote through its bridge entry points.
type QuoteHandler struct {
	registry  Registry
	errors    *apperrors.ErrorHandler
	validate  *validator.Validate
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(registry Registry, errs *apperrors.ErrorHandler, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		registry:  registry,
		errors:    errs,
		validate:  validator.New(),
		logger:    logger,
		heartbeat: heartbeatInterval,
	}
}

// AddItemRequest is the body of POST /items.
type AddItemRequest struct {
	ID          string `json:"id" validate:"required,max=200"`
	Title       string `json:"title,omitempty" validate:"max=500"`
	Category    string `json:"category,omitempty"`
	Price       string `json:"price,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

// QuoteResponse is the current quote of a tab.
type QuoteResponse struct {
	Items quote.Collection `json:"items"`
	Count int              `json:"count"`
}

func newQuoteResponse(items quote.Collection) QuoteResponse {
	if items == nil {
		items = quote.Collection{}
	}
	return QuoteResponse{Items: items, Count: len(items)}
}

// GetQuote handles GET /
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(d *document.Document) (quote.Collection, error) {
		return d.Quote()
	})
}

// AddItem handles POST /items
func (h *QuoteHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("Invalid request body").WithCause(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.errors.Handle(w, r, apperrors.NewValidationError("Validation error: "+err.Error()))
		return
	}
	sel := quote.Selection{
		ID:          req.ID,
		Title:       req.Title,
		Category:    req.Category,
		Price:       req.Price,
		Description: req.Description,
		Image:       req.Image,
	}
	h.apply(w, r, func(d *document.Document) (quote.Collection, error) {
		return d.Add(sel)
	})
}

// RemoveItem handles DELETE /items/{itemID}
func (h *QuoteHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	h.apply(w, r, func(d *document.Document) (quote.Collection, error) {
		return d.Remove(id)
	})
}

// ClearQuote handles DELETE /
func (h *QuoteHandler) ClearQuote(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, func(d *document.Document) (quote.Collection, error) {
		return d.Clear()
	})
}

// CloseTab handles DELETE /tab
func (h *QuoteHandler) CloseTab(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.VisitorFromContext(r.Context())
	if !h.registry.Close(id.Visitor, id.Tab) {
		h.errors.Handle(w, r, apperrors.NewNotFoundError("tab"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Events handles GET /events. It streams the tab's quote as Server-Sent
// Events: one snapshot on connect and one per change, from any tab or
// process sharing the visitor's storage.
func (h *QuoteHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errors.Handle(w, r, apperrors.NewInternalError("streaming unsupported"))
		return
	}
	doc, err := h.document(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	// Only the latest snapshot matters; a slow client skips intermediate ones.
	updates := make(chan quote.Collection, 1)
	unwatch, err := doc.Watch(func(items quote.Collection) {
		select {
		case <-updates:
		default:
		}
		updates <- items
	})
	if err != nil {
		h.errors.Handle(w, r, mapDocumentError(err))
		return
	}
	defer unwatch()

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case items := <-updates:
			data, err := json.Marshal(newQuoteResponse(items))
			if err != nil {
				h.logger.Error("Failed to encode quote event", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", quote.EventQuoteUpdated, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			// Keeps the tab from being swept while a client listens.
			if err := doc.Do(func(*document.Document) {}); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *QuoteHandler) apply(w http.ResponseWriter, r *http.Request, fn func(d *document.Document) (quote.Collection, error)) {
	doc, err := h.document(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	items, err := fn(doc)
	if err != nil {
		h.errors.Handle(w, r, mapDocumentError(err))
		return
	}
	respondJSON(w, http.StatusOK, newQuoteResponse(items), h.logger)
}

func (h *QuoteHandler) document(r *http.Request) (*document.Document, error) {
	id, ok := middleware.VisitorFromContext(r.Context())
	if !ok {
		return nil, apperrors.NewValidationError("missing visitor identity")
	}
	doc, err := h.registry.Get(id.Visitor, id.Tab)
	if err != nil {
		return nil, apperrors.Wrap(mapDocumentError(err), "failed to open tab")
	}
	return doc, nil
}

func mapDocumentError(err error) error {
	if errors.Is(err, document.ErrClosed) {
		return apperrors.NewUnavailableError("tab").WithCause(err)
	}
	return err
}

func respondJSON(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}
