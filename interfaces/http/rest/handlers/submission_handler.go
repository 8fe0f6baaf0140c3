package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/domain/quote"
)

// Publisher forwards accepted submissions.
type Publisher interface {
	PublishSubmitted(ctx context.Context, ev quote.Submitted) error
}

// SubmissionRecorder counts submission outcomes.
type SubmissionRecorder interface {
	SubmissionHandled(accepted bool)
}

// SubmissionHandler accepts quote requests from the quote form.
type SubmissionHandler struct {
	publisher Publisher
	recorder  SubmissionRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubmissionHandler creates a submission handler. recorder may be nil.
func NewSubmissionHandler(publisher Publisher, recorder SubmissionRecorder, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	OK       bool          `json:"ok"`
	Received quote.Receipt `json:"received"`
}

type submitError struct {
	Error string `json:"error"`
}

// Submit handles POST /api/submit-quote
//
// The body may be any JSON value. A null body is invalid; any other
// non-object body simply lacks the required fields. A field counts as
// present when it is truthy: a non-empty string, a non-zero number, true,
// or any object or array.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(r.Body)
	if err != nil || body == nil {
		h.reject(w, "Invalid request")
		return
	}
	fields, _ := body.(map[string]any)

	// Reported one at a time, in form order.
	for _, name := range []string{"name", "phone", "email"} {
		if !truthy(fields[name]) {
			h.reject(w, name+" is required")
			return
		}
	}

	services := quote.Collection{}
	if v := fields["selectedServices"]; truthy(v) {
		if raw, err := json.Marshal(v); err == nil {
			services = quote.Decode(string(raw))
		}
	}
	sub := quote.Submission{
		Name:             text(fields["name"]),
		Phone:            text(fields["phone"]),
		Email:            text(fields["email"]),
		EventDate:        text(fields["eventDate"]),
		EventLocation:    text(fields["eventLocation"]),
		Notes:            text(fields["notes"]),
		SelectedServices: services,
	}

	ev := quote.NewSubmitted(uuid.NewString(), sub, h.now())
	if err := h.publisher.PublishSubmitted(r.Context(), ev); err != nil {
		h.logger.Error("Failed to publish quote submission",
			zap.String("id", ev.ID),
			zap.Error(err),
		)
	}
	if h.recorder != nil {
		h.recorder.SubmissionHandled(true)
	}
	respondJSON(w, http.StatusOK, SubmitResponse{OK: true, Received: sub.Receipt()}, h.logger)
}

// decodeBody reads exactly one JSON value.
func decodeBody(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// text renders a field for the receipt. Strings are kept, other values are
// written as JSON.
func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func (h *SubmissionHandler) reject(w http.ResponseWriter, message string) {
	if h.recorder != nil {
		h.recorder.SubmissionHandled(false)
	}
	respondJSON(w, http.StatusBadRequest, submitError{Error: message}, h.logger)
}
