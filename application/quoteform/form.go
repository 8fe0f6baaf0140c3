// Package quoteform submits the visitor's selections as a quote request.
package quoteform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/domain/quote"
	"github.com/suryansh-business-work/party-wings-website/pkg/breaker"
)

// SubmitPath is where quote requests are posted.
const SubmitPath = "/api/submit-quote"

// Status messages shown to the visitor.
const (
	MessageSent    = "Quote request sent! We will contact you shortly."
	MessageFailed  = "Submission failed."
	MessageNetwork = "Network error."
)

// ErrNetwork wraps transport failures.
var ErrNetwork = errors.New(MessageNetwork)

// Cart is the quote the form reads from and clears after a successful send.
type Cart interface {
	Quote() (quote.Collection, error)
	Clear() (quote.Collection, error)
}

// Contact holds the form fields.
type Contact struct {
	Name          string
	Phone         string
	Email         string
	EventDate     string
	EventLocation string
	Notes         string
}

// RejectedError carries the server's reason for refusing a submission.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

type response struct {
	OK       bool          `json:"ok"`
	Error    string        `json:"error"`
	Received quote.Receipt `json:"received"`
}

// Form posts quote requests to a submission endpoint.
type Form struct {
	endpoint string
	cart     Cart
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// New creates a form posting to baseURL + SubmitPath.
func New(baseURL string, cart Cart, logger *zap.Logger) *Form {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Form{
		endpoint: strings.TrimRight(baseURL, "/") + SubmitPath,
		cart:     cart,
		http:     &http.Client{Timeout: 15 * time.Second},
		cb:       breaker.New(breaker.DefaultConfig("quoteform"), logger),
		logger:   logger,
	}
}

// Submit sends contact with the cart's current selections. The cart is
// cleared only when the server accepts the request.
func (f *Form) Submit(ctx context.Context, c Contact) (*quote.Receipt, error) {
	items, err := f.cart.Quote()
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(quote.Submission{
		Name:             c.Name,
		Phone:            c.Phone,
		Email:            c.Email,
		EventDate:        c.EventDate,
		EventLocation:    c.EventLocation,
		Notes:            c.Notes,
		SelectedServices: items,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := breaker.Do(f.cb, f.http, req)
	if err != nil {
		f.logger.Warn("Quote submission failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	var body response
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := body.Error
		if msg == "" {
			msg = MessageFailed
		}
		return nil, &RejectedError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, decodeErr)
	}

	if _, err := f.cart.Clear(); err != nil {
		f.logger.Warn("Failed to clear quote after submission", zap.Error(err))
	}
	return &body.Received, nil
}
