// Package authapi talks to the vendor OTP authentication service.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/infrastructure/config"
	"github.com/suryansh-business-work/party-wings-website/pkg/breaker"
	apperrors "github.com/suryansh-business-work/party-wings-website/pkg/errors"
)

const (
	LocalHost      = "http://localhost:4001"
	ProductionHost = "https://partywings.exyconn.com"

	RoleVendor = "vendor"
)

// ErrRejected is returned when the service answers with a non-success
// envelope. The envelope's message is appended.
var ErrRejected = errors.New("auth request rejected")

// HostFor picks the auth service base URL for the page hostname.
func HostFor(hostname string) string {
	switch strings.ToLower(strings.TrimSpace(hostname)) {
	case "localhost", "127.0.0.1":
		return LocalHost
	default:
		return ProductionHost
	}
}

// BaseURL resolves the auth service URL of cfg: an explicit base_url wins,
// otherwise the host is picked from the hostname.
func BaseURL(cfg config.AuthAPI) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return HostFor(cfg.Hostname)
}

// Envelope is the response shape of every auth endpoint.
type Envelope struct {
	Status     string   `json:"status"`
	StatusCode int      `json:"statusCode,omitempty"`
	Message    string   `json:"message"`
	Data       *Session `json:"data,omitempty"`
}

// OK reports whether the service accepted the request.
func (e *Envelope) OK() bool {
	return e.Status == "success" || e.StatusCode == http.StatusOK
}

// SignupRequest asks for a signup OTP.
type SignupRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,len=10,numeric"`
	Role  string `json:"role"`
}

type loginRequest struct {
	Phone string `json:"phone" validate:"required,len=10,numeric"`
}

type verifyRequest struct {
	Phone string `json:"phone" validate:"required,len=10,numeric"`
	OTP   string `json:"otp" validate:"required"`
}

// Client calls the auth service through a circuit breaker.
type Client struct {
	baseURL  string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	validate *validator.Validate
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(cl *Client) { cl.cb = cb }
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		validate: validator.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cb == nil {
		c.cb = breaker.New(breaker.DefaultConfig("authapi"), logger)
	}
	return c
}

// NewClientFromConfig creates a client for the auth_api config section.
func NewClientFromConfig(cfg config.AuthAPI, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout > 0 {
		opts = append([]Option{WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}, opts...)
	}
	return NewClient(BaseURL(cfg), logger, opts...)
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string { return c.baseURL }

// Signup requests a signup OTP. Role defaults to vendor.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*Envelope, error) {
	if req.Role == "" {
		req.Role = RoleVendor
	}
	return c.call(ctx, "/auth/signup", req, "Failed to request OTP")
}

// Login requests a login OTP for phone.
func (c *Client) Login(ctx context.Context, phone string) (*Envelope, error) {
	return c.call(ctx, "/auth/login", loginRequest{Phone: phone}, "Failed to request OTP")
}

// VerifyOTP exchanges an OTP for a session.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (*Envelope, error) {
	env, err := c.call(ctx, "/auth/verify-otp", verifyRequest{Phone: phone, OTP: otp}, "OTP verification failed")
	if err != nil {
		return env, err
	}
	if env.Data == nil {
		return env, fmt.Errorf("%w: OTP verification failed", ErrRejected)
	}
	return env, nil
}

func (c *Client) call(ctx context.Context, path string, body any, fallback string) (*Envelope, error) {
	if err := c.validate.Struct(body); err != nil {
		return nil, apperrors.NewValidationError("invalid request").
			WithDetails(fieldErrors(err)).
			WithCause(err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := breaker.Do(c.cb, c.http, req)
	if err != nil {
		c.logger.Warn("Auth request failed", zap.String("path", path), zap.Error(err))
		if breaker.IsOpen(err) {
			return nil, apperrors.NewUnavailableError("authapi").WithCause(err)
		}
		return nil, apperrors.NewExternalError("authapi", fmt.Errorf("%s: %w", path, err)).
			WithCode("AUTH_UNREACHABLE")
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperrors.NewExternalError("authapi", fmt.Errorf("%s: decode response: %w", path, err)).
			WithCode("AUTH_BAD_RESPONSE")
	}
	if !env.OK() {
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		c.logger.Info("Auth request rejected",
			zap.String("path", path),
			zap.Int("http_status", resp.StatusCode),
			zap.String("message", msg),
		)
		return &env, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return &env, nil
}

// fieldErrors maps each invalid request field to the rule it broke.
func fieldErrors(err error) map[string]interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return out
}
