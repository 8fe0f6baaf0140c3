// Package rest exposes the quote bridge and the quote submission endpoint
// over HTTP.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/interfaces/http/rest/handlers"
	"github.com/suryansh-business-work/party-wings-website/interfaces/http/rest/middleware"
	apperrors "github.com/suryansh-business-work/party-wings-website/pkg/errors"
	"github.com/suryansh-business-work/party-wings-website/pkg/observability"
)

// Config holds the router settings taken from the application config.
type Config struct {
	EnableCORS      bool
	AllowedOrigins  []string
	CORSMaxAge      int
	MaxRequestBytes int64
}

// Router creates and configures the HTTP router
type Router struct {
	cfg       Config
	registry  handlers.Registry
	publisher handlers.Publisher
	metrics   *observability.Collector
	tracer    *observability.TracerProvider
	errors    *apperrors.ErrorHandler
	logger    *zap.Logger
}

// NewRouter creates a new router instance. metrics and tracer may be nil.
func NewRouter(
	cfg Config,
	registry handlers.Registry,
	publisher handlers.Publisher,
	metrics *observability.Collector,
	tracer *observability.TracerProvider,
	errs *apperrors.ErrorHandler,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		registry:  registry,
		publisher: publisher,
		metrics:   metrics,
		tracer:    tracer,
		errors:    errs,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.tracer != nil {
		router.Use(rt.tracer.Middleware)
	}
	if rt.metrics != nil {
		router.Use(rt.metrics.Middleware)
	}
	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", middleware.VisitorHeader, middleware.TabHeader},
			ExposedHeaders: []string{"X-Request-ID", middleware.VisitorHeader, middleware.TabHeader},
			MaxAge:         rt.cfg.CORSMaxAge,
		}))
	}
	if rt.cfg.MaxRequestBytes > 0 {
		router.Use(chimiddleware.RequestSize(rt.cfg.MaxRequestBytes))
	}

	router.Get("/health", healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	var recorder handlers.SubmissionRecorder
	if rt.metrics != nil {
		recorder = rt.metrics
	}
	router.Post("/api/submit-quote", handlers.NewSubmissionHandler(rt.publisher, recorder, rt.logger).Submit)

	router.Route("/api/v1/quote", func(r chi.Router) {
		r.Use(middleware.Visitor)

		h := handlers.NewQuoteHandler(rt.registry, rt.errors, rt.logger)
		r.Get("/", h.GetQuote)
		r.Delete("/", h.ClearQuote)
		r.Post("/items", h.AddItem)
		r.Delete("/items/{itemID}", h.RemoveItem)
		r.Get("/events", h.Events)
		r.Delete("/tab", h.CloseTab)
	})

	return router
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.registry == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
