// Package di wires the quote service together.
package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/suryansh-business-work/party-wings-website/application/document"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/config"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
	"github.com/suryansh-business-work/party-wings-website/interfaces/http/rest/handlers"
	"github.com/suryansh-business-work/party-wings-website/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	LogLevel  zap.AtomicLevel
	Backend   storage.Backend
	Registry  *document.Registry
	Metrics   *observability.Collector
	Tracer    *observability.TracerProvider
	Publisher handlers.Publisher
	Router    http.Handler
}

// ApplyConfig applies the settings that can change without a restart.
func (c *Container) ApplyConfig(cfg *config.Config) {
	if err := c.LogLevel.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		c.Logger.Warn("Ignoring invalid log level", zap.String("level", cfg.Logging.Level))
		return
	}
	c.Logger.Info("Log level updated", zap.String("level", cfg.Logging.Level))
}
