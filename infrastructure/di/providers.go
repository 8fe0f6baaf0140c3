package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/suryansh-business-work/party-wings-website/application/document"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/config"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/messaging/eventbridge"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
	"github.com/suryansh-business-work/party-wings-website/interfaces/http/rest"
	"github.com/suryansh-business-work/party-wings-website/interfaces/http/rest/handlers"
	apperrors "github.com/suryansh-business-work/party-wings-website/pkg/errors"
	"github.com/suryansh-business-work/party-wings-website/pkg/observability"
)

const metricsNamespace = "partywings"

// ProvideLogLevel creates the adjustable level shared by the logger and the
// config watcher.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	return zap.ParseAtomicLevel(cfg.Logging.Level)
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = level
	return zcfg.Build(zap.Fields(zap.String("environment", string(cfg.Environment))))
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWS.Region),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// NewStorageBackend opens the persisted store selected by cfg.Driver.
// dynamo is only used by the dynamodb driver.
func NewStorageBackend(cfg config.Storage, dynamo storage.DynamoAPI, logger *zap.Logger) (storage.Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return storage.NewMemoryBackend(), nil
	case config.DriverFile:
		b, err := storage.NewFileBackend(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverSQLite:
		b, err := storage.OpenSQLite(cfg.Path, cfg.PollInterval, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.DriverDynamoDB:
		if dynamo == nil {
			return nil, fmt.Errorf("dynamodb driver requires a client")
		}
		return storage.NewDynamoBackend(dynamo, cfg.TableName, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ProvideStorageBackend opens the configured backend and closes it on cleanup.
func ProvideStorageBackend(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (storage.Backend, func(), error) {
	backend, err := NewStorageBackend(cfg.Storage, client, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Storage backend ready", zap.String("driver", cfg.Storage.Driver))
	return backend, func() {
		if err := backend.Close(); err != nil {
			logger.Warn("Failed to close storage backend", zap.Error(err))
		}
	}, nil
}

// ProvideMetrics creates the Prometheus collector, or nil when metrics are off.
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Features.Metrics {
		return nil
	}
	return observability.NewCollector(metricsNamespace)
}

// ProvideTracer initializes tracing. Spans are flushed on cleanup.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Features.Tracing,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	return tp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}, nil
}

// ProvideRegistry creates the registry of open visitor tabs.
func ProvideRegistry(backend storage.Backend, metrics *observability.Collector, logger *zap.Logger) (*document.Registry, func()) {
	var opts []document.Option
	if metrics != nil {
		opts = append(opts, document.WithObserver(metrics))
	}
	registry := document.NewRegistry(backend, logger, opts...)
	if metrics != nil {
		metrics.TrackDocuments(metricsNamespace, registry.Len)
	}
	return registry, registry.CloseAll
}

// ProvidePublisher forwards submissions to EventBridge when a bus is
// configured and logs them otherwise.
func ProvidePublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) handlers.Publisher {
	if cfg.Submission.EventBusName == "" {
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.Submission.EventBusName, cfg.Submission.Source, logger)
}

// ProvideErrorHandler creates the JSON error renderer.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *apperrors.ErrorHandler {
	return apperrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter builds the HTTP handler.
func ProvideRouter(
	cfg *config.Config,
	registry *document.Registry,
	publisher handlers.Publisher,
	metrics *observability.Collector,
	tracer *observability.TracerProvider,
	errs *apperrors.ErrorHandler,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(rest.Config{
		EnableCORS:      cfg.Features.CORS,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		CORSMaxAge:      cfg.CORS.MaxAge,
		MaxRequestBytes: cfg.Server.MaxRequestBytes,
	}, registry, publisher, metrics, tracer, errs, logger).Setup()
}
