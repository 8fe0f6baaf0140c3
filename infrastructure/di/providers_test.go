package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/suryansh-business-work/party-wings-website/infrastructure/config"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/messaging/eventbridge"
	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

func TestNewStorageBackend(t *testing.T) {
	logger := zap.NewNop()

	b, err := NewStorageBackend(config.Storage{Driver: config.DriverMemory}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryBackend{}, b)

	b, err = NewStorageBackend(config.Storage{Driver: config.DriverFile, Dir: t.TempDir()}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.FileBackend{}, b)
	require.NoError(t, b.Close())

	_, err = NewStorageBackend(config.Storage{Driver: config.DriverDynamoDB, TableName: "t"}, nil, logger)
	assert.Error(t, err)

	_, err = NewStorageBackend(config.Storage{Driver: "redis"}, nil, logger)
	assert.Error(t, err)
}

func TestProvideLogger_UsesAtomicLevel(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Logging.Level = "warn"

	level, err := ProvideLogLevel(cfg)
	require.NoError(t, err)
	logger, err := ProvideLogger(cfg, level)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	c := &Container{Logger: logger, LogLevel: level}
	next := config.Default(config.Development)
	next.Logging.Level = "debug"
	c.ApplyConfig(next)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestProvidePublisher(t *testing.T) {
	cfg := config.Default(config.Development)
	assert.IsType(t, &eventbridge.LogPublisher{}, ProvidePublisher(cfg, nil, zap.NewNop()))

	cfg.Submission.EventBusName = "quotes"
	assert.IsType(t, &eventbridge.Publisher{}, ProvidePublisher(cfg, nil, zap.NewNop()))
}

func TestProvideRegistry_TracksDocuments(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Features.Metrics = true
	metrics := ProvideMetrics(cfg)
	require.NotNil(t, metrics)

	registry, cleanup := ProvideRegistry(storage.NewMemoryBackend(), metrics, zap.NewNop())
	defer cleanup()
	_, err := registry.Get("v1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())

	cfg.Features.Metrics = false
	assert.Nil(t, ProvideMetrics(cfg))
}
