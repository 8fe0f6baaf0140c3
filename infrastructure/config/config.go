// Package config loads the quote service configuration from defaults, YAML
// files and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	Environment Environment `yaml:"environment" env:"ENVIRONMENT" validate:"oneof=development staging production"`

	Server     Server     `yaml:"server" envPrefix:"SERVER_"`
	Storage    Storage    `yaml:"storage" envPrefix:"STORAGE_"`
	Documents  Documents  `yaml:"documents" envPrefix:"DOCUMENTS_"`
	AuthAPI    AuthAPI    `yaml:"auth_api" envPrefix:"AUTH_API_"`
	Submission Submission `yaml:"submission" envPrefix:"SUBMISSION_"`
	AWS        AWS        `yaml:"aws" envPrefix:"AWS_"`
	Logging    Logging    `yaml:"logging" envPrefix:"LOG_"`
	CORS       CORS       `yaml:"cors" envPrefix:"CORS_"`
	Features   Features   `yaml:"features" envPrefix:"ENABLE_"`
	Tracing    Tracing    `yaml:"tracing" envPrefix:"TRACING_"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Server configures the HTTP listener.
type Server struct {
	Address         string        `yaml:"address" env:"ADDRESS" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxRequestBytes int64         `yaml:"max_request_bytes" env:"MAX_REQUEST_BYTES" validate:"gt=0"`
}

// Storage selects and configures the persisted store.
type Storage struct {
	Driver       string        `yaml:"driver" env:"DRIVER" validate:"oneof=memory file sqlite dynamodb"`
	Dir          string        `yaml:"dir" env:"DIR" validate:"required_if=Driver file"`
	Path         string        `yaml:"path" env:"PATH" validate:"required_if=Driver sqlite"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	TableName    string        `yaml:"table_name" env:"TABLE_NAME" validate:"required_if=Driver dynamodb"`
}

// Documents bounds the open visitor tabs kept by the server.
type Documents struct {
	MaxIdle       time.Duration `yaml:"max_idle" env:"MAX_IDLE" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" validate:"gt=0"`
}

// AuthAPI configures the vendor OTP auth collaborator.
type AuthAPI struct {
	// BaseURL overrides the host picked from Hostname.
	BaseURL  string        `yaml:"base_url" env:"BASE_URL" validate:"omitempty,url"`
	Hostname string        `yaml:"hostname" env:"HOSTNAME"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Submission configures where accepted quote requests are forwarded.
type Submission struct {
	EventBusName string `yaml:"event_bus_name" env:"EVENT_BUS_NAME"`
	Source       string `yaml:"source" env:"SOURCE"`
}

// AWS holds shared AWS settings.
type AWS struct {
	Region string `yaml:"region" env:"REGION"`
}

// Logging configures zap.
type Logging struct {
	Level string `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
}

// CORS configures cross-origin access for the browser frontend.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxAge         int      `yaml:"max_age" env:"MAX_AGE"`
}

// Features are on/off switches.
type Features struct {
	Metrics bool `yaml:"metrics" env:"METRICS"`
	Tracing bool `yaml:"tracing" env:"TRACING"`
	CORS    bool `yaml:"cors" env:"CORS"`
}

// Tracing configures the OTLP exporter.
type Tracing struct {
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate  float64 `yaml:"sample_rate" env:"SAMPLE_RATE" validate:"gte=0,lte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Features.Tracing && c.Tracing.Endpoint == "" {
		return fmt.Errorf("invalid configuration: tracing enabled without endpoint")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// Default returns the built-in configuration for env.
func Default(env Environment) *Config {
	return &Config{
		Environment: env,
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBytes: 1 << 20,
		},
		Storage: Storage{
			Driver:       DriverMemory,
			Dir:          "./data/slots",
			Path:         "./data/partywings.db",
			PollInterval: time.Second,
			TableName:    "partywings-slots",
		},
		Documents: Documents{
			MaxIdle:       30 * time.Minute,
			SweepInterval: time.Minute,
		},
		AuthAPI: AuthAPI{
			Hostname: "localhost",
			Timeout:  10 * time.Second,
		},
		Submission: Submission{
			Source: "partywings.quotes",
		},
		AWS: AWS{
			Region: "ap-south-1",
		},
		Logging: Logging{
			Level: "info",
		},
		CORS: CORS{
			AllowedOrigins: []string{"http://localhost:4321", "https://partywings.exyconn.com"},
			MaxAge:         300,
		},
		Features: Features{
			CORS: true,
		},
		Tracing: Tracing{
			ServiceName: "partywings-quote",
			SampleRate:  0.1,
		},
	}
}
