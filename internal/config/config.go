package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration of the user-facing service.
type Config struct {
	Server    ServerConfig
	Collector CollectorClientConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Logging   LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address string `envconfig:"SERVER_ADDR" default:":3000"`
}

// CollectorClientConfig holds the settings used when reporting spans to the collector.
type CollectorClientConfig struct {
	BaseURL      string        `envconfig:"COLLECTOR_URL" default:"http://localhost:5001"`
	Timeout      time.Duration `envconfig:"COLLECTOR_TIMEOUT" default:"5s"`
	MaxRetries   int           `envconfig:"COLLECTOR_MAX_RETRIES" default:"0"`
	RetryWaitMin time.Duration `envconfig:"COLLECTOR_RETRY_WAIT_MIN" default:"100ms"`
	RetryWaitMax time.Duration `envconfig:"COLLECTOR_RETRY_WAIT_MAX" default:"2s"`
}

// PipelineConfig holds the simulated work durations of the signup pipeline.
type PipelineConfig struct {
	ServiceName          string        `envconfig:"SERVICE_NAME" default:"user-service"`
	CreateUserDuration   time.Duration `envconfig:"CREATE_USER_DURATION" default:"500ms"`
	DatabaseDuration     time.Duration `envconfig:"DATABASE_INSERT_DURATION" default:"500ms"`
	ConfirmationDuration time.Duration `envconfig:"SEND_CONFIRMATION_DURATION" default:"700ms"`
	Nested               bool          `envconfig:"PIPELINE_NESTED" default:"true"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// CollectorConfig holds the configuration of the reference collector.
type CollectorConfig struct {
	Address     string        `envconfig:"COLLECTOR_ADDR" default:":5001"`
	ServiceName string        `envconfig:"COLLECTOR_SERVICE_NAME" default:"tracing-service"`
	OrphanAfter time.Duration `envconfig:"COLLECTOR_ORPHAN_AFTER" default:"5m"`
	SweepEvery  time.Duration `envconfig:"COLLECTOR_SWEEP_INTERVAL" default:"30s"`

	// ClosedSpanTTL is how long a stopped span can still be named as a parent or stopped again.
	ClosedSpanTTL       time.Duration `envconfig:"COLLECTOR_CLOSED_SPAN_TTL" default:"10m"`
	ClosedSpanCacheSize int64         `envconfig:"COLLECTOR_CLOSED_SPAN_CACHE_SIZE" default:"100000"`

	OTLP    OTLPConfig
	Sink    ElasticsearchSinkConfig
	Logging LogConfig
}

// OTLPConfig holds the OTLP gRPC export target. An empty endpoint disables export.
type OTLPConfig struct {
	Endpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	Insecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
}

// ElasticsearchSinkConfig holds the closed-span sink settings. No addresses disables the sink.
type ElasticsearchSinkConfig struct {
	Addresses     []string      `envconfig:"ELASTICSEARCH_ADDRESSES"`
	IndexName     string        `envconfig:"ELASTICSEARCH_SPAN_INDEX" default:"span_index"`
	FlushSize     int           `envconfig:"ELASTICSEARCH_FLUSH_SIZE" default:"30"`
	FlushInterval time.Duration `envconfig:"ELASTICSEARCH_FLUSH_INTERVAL" default:"5s"`
	FlushTimeout  time.Duration `envconfig:"ELASTICSEARCH_FLUSH_TIMEOUT" default:"10s"`
}

// LoadClientConfig holds the settings of the load generator.
type LoadClientConfig struct {
	TargetURL string        `envconfig:"LOAD_TARGET_URL" default:"http://localhost:3000/test-trace"`
	Users     int           `envconfig:"LOAD_USERS" default:"5"`
	Duration  time.Duration `envconfig:"LOAD_DURATION" default:"1m"`
	Timeout   time.Duration `envconfig:"LOAD_REQUEST_TIMEOUT" default:"10s"`
	Logging   LogConfig
}

// Load loads the user-facing service configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadCollector loads the reference collector configuration from environment variables.
func LoadCollector() (*CollectorConfig, error) {
	var cfg CollectorConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load collector config: %w", err)
	}
	return &cfg, nil
}

// LoadLoadClient loads the load generator configuration from environment variables.
func LoadLoadClient() (*LoadClientConfig, error) {
	var cfg LoadClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load load client config: %w", err)
	}
	return &cfg, nil
}
