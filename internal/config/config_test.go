package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Falls back to defaults", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":3000", cfg.Server.Address)
		assert.Equal(t, "http://localhost:5001", cfg.Collector.BaseURL)
		assert.Equal(t, 5*time.Second, cfg.Collector.Timeout)
		assert.Equal(t, 0, cfg.Collector.MaxRetries)
		assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.CreateUserDuration)
		assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.DatabaseDuration)
		assert.Equal(t, 700*time.Millisecond, cfg.Pipeline.ConfirmationDuration)
		assert.True(t, cfg.Pipeline.Nested)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("Reads overrides from the environment", func(t *testing.T) {
		t.Setenv("COLLECTOR_URL", "http://collector:5001")
		t.Setenv("COLLECTOR_MAX_RETRIES", "3")
		t.Setenv("SEND_CONFIRMATION_DURATION", "1s")
		t.Setenv("PIPELINE_NESTED", "false")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "http://collector:5001", cfg.Collector.BaseURL)
		assert.Equal(t, 3, cfg.Collector.MaxRetries)
		assert.Equal(t, time.Second, cfg.Pipeline.ConfirmationDuration)
		assert.False(t, cfg.Pipeline.Nested)
	})

	t.Run("Rejects a malformed duration", func(t *testing.T) {
		t.Setenv("COLLECTOR_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadCollector(t *testing.T) {
	t.Run("Disables export and the sink by default", func(t *testing.T) {
		cfg, err := LoadCollector()
		require.NoError(t, err)

		assert.Equal(t, ":5001", cfg.Address)
		assert.Equal(t, 5*time.Minute, cfg.OrphanAfter)
		assert.Empty(t, cfg.OTLP.Endpoint)
		assert.Empty(t, cfg.Sink.Addresses)
		assert.Equal(t, "span_index", cfg.Sink.IndexName)
		assert.Equal(t, 10*time.Minute, cfg.ClosedSpanTTL)
		assert.Equal(t, int64(100000), cfg.ClosedSpanCacheSize)
	})

	t.Run("Keeps the flush period apart from the flush timeout", func(t *testing.T) {
		cfg, err := LoadCollector()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.Sink.FlushInterval)
		assert.Equal(t, 10*time.Second, cfg.Sink.FlushTimeout)

		t.Setenv("ELASTICSEARCH_FLUSH_INTERVAL", "1s")
		t.Setenv("ELASTICSEARCH_FLUSH_TIMEOUT", "3s")
		cfg, err = LoadCollector()
		require.NoError(t, err)
		assert.Equal(t, time.Second, cfg.Sink.FlushInterval)
		assert.Equal(t, 3*time.Second, cfg.Sink.FlushTimeout)
	})

	t.Run("Splits Elasticsearch addresses", func(t *testing.T) {
		t.Setenv("ELASTICSEARCH_ADDRESSES", "http://es-1:9200,http://es-2:9200")
		cfg, err := LoadCollector()
		require.NoError(t, err)
		assert.Equal(t, []string{"http://es-1:9200", "http://es-2:9200"}, cfg.Sink.Addresses)
	})
}

func TestLoadLoadClient(t *testing.T) {
	t.Run("Targets the local boundary service by default", func(t *testing.T) {
		cfg, err := LoadLoadClient()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000/test-trace", cfg.TargetURL)
		assert.Equal(t, 5, cfg.Users)
		assert.Equal(t, time.Minute, cfg.Duration)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("Reads the log level like the other binaries", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "debug")
		cfg, err := LoadLoadClient()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}
