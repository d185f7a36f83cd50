package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulkops/internal/domain"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Provider)
	assert.True(t, cfg.DurableDispatch())
	assert.Equal(t, 50, cfg.InitializeItemsBatchSize)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.PollTimeout)
	assert.Equal(t, StorePostgres, cfg.Idempotency.Store)
	assert.Equal(t, "bulkopsclient", cfg.Catalog.ServiceClient)
	assert.Equal(t, "bulkopsclient", cfg.Search.ServiceClient)
	assert.Equal(t, []string{"localhost:9092"}, cfg.GetKafkaBrokers())
	assert.Nil(t, cfg.OAuth2.Scopes)
	assert.Equal(t, "bulkops.process", cfg.Topics()[domain.MessageTypeProcess])
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("BULKOPS_PROVIDER", "NONE")
	t.Setenv("INITIALIZE_ITEMS_BATCH_SIZE", "200")
	t.Setenv("IDEMPOTENCY_STORE", "redis")
	t.Setenv("KAFKA_BROKER_URL", "k1:9092, k2:9092")
	t.Setenv("OAUTH2_SCOPES", "catalog search")
	t.Setenv("CATALOG_RATE_LIMIT", "12.5")
	t.Setenv("BULKOPS_DB_SSLMODE", "require")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.DurableDispatch())
	assert.False(t, cfg.NeedsDatabase())
	assert.Equal(t, 200, cfg.InitializeItemsBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.GetKafkaBrokers())
	assert.Equal(t, []string{"catalog search"}, cfg.OAuth2.Scopes)
	assert.Equal(t, 12.5, cfg.Catalog.RateLimit)
	assert.Contains(t, cfg.GetDBMigrationConnectionString(), "sslmode=require")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero batch size", "INITIALIZE_ITEMS_BATCH_SIZE", "0"},
		{"negative batch size", "INITIALIZE_ITEMS_BATCH_SIZE", "-5"},
		{"non numeric batch size", "INITIALIZE_ITEMS_BATCH_SIZE", "fifty"},
		{"bad duration", "OUTBOX_POLL_INTERVAL", "soon"},
		{"unknown store", "IDEMPOTENCY_STORE", "memcached"},
		{"negative rate limit", "SEARCH_RATE_LIMIT", "-1"},
		{"no brokers", "KAFKA_BROKER_URL", " , "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
