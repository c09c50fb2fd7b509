package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/lead-ingest/internal/config"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "STORE_DRIVER", "LEAD_QUEUE", "QUEUE_MAX_RETRIES", "CACHE_TTL", "FILE_CONCURRENCY"} {
		t.Setenv(k, "")
	}
	t.Setenv("DB_USER", "leads")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_NAME", "ingest")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://leads:secret@db:5433/ingest?sslmode=disable", cfg.DatabaseURL)
	assert.Equal(t, config.DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "lead_uploads", cfg.LeadQueue)
	assert.Equal(t, 3, cfg.QueueMaxRetries)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.FileConcurrency)
}

func TestOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("FILE_CONCURRENCY", "2")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, config.DriverMongo, cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 2, cfg.FileConcurrency)
}

func TestInvalidValuesNameTheKey(t *testing.T) {
	tests := map[string]string{
		"QUEUE_MAX_RETRIES": "three",
		"CACHE_TTL":         "soon",
		"FILE_CONCURRENCY":  "0",
		"STORE_DRIVER":      "sqlite",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := config.FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}
