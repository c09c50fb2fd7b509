package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/unclebandit/lead-ingest/internal/config"
	"github.com/unclebandit/lead-ingest/internal/notify"
	"github.com/unclebandit/lead-ingest/internal/queue"
	"github.com/unclebandit/lead-ingest/internal/storage"
)

func TestFallbacksWithoutCloudConfig(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{LocalStorageDir: t.TempDir(), QueueMaxRetries: 2}
	logger := zaptest.NewLogger(t)

	s, err := OpenStorage(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStore{}, s)

	n, err := openNotifier(ctx, cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.LogNotifier{}, n)

	q, closeQueue, err := NewQueue(cfg, logger)
	require.NoError(t, err)
	defer closeQueue()
	mem, ok := q.(*queue.InMemoryQueue)
	require.True(t, ok)
	assert.Equal(t, 2, mem.MaxRetries)
}
