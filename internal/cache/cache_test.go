package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/unclebandit/lead-ingest/internal/cache"
	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
)

// fakeConn is an in-memory redis.Conn understanding GET, SETEX and DEL.
type fakeConn struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]int
	down bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{data: map[string][]byte{}, ttl: map[string]int{}}
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmd == "" {
		return nil, nil
	}
	if c.down {
		return nil, errors.New("connection refused")
	}
	switch cmd {
	case "GET":
		v, ok := c.data[args[0].(string)]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "SETEX":
		key := args[0].(string)
		c.ttl[key] = args[1].(int)
		c.data[key] = args[2].([]byte)
		return "OK", nil
	case "DEL":
		n := int64(0)
		for _, a := range args {
			if _, ok := c.data[a.(string)]; ok {
				delete(c.data, a.(string))
				n++
			}
		}
		return n, nil
	}
	return nil, errors.New("unsupported command " + cmd)
}

func (c *fakeConn) Send(string, ...interface{}) error { return nil }
func (c *fakeConn) Flush() error                       { return nil }
func (c *fakeConn) Receive() (interface{}, error)      { return nil, nil }

type MockSource struct {
	mu       sync.Mutex
	cols     map[string][]string
	mappings map[string][]model.FieldMapping
	calls    int
}

func (m *MockSource) GetUniqueColumns(ctx context.Context, id string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cols, ok := m.cols[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return cols, nil
}

func (m *MockSource) GetFieldMapping(ctx context.Context, id string) ([]model.FieldMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.mappings[id], nil
}

func setup(t *testing.T) (*cache.CampaignCache, *fakeConn, *MockSource) {
	conn := newFakeConn()
	pool := &redis.Pool{Dial: func() (redis.Conn, error) { return conn, nil }}
	t.Cleanup(func() { pool.Close() })
	src := &MockSource{
		cols:     map[string][]string{"c1": {"email"}},
		mappings: map[string][]model.FieldMapping{"c1": {{CampaignID: "c1", ReadableField: "Email", InternalField: "email"}}},
	}
	return cache.NewCampaignCache(src, pool, time.Minute, zaptest.NewLogger(t)), conn, src
}

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	c, conn, src := setup(t)

	for i := 0; i < 3; i++ {
		cols, err := c.GetUniqueColumns(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"email"}, cols)

		fm, err := c.GetFieldMapping(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, fm, 1)
		assert.Equal(t, "email", fm[0].InternalField)
	}
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 60, conn.ttl["campaign:c1:uniqueCols"])

	require.NoError(t, c.Invalidate(ctx, "c1"))
	_, err := c.GetUniqueColumns(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestMissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	c, conn, _ := setup(t)

	_, err := c.GetUniqueColumns(ctx, "nope")
	var nf *appErrors.ErrCampaignNotFound
	assert.True(t, errors.As(err, &nf))

	fm, err := c.GetFieldMapping(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Empty(t, conn.data)
}

func TestRedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	c, conn, src := setup(t)
	conn.down = true

	cols, err := c.GetUniqueColumns(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, cols)
	_, err = c.GetUniqueColumns(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}
