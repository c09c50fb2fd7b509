// Package cache fronts campaign configuration lookups with redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"github.com/unclebandit/lead-ingest/internal/model"
)

// Source is the authoritative campaign configuration store.
type Source interface {
	GetUniqueColumns(ctx context.Context, campaignID string) ([]string, error)
	GetFieldMapping(ctx context.Context, campaignID string) ([]model.FieldMapping, error)
}

// CampaignCache is a read-through cache over a Source. Redis faults fall
// through to the source; errors from the source are never cached.
type CampaignCache struct {
	Source Source
	Pool   *redis.Pool
	TTL    time.Duration
	Logger *zap.Logger
}

func NewPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr) },
	}
}

func NewCampaignCache(src Source, pool *redis.Pool, ttl time.Duration, logger *zap.Logger) *CampaignCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignCache{Source: src, Pool: pool, TTL: ttl, Logger: logger}
}

func uniqueColsKey(id string) string { return fmt.Sprintf("campaign:%s:uniqueCols", id) }
func fieldsKey(id string) string     { return fmt.Sprintf("campaign:%s:fields", id) }

func (c *CampaignCache) GetUniqueColumns(ctx context.Context, campaignID string) ([]string, error) {
	var cols []string
	key := uniqueColsKey(campaignID)
	if c.get(ctx, key, &cols) {
		return cols, nil
	}
	cols, err := c.Source.GetUniqueColumns(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, cols)
	return cols, nil
}

func (c *CampaignCache) GetFieldMapping(ctx context.Context, campaignID string) ([]model.FieldMapping, error) {
	var mappings []model.FieldMapping
	key := fieldsKey(campaignID)
	if c.get(ctx, key, &mappings) {
		return mappings, nil
	}
	mappings, err := c.Source.GetFieldMapping(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if len(mappings) > 0 {
		c.set(ctx, key, mappings)
	}
	return mappings, nil
}

// Invalidate drops both cached entries for a campaign, after a reseed.
func (c *CampaignCache) Invalidate(ctx context.Context, campaignID string) error {
	conn, err := c.Pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("DEL", uniqueColsKey(campaignID), fieldsKey(campaignID))
	return err
}

func (c *CampaignCache) get(ctx context.Context, key string, dst any) bool {
	conn, err := c.Pool.GetContext(ctx)
	if err != nil {
		c.Logger.Warn("cache unavailable", zap.String("key", key), zap.Error(err))
		return false
	}
	defer conn.Close()

	b, err := redis.Bytes(conn.Do("GET", key))
	if err != nil {
		if !errors.Is(err, redis.ErrNil) {
			c.Logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		c.Logger.Warn("cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CampaignCache) set(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	conn, err := c.Pool.GetContext(ctx)
	if err != nil {
		return
	}
	defer conn.Close()
	if _, err := conn.Do("SETEX", key, int(c.TTL.Seconds()), b); err != nil {
		c.Logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
