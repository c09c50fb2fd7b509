// Package app wires configuration into the stores, storage, cache, notifier
// and queue shared by the server, worker and CLI.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/unclebandit/lead-ingest/internal/cache"
	"github.com/unclebandit/lead-ingest/internal/config"
	"github.com/unclebandit/lead-ingest/internal/db"
	"github.com/unclebandit/lead-ingest/internal/model"
	"github.com/unclebandit/lead-ingest/internal/notify"
	"github.com/unclebandit/lead-ingest/internal/queue"
	"github.com/unclebandit/lead-ingest/internal/reconcile"
	"github.com/unclebandit/lead-ingest/internal/repository"
	"github.com/unclebandit/lead-ingest/internal/repository/mongostore"
	"github.com/unclebandit/lead-ingest/internal/service"
	"github.com/unclebandit/lead-ingest/internal/storage"
)

type CampaignStore interface {
	service.CampaignSource
	SaveCampaign(ctx context.Context, c *model.Campaign, mappings []model.FieldMapping) error
}

type LeadStore interface {
	reconcile.LeadStore
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
}

type AuditStore interface {
	service.AuditLog
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.AdminAction, error)
}

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Campaigns CampaignStore
	Leads     LeadStore
	Audit     AuditStore
	Storage   storage.ObjectStore
	Notifier  notify.Notifier
	Cache     *cache.CampaignCache
	Ingestion *service.IngestionService

	sqlDB   *sql.DB
	mongo   *mongostore.Store
	closers []func() error
}

// New connects every backend the configuration names.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var err error
	if a.Storage, err = OpenStorage(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if gcs, ok := a.Storage.(*storage.GCSStore); ok {
		a.closers = append(a.closers, gcs.Close)
	}

	if a.Notifier, err = openNotifier(ctx, cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	var campaigns service.CampaignSource = a.Campaigns
	if cfg.RedisAddr != "" {
		pool := cache.NewPool(cfg.RedisAddr)
		a.closers = append(a.closers, pool.Close)
		a.Cache = cache.NewCampaignCache(a.Campaigns, pool, cfg.CacheTTL, logger)
		campaigns = a.Cache
	}

	a.Ingestion = service.NewIngestionService(campaigns, a.Leads, a.Storage, a.Audit, a.Notifier, logger)
	a.Ingestion.FileConcurrency = cfg.FileConcurrency
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	switch a.Config.StoreDriver {
	case config.DriverMongo:
		s, err := mongostore.Connect(ctx, a.Config.MongoURI, a.Config.MongoDatabase)
		if err != nil {
			return err
		}
		a.mongo = s
		a.closers = append(a.closers, func() error { return s.Close(context.Background()) })
		a.Campaigns, a.Leads, a.Audit = s, s, s
	default:
		conn, err := db.Open(ctx, a.Config.DatabaseURL)
		if err != nil {
			return err
		}
		a.sqlDB = conn
		a.closers = append(a.closers, conn.Close)
		a.Campaigns = &repository.CampaignRepository{DB: conn}
		a.Leads = &repository.LeadRepository{DB: conn}
		a.Audit = &repository.AdminActionRepository{DB: conn}
	}
	a.Logger.Info("connected to store", zap.String("driver", a.Config.StoreDriver))
	return nil
}

// OpenStorage returns GCS when a bucket is configured, otherwise the local store.
func OpenStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.GCSBucket != "" {
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := storage.NewLocalStore(cfg.LocalStorageDir)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openNotifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (notify.Notifier, error) {
	if cfg.FCMProjectID == "" {
		return &notify.LogNotifier{Logger: logger}, nil
	}
	var opts []option.ClientOption
	if cfg.FCMCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FCMCredentialsFile))
	}
	n, err := notify.NewFCMNotifier(ctx, cfg.FCMProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Migrate applies the Postgres schema or creates the Mongo indexes.
func (a *App) Migrate(ctx context.Context) error {
	if a.mongo != nil {
		return a.mongo.EnsureIndexes(ctx)
	}
	return db.Migrate(ctx, a.sqlDB)
}

// SaveCampaign stores a campaign and drops any cached copy of its configuration.
func (a *App) SaveCampaign(ctx context.Context, c *model.Campaign, mappings []model.FieldMapping) error {
	if err := a.Campaigns.SaveCampaign(ctx, c, mappings); err != nil {
		return err
	}
	if a.Cache != nil {
		if err := a.Cache.Invalidate(ctx, c.ID); err != nil {
			a.Logger.Warn("cache invalidation failed", zap.String("campaignId", c.ID), zap.Error(err))
		}
	}
	return nil
}

// NewQueue returns a RabbitMQ queue when AMQP_URL is set, otherwise an
// in-process queue.
func NewQueue(cfg *config.Config, logger *zap.Logger) (queue.Queue, func() error, error) {
	if cfg.AMQPURL == "" {
		return queue.NewInMemoryQueue(cfg.QueueMaxRetries, logger), func() error { return nil }, nil
	}
	q, err := queue.DialAMQP(cfg.AMQPURL, cfg.QueueMaxRetries, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("queue: %w", err)
	}
	return q, q.Close, nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
