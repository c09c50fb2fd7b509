package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/lead-ingest/internal/app"
	"github.com/unclebandit/lead-ingest/internal/config"
	"github.com/unclebandit/lead-ingest/internal/logging"
	"github.com/unclebandit/lead-ingest/internal/queue"
	"github.com/unclebandit/lead-ingest/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if cfg.AMQPURL == "" {
		logger.Fatal("AMQP_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	q, err := queue.DialAMQP(cfg.AMQPURL, cfg.QueueMaxRetries, logger)
	if err != nil {
		logger.Fatal("queue unavailable", zap.Error(err))
	}
	defer q.Close()

	worker := service.NewWorker(a.Ingestion, logger)
	if err := q.Subscribe(ctx, cfg.LeadQueue, worker.Handle); err != nil {
		logger.Fatal("failed to register consumer", zap.Error(err))
	}

	logger.Info("worker running, waiting for messages", zap.String("queue", cfg.LeadQueue))
	<-ctx.Done()
	logger.Info("worker stopping")
	q.Wait()
}
