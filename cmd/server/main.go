// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/lead-ingest/internal/app"
	"github.com/unclebandit/lead-ingest/internal/config"
	"github.com/unclebandit/lead-ingest/internal/controller"
	"github.com/unclebandit/lead-ingest/internal/logging"
	"github.com/unclebandit/lead-ingest/internal/queue"
	"github.com/unclebandit/lead-ingest/internal/service"
	"github.com/unclebandit/lead-ingest/internal/storage"
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
	if !cfg.EnvFileLoaded {
		logger.Info("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, closeQueue, err := app.NewQueue(cfg, logger)
	if err != nil {
		logger.Fatal("queue unavailable", zap.Error(err))
	}
	defer closeQueue()

	var store storage.ObjectStore
	mem, inProcess := q.(*queue.InMemoryQueue)
	if inProcess {
		// no broker: ingest in this process
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			logger.Fatal("startup failed", zap.Error(err))
		}
		defer a.Close()
		store = a.Storage
		worker := service.NewWorker(a.Ingestion, logger)
		if err := mem.Subscribe(ctx, cfg.LeadQueue, worker.Handle); err != nil {
			logger.Fatal("subscribe failed", zap.Error(err))
		}
		defer mem.Drain()
	} else {
		store, err = app.OpenStorage(ctx, cfg)
		if err != nil {
			logger.Fatal("storage unavailable", zap.Error(err))
		}
	}

	uploads := &controller.LeadUploadController{Queue: q, Topic: cfg.LeadQueue, Storage: store, Logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	uploads.Routes(r)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.Bool("inProcessWorker", inProcess))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
