package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
	"github.com/unclebandit/lead-ingest/internal/queue"
)

// BatchProcessor defines the method the worker needs
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, job *model.UploadJob) (*BatchResult, error)
}

// Worker consumes lead upload jobs from the queue.
type Worker struct {
	Ingestion BatchProcessor
	Logger    *zap.Logger
}

func NewWorker(ingestion BatchProcessor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Ingestion: ingestion, Logger: logger}
}

// ValidateJob checks the payload and fills in file keys from locations.
func ValidateJob(job *model.UploadJob) error {
	if job.JobID == "" {
		return errors.New("jobId is required")
	}
	if job.CampaignID == "" {
		return errors.New("campaignId is required")
	}
	if len(job.Files) == 0 {
		return errors.New("at least one file is required")
	}
	for i := range job.Files {
		f := &job.Files[i]
		if f.Location == "" {
			return fmt.Errorf("file %d has no location", i)
		}
		if f.Key == "" {
			f.Key = path.Base(f.Location)
		}
	}
	return nil
}

// Handle is a queue.Handler. Malformed payloads, unconfigured campaigns and
// batches that failed only on undecodable files are not retried.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var job model.UploadJob
	if err := json.Unmarshal(body, &job); err != nil {
		return queue.Permanent(fmt.Errorf("invalid job payload: %w", err))
	}
	if err := ValidateJob(&job); err != nil {
		return queue.Permanent(fmt.Errorf("invalid job payload: %w", err))
	}

	log := w.Logger.With(zap.String("jobId", job.JobID), zap.String("campaignId", job.CampaignID))
	log.Info("processing lead upload", zap.Int("files", len(job.Files)))

	res, err := w.Ingestion.ProcessBatch(ctx, &job)
	if err == nil {
		return nil
	}

	var notConfigured *appErrors.ErrCampaignNotConfigured
	if errors.As(err, &notConfigured) || (res != nil && onlyDecodeFailures(res)) {
		return queue.Permanent(err)
	}
	return err
}

func onlyDecodeFailures(res *BatchResult) bool {
	failed := false
	for _, r := range res.Results {
		if r.Err == nil {
			continue
		}
		var decodeErr *appErrors.ErrDecode
		if !errors.As(r.Err, &decodeErr) {
			return false
		}
		failed = true
	}
	return failed
}
