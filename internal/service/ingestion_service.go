// internal/service/ingestion_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/lead-ingest/internal/decoder"
	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/mapper"
	"github.com/unclebandit/lead-ingest/internal/model"
	"github.com/unclebandit/lead-ingest/internal/notify"
	"github.com/unclebandit/lead-ingest/internal/reconcile"
	"github.com/unclebandit/lead-ingest/internal/result"
	"github.com/unclebandit/lead-ingest/internal/storage"
)

// CampaignSource reads campaign configuration.
type CampaignSource interface {
	GetUniqueColumns(ctx context.Context, campaignID string) ([]string, error)
	mapper.Source
}

// AuditLog appends admin actions. Append must not return before the entry is stored.
// ListByJob returns the entries of one job so a redelivered job can skip
// the files it already finished.
type AuditLog interface {
	Append(ctx context.Context, action *model.AdminAction) error
	ListByJob(ctx context.Context, campaignID, jobID string) ([]*model.AdminAction, error)
}

// RowReader yields decoded records until io.EOF.
type RowReader interface {
	Read() (*model.Record, error)
}

type DecodeFunc func(name string, data []byte, fm *mapper.FieldMap) (RowReader, error)

func defaultDecode(name string, data []byte, fm *mapper.FieldMap) (RowReader, error) {
	r, err := decoder.NewReader(name, data, fm)
	if err != nil {
		return nil, err
	}
	return r, nil
}

const (
	NotificationTitle      = "File Upload Complete"
	defaultFileConcurrency = 4
)

// FileResult is the outcome of one file's pipeline.
type FileResult struct {
	File           model.UploadedFile `json:"file"`
	ResultLocation string             `json:"resultLocation,omitempty"`
	ErrorsLocation string             `json:"errorsLocation,omitempty"`
	Created        int                `json:"created"`
	Updated        int                `json:"updated"`
	Errored        int                `json:"errored"`
	Resumed        bool               `json:"resumed,omitempty"`
	Err            error              `json:"-"`
	Error          string             `json:"error,omitempty"`
}

// BatchResult lists every input file with its per-file result, in input order.
type BatchResult struct {
	JobID      string               `json:"jobId"`
	CampaignID string               `json:"campaignId"`
	Files      []model.UploadedFile `json:"files"`
	Results    []FileResult         `json:"results"`
}

type IngestionService struct {
	Campaigns       CampaignSource
	Engine          *reconcile.Engine
	Storage         storage.ObjectStore
	Audit           AuditLog
	Notifier        notify.Notifier
	Logger          *zap.Logger
	FileConcurrency int
	Decode          DecodeFunc
}

func NewIngestionService(
	campaigns CampaignSource,
	leads reconcile.LeadStore,
	store storage.ObjectStore,
	audit AuditLog,
	notifier notify.Notifier,
	logger *zap.Logger,
) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		Campaigns:       campaigns,
		Engine:          reconcile.NewEngine(leads, logger),
		Storage:         store,
		Audit:           audit,
		Notifier:        notifier,
		Logger:          logger,
		FileConcurrency: defaultFileConcurrency,
		Decode:          defaultDecode,
	}
}

// ProcessBatch runs every file of job and returns once all of them have
// settled. A configuration problem fails the batch before any file is read.
// Per-file failures are reported in the result and joined into the error.
// Files that already have a result entry for this job are not run again;
// their result is rebuilt from that entry.
func (s *IngestionService) ProcessBatch(ctx context.Context, job *model.UploadJob) (*BatchResult, error) {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	log := s.Logger.With(zap.String("jobId", job.JobID), zap.String("campaignId", job.CampaignID))

	meta, fm, err := s.loadCampaign(ctx, job)
	if err != nil {
		log.Error("campaign configuration unavailable", zap.Error(err))
		return nil, err
	}

	history, err := s.Audit.ListByJob(ctx, job.CampaignID, job.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job history: %w", err)
	}
	recorded, finished := indexHistory(history)

	// raw upload entries go in before any file is touched
	for i, f := range job.Files {
		if recorded[i] {
			continue
		}
		err := s.Audit.Append(ctx, s.auditEntry(job, i, f.Location, model.FileTypeCampaignConfig))
		if err != nil {
			return nil, appErrors.NewAuditWrite(f.Location, err)
		}
	}

	batch := &BatchResult{
		JobID:      job.JobID,
		CampaignID: job.CampaignID,
		Files:      job.Files,
		Results:    make([]FileResult, len(job.Files)),
	}

	var g errgroup.Group
	limit := s.FileConcurrency
	if limit <= 0 {
		limit = defaultFileConcurrency
	}
	g.SetLimit(limit)
	resumed := 0
	for i, f := range job.Files {
		if prev, ok := finished[i]; ok {
			batch.Results[i] = resumedResult(f, prev)
			resumed++
			continue
		}
		g.Go(func() error {
			batch.Results[i] = s.processFile(ctx, job, i, meta, fm, f)
			return nil
		})
	}
	g.Wait()
	if resumed > 0 {
		log.Info("skipped files finished by an earlier attempt", zap.Int("files", resumed))
	}

	var errs []error
	for i := range batch.Results {
		r := &batch.Results[i]
		if r.Err != nil {
			r.Error = r.Err.Error()
			errs = append(errs, r.Err)
		}
	}
	log.Info("lead upload batch finished", zap.Int("files", len(job.Files)), zap.Int("failed", len(errs)))
	return batch, errors.Join(errs...)
}

// indexHistory splits a job's audit entries into the file indexes that have
// a raw upload entry and the result entries by file index.
func indexHistory(entries []*model.AdminAction) (map[int]bool, map[int]*model.AdminAction) {
	recorded := map[int]bool{}
	finished := map[int]*model.AdminAction{}
	for _, e := range entries {
		switch e.FileType {
		case model.FileTypeCampaignConfig:
			recorded[e.FileIndex] = true
		case model.FileTypeLead:
			finished[e.FileIndex] = e
		}
	}
	return recorded, finished
}

func resumedResult(f model.UploadedFile, prev *model.AdminAction) FileResult {
	res := FileResult{
		File:           f,
		ResultLocation: prev.FilePath,
		ErrorsLocation: prev.ErrorsPath,
		Created:        prev.Created,
		Updated:        prev.Updated,
		Errored:        prev.Errored,
		Resumed:        true,
	}
	if prev.Error != "" {
		res.Err = appErrors.NewDecode(f.Key, 0, errors.New(prev.Error))
	}
	return res
}

// decodeCause is the part of a decode error below the file name.
func decodeCause(err error) string {
	var de *appErrors.ErrDecode
	if !errors.As(err, &de) {
		return err.Error()
	}
	if de.Row > 0 {
		return fmt.Sprintf("row %d: %v", de.Row, de.Err)
	}
	return de.Err.Error()
}

func (s *IngestionService) loadCampaign(ctx context.Context, job *model.UploadJob) (reconcile.Meta, *mapper.FieldMap, error) {
	meta := reconcile.Meta{
		CampaignID:   job.CampaignID,
		CampaignName: job.CampaignName,
		Organization: job.Organization,
		Uploader:     job.Uploader,
	}

	cols, err := s.Campaigns.GetUniqueColumns(ctx, job.CampaignID)
	var notFound *appErrors.ErrCampaignNotFound
	switch {
	case errors.As(err, &notFound):
		return meta, nil, appErrors.NewCampaignNotConfigured(job.CampaignID, err)
	case err != nil:
		return meta, nil, fmt.Errorf("load unique columns: %w", err)
	case len(cols) == 0:
		return meta, nil, appErrors.NewCampaignNotConfigured(job.CampaignID, errors.New("no unique columns declared"))
	}
	meta.UniqueCols = cols

	fm, err := mapper.Load(ctx, s.Campaigns, job.CampaignID)
	var noConfig *appErrors.ErrConfigNotFound
	switch {
	case errors.As(err, &noConfig):
		return meta, nil, appErrors.NewCampaignNotConfigured(job.CampaignID, err)
	case err != nil:
		return meta, nil, fmt.Errorf("load field mapping: %w", err)
	}
	return meta, fm, nil
}

func (s *IngestionService) processFile(ctx context.Context, job *model.UploadJob, index int, meta reconcile.Meta, fm *mapper.FieldMap, f model.UploadedFile) FileResult {
	res := FileResult{File: f}
	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("file %s not started: %w", f.Key, err)
		return res
	}
	// a started file runs to the end so it never stops half-ingested
	ctx = context.WithoutCancel(ctx)
	log := s.Logger.With(zap.String("jobId", job.JobID), zap.String("file", f.Key))

	data, err := storage.ReadAll(ctx, s.Storage, f.Location)
	if err != nil {
		res.Err = appErrors.NewArtifactStore(f.Location, err)
		return res
	}
	reader, err := s.Decode(f.Key, data, fm)
	if err != nil {
		res.Err = err
		return res
	}

	var buckets reconcile.Buckets
	var decodeErr error
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			decodeErr = err
			break
		}
		buckets.Add(s.Engine.Reconcile(ctx, meta, rec))
	}
	res.Created, res.Updated, res.Errored = len(buckets.Created), len(buckets.Updated), len(buckets.Errored)

	if decodeErr != nil && buckets.Total() == 0 {
		res.Err = decodeErr
		return res
	}

	if err := s.storeArtifacts(ctx, job, index, f, &buckets, &res); err != nil {
		res.Err = err
		return res
	}

	entry := s.auditEntry(job, index, res.ResultLocation, model.FileTypeLead)
	entry.Created, entry.Updated, entry.Errored = res.Created, res.Updated, res.Errored
	entry.ErrorsPath = res.ErrorsLocation
	if decodeErr != nil {
		entry.Error = decodeCause(decodeErr)
	}
	if err := s.Audit.Append(ctx, entry); err != nil {
		res.Err = appErrors.NewAuditWrite(res.ResultLocation, err)
		return res
	}

	if decodeErr != nil {
		log.Warn("file only partially decoded", zap.Int("rows", buckets.Total()), zap.Error(decodeErr))
		res.Err = decodeErr
		return res
	}

	s.notify(ctx, job, res.ResultLocation, log)
	log.Info("lead file processed",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("errored", res.Errored))
	return res
}

// storeArtifacts names objects by the file's position in the job, so files
// sharing a base name never collide.
func (s *IngestionService) storeArtifacts(ctx context.Context, job *model.UploadJob, index int, f model.UploadedFile, b *reconcile.Buckets, res *FileResult) error {
	base := baseName(f.Key)
	prefix := fmt.Sprintf("results/%s/%s/%d-", job.CampaignID, job.JobID, index)

	wb, err := result.Compile(b.Updated, b.Created)
	if err != nil {
		return err
	}
	name := prefix + "result-" + base + ".xlsx"
	obj, err := s.Storage.Upload(ctx, name, wb)
	if err != nil {
		return appErrors.NewArtifactStore(name, err)
	}
	res.ResultLocation = obj.Location

	report, err := result.ErrorReport(b.Errored)
	if err != nil || report == nil {
		return err
	}
	name = prefix + "errors-" + base + ".csv"
	obj, err = s.Storage.Upload(ctx, name, report)
	if err != nil {
		return appErrors.NewArtifactStore(name, err)
	}
	res.ErrorsLocation = obj.Location
	return nil
}

func (s *IngestionService) notify(ctx context.Context, job *model.UploadJob, location string, log *zap.Logger) {
	if job.PushToken == "" || s.Notifier == nil {
		return
	}
	err := s.Notifier.Notify(ctx, notify.Notification{
		Token: job.PushToken,
		Title: NotificationTitle,
		Body:  fmt.Sprintf("please visit %s for the result", location),
		Link:  location,
	})
	if err != nil {
		log.Warn("uploader not notified", zap.Error(appErrors.NewNotification(err)))
	}
}

func (s *IngestionService) auditEntry(job *model.UploadJob, index int, filePath, fileType string) *model.AdminAction {
	return &model.AdminAction{
		ID:           uuid.NewString(),
		UserID:       job.UserID,
		Organization: job.Organization,
		ActionType:   model.ActionTypeLead,
		FilePath:     filePath,
		SavedOn:      s.Storage.Tag(),
		Campaign:     job.CampaignID,
		FileType:     fileType,
		JobID:        job.JobID,
		FileIndex:    index,
		CreatedAt:    time.Now().UTC(),
	}
}

// baseName is the uploaded file name without directories or extension.
func baseName(key string) string {
	name := path.Base(strings.ReplaceAll(key, "\\", "/"))
	if ext := path.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || name == "." || name == "/" {
		return "upload"
	}
	return name
}
