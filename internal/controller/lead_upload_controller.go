// internal/controller/lead_upload_controller.go
package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/lead-ingest/internal/model"
	"github.com/unclebandit/lead-ingest/internal/queue"
	"github.com/unclebandit/lead-ingest/internal/service"
	"github.com/unclebandit/lead-ingest/internal/storage"
)

const maxUploadMemory = 32 << 20

type LeadUploadController struct {
	Queue   queue.Queue
	Topic   string
	Storage storage.ObjectStore
	Logger  *zap.Logger
}

func (c *LeadUploadController) Routes(r chi.Router) {
	r.Post("/campaigns/{id}/lead-uploads", c.EnqueueUpload)
	r.Post("/campaigns/{id}/lead-files", c.UploadFiles)
}

type uploadRequest struct {
	CampaignName string               `json:"campaignName"`
	Uploader     string               `json:"uploader"`
	Organization string               `json:"organization"`
	UserID       string               `json:"userId"`
	PushToken    string               `json:"pushtoken"`
	Files        []model.UploadedFile `json:"files"`
}

type uploadResponse struct {
	JobID string               `json:"jobId"`
	Files []model.UploadedFile `json:"files"`
}

// EnqueueUpload queues a batch of files already in object storage.
func (c *LeadUploadController) EnqueueUpload(w http.ResponseWriter, r *http.Request) {
	var body uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	job := c.newJob(chi.URLParam(r, "id"), body)
	job.Files = body.Files
	c.enqueue(w, r, job)
}

// UploadFiles stores multipart "files" parts and queues them as one batch.
func (c *LeadUploadController) UploadFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	job := c.newJob(chi.URLParam(r, "id"), uploadRequest{
		CampaignName: r.FormValue("campaignName"),
		Uploader:     r.FormValue("uploader"),
		Organization: r.FormValue("organization"),
		UserID:       r.FormValue("userId"),
		PushToken:    r.FormValue("pushtoken"),
	})

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		http.Error(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	for i, fh := range parts {
		key := filepath.Base(fh.Filename)
		if fh.Filename == "" || key == "." || key == ".." || key == string(filepath.Separator) {
			http.Error(w, fmt.Sprintf("file part %d has no file name", i), http.StatusBadRequest)
			return
		}
		f, err := fh.Open()
		if err != nil {
			http.Error(w, "unreadable file part", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			http.Error(w, "unreadable file part", http.StatusBadRequest)
			return
		}

		name := fmt.Sprintf("uploads/%s/%s/%d-%s", job.CampaignID, job.JobID, i, key)
		obj, err := c.Storage.Upload(r.Context(), name, data)
		if err != nil {
			c.Logger.Error("storing upload failed", zap.String("name", name), zap.Error(err))
			http.Error(w, "could not store upload", http.StatusBadGateway)
			return
		}
		job.Files = append(job.Files, model.UploadedFile{Key: key, Location: obj.Location})
	}
	c.enqueue(w, r, job)
}

func (c *LeadUploadController) newJob(campaignID string, body uploadRequest) *model.UploadJob {
	return &model.UploadJob{
		JobID:        uuid.NewString(),
		CampaignID:   campaignID,
		CampaignName: body.CampaignName,
		Uploader:     body.Uploader,
		Organization: body.Organization,
		UserID:       body.UserID,
		PushToken:    body.PushToken,
	}
}

func (c *LeadUploadController) enqueue(w http.ResponseWriter, r *http.Request, job *model.UploadJob) {
	if err := service.ValidateJob(job); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload, err := json.Marshal(job)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := c.Queue.Publish(r.Context(), c.Topic, payload); err != nil {
		c.Logger.Error("enqueue lead upload failed", zap.String("jobId", job.JobID), zap.Error(err))
		http.Error(w, "could not queue upload", http.StatusServiceUnavailable)
		return
	}
	c.Logger.Info("lead upload queued", zap.String("jobId", job.JobID), zap.String("campaignId", job.CampaignID), zap.Int("files", len(job.Files)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(uploadResponse{JobID: job.JobID, Files: job.Files})
}
