package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/lead-ingest/internal/app"
	"github.com/unclebandit/lead-ingest/internal/model"
)

var ingestOpts struct {
	campaignID   string
	campaignName string
	organization string
	uploader     string
	userID       string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest --campaign <id> [files...]",
	Short: "Upload local spreadsheets and ingest them synchronously",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			job := &model.UploadJob{
				JobID:        uuid.NewString(),
				CampaignID:   ingestOpts.campaignID,
				CampaignName: ingestOpts.campaignName,
				Organization: ingestOpts.organization,
				Uploader:     ingestOpts.uploader,
				UserID:       ingestOpts.userID,
			}
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				key := filepath.Base(path)
				obj, err := a.Storage.Upload(ctx, fmt.Sprintf("uploads/%s/%s/%d-%s", job.CampaignID, job.JobID, i, key), data)
				if err != nil {
					return err
				}
				job.Files = append(job.Files, model.UploadedFile{Key: key, Location: obj.Location})
			}

			res, batchErr := a.Ingestion.ProcessBatch(ctx, job)
			if res != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			if batchErr != nil {
				logger.Error("lead upload finished with errors", zap.String("jobId", job.JobID), zap.Error(batchErr))
			}
			return batchErr
		})
	},
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestOpts.campaignID, "campaign", "", "campaign id")
	f.StringVar(&ingestOpts.campaignName, "campaign-name", "", "campaign display name stamped on leads")
	f.StringVar(&ingestOpts.organization, "organization", "", "owning organization")
	f.StringVar(&ingestOpts.uploader, "uploader", os.Getenv("USER"), "uploader identity")
	f.StringVar(&ingestOpts.userID, "user", "", "uploader user id for the audit trail")
	ingestCmd.MarkFlagRequired("campaign")
}
