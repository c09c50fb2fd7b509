package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/lead-ingest/internal/model"
)

type AdminActionRepositoryInterface interface {
	Append(ctx context.Context, a *model.AdminAction) error
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.AdminAction, error)
	ListByJob(ctx context.Context, campaignID, jobID string) ([]*model.AdminAction, error)
}

type AdminActionRepository struct {
	DB *sql.DB
}

func (r *AdminActionRepository) Append(ctx context.Context, a *model.AdminAction) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, `
        INSERT INTO admin_actions (id, user_id, organization, action_type, file_path, saved_on, campaign_id,
            file_type, created_count, updated_count, errored_count, errors_path, job_id, file_index, error, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `, a.ID, a.UserID, a.Organization, a.ActionType, a.FilePath, a.SavedOn, a.Campaign,
		a.FileType, a.Created, a.Updated, a.Errored, a.ErrorsPath, a.JobID, a.FileIndex, a.Error, a.CreatedAt)
	return err
}

const adminActionColumns = `id, user_id, organization, action_type, file_path, saved_on, campaign_id,
            file_type, created_count, updated_count, errored_count, errors_path, job_id, file_index, error, created_at`

// ListByCampaign returns the newest entries first.
func (r *AdminActionRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]*model.AdminAction, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT `+adminActionColumns+`
        FROM admin_actions
        WHERE campaign_id=$1
        ORDER BY created_at DESC
        LIMIT $2
    `, campaignID, limit)
	if err != nil {
		return nil, err
	}
	return scanAdminActions(rows)
}

// ListByJob returns every entry written for one upload job, oldest first.
func (r *AdminActionRepository) ListByJob(ctx context.Context, campaignID, jobID string) ([]*model.AdminAction, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT `+adminActionColumns+`
        FROM admin_actions
        WHERE campaign_id=$1 AND job_id=$2
        ORDER BY created_at
    `, campaignID, jobID)
	if err != nil {
		return nil, err
	}
	return scanAdminActions(rows)
}

func scanAdminActions(rows *sql.Rows) ([]*model.AdminAction, error) {
	defer rows.Close()

	var out []*model.AdminAction
	for rows.Next() {
		a := &model.AdminAction{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Organization, &a.ActionType, &a.FilePath, &a.SavedOn, &a.Campaign,
			&a.FileType, &a.Created, &a.Updated, &a.Errored, &a.ErrorsPath, &a.JobID, &a.FileIndex, &a.Error,
			&a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
