package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
)

type CampaignRepositoryInterface interface {
	GetUniqueColumns(ctx context.Context, campaignID string) ([]string, error)
	GetFieldMapping(ctx context.Context, campaignID string) ([]model.FieldMapping, error)
	SaveCampaign(ctx context.Context, c *model.Campaign, mappings []model.FieldMapping) error
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) GetUniqueColumns(ctx context.Context, campaignID string) ([]string, error) {
	var cols []string
	err := r.DB.QueryRowContext(ctx,
		`SELECT unique_cols FROM campaigns WHERE id=$1`, campaignID,
	).Scan(pq.Array(&cols))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(campaignID)
		}
		return nil, err
	}
	return cols, nil
}

// GetFieldMapping returns the campaign's mappings in insertion order, or
// ErrConfigNotFound when there are none.
func (r *CampaignRepository) GetFieldMapping(ctx context.Context, campaignID string) ([]model.FieldMapping, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT campaign_id, readable_field, internal_field
        FROM campaign_configs
        WHERE campaign_id=$1
        ORDER BY id
    `, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []model.FieldMapping
	for rows.Next() {
		var m model.FieldMapping
		if err := rows.Scan(&m.CampaignID, &m.ReadableField, &m.InternalField); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, appErrors.NewConfigNotFound(campaignID)
	}
	return mappings, nil
}

// SaveCampaign upserts the campaign and replaces its field mapping in one transaction.
func (r *CampaignRepository) SaveCampaign(ctx context.Context, c *model.Campaign, mappings []model.FieldMapping) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
        INSERT INTO campaigns (id, name, organization, unique_cols, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE
        SET name=EXCLUDED.name, organization=EXCLUDED.organization, unique_cols=EXCLUDED.unique_cols, updated_at=$5
        RETURNING created_at, updated_at
    `, c.ID, c.Name, c.Organization, pq.Array(c.UniqueCols), now).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save campaign %s: %w", c.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM campaign_configs WHERE campaign_id=$1`, c.ID); err != nil {
		return err
	}
	for _, m := range mappings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO campaign_configs (campaign_id, readable_field, internal_field) VALUES ($1, $2, $3)`,
			c.ID, m.ReadableField, m.InternalField)
		if err != nil {
			return fmt.Errorf("save field mapping %q: %w", m.ReadableField, err)
		}
	}
	return tx.Commit()
}
