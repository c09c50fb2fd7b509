package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/unclebandit/lead-ingest/internal/model"
)

type LeadRepositoryInterface interface {
	UpsertByFilter(ctx context.Context, filter model.LeadFilter, lead *model.Lead) (*model.UpsertResult, error)
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
}

type LeadRepository struct {
	DB *sql.DB
}

// leadDoc is the jsonb column. Extra stays an ordered list of pairs.
type leadDoc struct {
	Core         model.LeadFields `json:"core"`
	Extra        model.Fields     `json:"extra,omitempty"`
	Campaign     string           `json:"campaign"`
	CampaignID   string           `json:"campaignId"`
	Organization string           `json:"organization"`
	Uploader     string           `json:"uploader"`
}

func encodeLead(l *model.Lead) ([]byte, error) {
	return json.Marshal(leadDoc{
		Core:         l.Core,
		Extra:        l.Extra,
		Campaign:     l.Campaign,
		CampaignID:   l.CampaignID,
		Organization: l.Organization,
		Uploader:     l.Uploader,
	})
}

func decodeLead(b []byte) (*model.Lead, error) {
	var d leadDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode lead document: %w", err)
	}
	return &model.Lead{
		Core:         d.Core,
		Extra:        d.Extra,
		Campaign:     d.Campaign,
		CampaignID:   d.CampaignID,
		Organization: d.Organization,
		Uploader:     d.Uploader,
	}, nil
}

// UpsertByFilter replaces the document at (campaign_id, natural_key) or
// inserts it, in one statement. xmax is 0 only for a freshly inserted tuple.
// The previous document comes from the statement snapshot and can be nil
// under a concurrent first insert even when Existed is true.
func (r *LeadRepository) UpsertByFilter(ctx context.Context, filter model.LeadFilter, lead *model.Lead) (*model.UpsertResult, error) {
	key, err := filter.NaturalKey()
	if err != nil {
		return nil, err
	}
	doc, err := encodeLead(lead)
	if err != nil {
		return nil, err
	}

	query := `
        WITH prev AS (
            SELECT doc FROM leads WHERE campaign_id=$2 AND natural_key=$3
        )
        INSERT INTO leads (id, campaign_id, natural_key, doc, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        ON CONFLICT (campaign_id, natural_key) DO UPDATE
        SET doc=EXCLUDED.doc, updated_at=NOW()
        RETURNING id, created_at, updated_at, (xmax = 0) AS inserted, (SELECT doc FROM prev)
    `
	stored := *lead
	var inserted bool
	var prevDoc []byte
	err = r.DB.QueryRowContext(ctx, query, uuid.NewString(), filter.CampaignID, key, doc).Scan(
		&stored.ID, &stored.CreatedAt, &stored.UpdatedAt, &inserted, &prevDoc,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert lead: %w", err)
	}

	res := &model.UpsertResult{Lead: &stored, Existed: !inserted, Inserted: inserted}
	if !inserted && prevDoc != nil {
		prev, err := decodeLead(prevDoc)
		if err != nil {
			return nil, err
		}
		prev.ID = stored.ID
		res.Previous = prev
	}
	return res, nil
}

func (r *LeadRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE campaign_id=$1`, campaignID).Scan(&n)
	return n, err
}
