// Package reconcile upserts decoded rows into the lead store keyed by the
// campaign's unique columns and classifies what happened to each row.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
)

// LeadStore must perform UpsertByFilter as one atomic find-and-modify.
type LeadStore interface {
	UpsertByFilter(ctx context.Context, filter model.LeadFilter, lead *model.Lead) (*model.UpsertResult, error)
}

type Kind int

const (
	Errored Kind = iota
	Created
	Updated
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	}
	return "errored"
}

// Outcome is the classification of one row. Lead is the stored snapshot for
// created and updated rows; Err is set for errored rows.
type Outcome struct {
	Kind   Kind
	Row    int
	Record *model.Record
	Lead   *model.Lead
	Err    error
}

// Meta is the per-batch context stamped onto every lead.
type Meta struct {
	CampaignID   string
	CampaignName string
	Organization string
	Uploader     string
	UniqueCols   []string
}

type Engine struct {
	Store  LeadStore
	Logger *zap.Logger
}

func NewEngine(store LeadStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Store: store, Logger: logger}
}

// BuildFilter takes the value at every unique column from the lead. A missing
// column fails the row rather than widening the filter.
func BuildFilter(lead *model.Lead, uniqueCols []string, campaignID string) (model.LeadFilter, error) {
	filter := model.LeadFilter{CampaignID: campaignID, Key: make(model.Fields, 0, len(uniqueCols))}
	if len(uniqueCols) == 0 {
		return filter, errors.New("campaign declares no unique columns")
	}
	for _, col := range uniqueCols {
		v, ok := lead.Value(col)
		if !ok {
			return filter, fmt.Errorf("unique column %q is missing", col)
		}
		filter.Key = append(filter.Key, model.Field{Name: col, Value: v})
	}
	return filter, nil
}

// Reconcile upserts one record. It never returns an error: every failure is
// an Errored outcome so the caller can move on to the next row.
func (e *Engine) Reconcile(ctx context.Context, meta Meta, rec *model.Record) Outcome {
	out := Outcome{Row: rec.Row, Record: rec}

	lead, err := model.LeadFromRecord(rec)
	if err != nil {
		return e.fail(out, err)
	}
	lead.Campaign = meta.CampaignName
	lead.CampaignID = meta.CampaignID
	lead.Organization = meta.Organization
	lead.Uploader = meta.Uploader

	filter, err := BuildFilter(lead, meta.UniqueCols, meta.CampaignID)
	if err != nil {
		return e.fail(out, err)
	}

	res, err := e.Store.UpsertByFilter(ctx, filter, lead)
	if err != nil {
		return e.fail(out, err)
	}

	out.Lead = res.Lead
	switch {
	case res.Existed:
		out.Kind = Updated
	case res.Inserted:
		out.Kind = Created
	default:
		return e.fail(out, errors.New("store reported neither an update nor an insert"))
	}
	return out
}

func (e *Engine) fail(out Outcome, err error) Outcome {
	out.Kind = Errored
	out.Err = appErrors.NewRowReconciliation(out.Row, err)
	e.Logger.Warn("lead row not reconciled", zap.Int("row", out.Row), zap.Error(err))
	return out
}

// Buckets partitions outcomes in processing order.
type Buckets struct {
	Created []*model.Lead
	Updated []*model.Lead
	Errored []Outcome
}

func (b *Buckets) Add(o Outcome) {
	switch o.Kind {
	case Created:
		b.Created = append(b.Created, o.Lead)
	case Updated:
		b.Updated = append(b.Updated, o.Lead)
	default:
		b.Errored = append(b.Errored, o)
	}
}

// Total is the number of rows classified so far.
func (b *Buckets) Total() int {
	return len(b.Created) + len(b.Updated) + len(b.Errored)
}
