package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/lead-ingest/internal/model"
)

const upsertPattern = `(?s)WITH prev AS \(\s*SELECT doc FROM leads WHERE campaign_id=\$2 AND natural_key=\$3\s*\)` +
	`.*INSERT INTO leads .*ON CONFLICT \(campaign_id, natural_key\) DO UPDATE` +
	`.*RETURNING id, created_at, updated_at, \(xmax = 0\) AS inserted, \(SELECT doc FROM prev\)`

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func upsertFixture() (model.LeadFilter, *model.Lead, string) {
	filter := model.LeadFilter{CampaignID: "c1", Key: model.Fields{{Name: "email", Value: "a@example.com"}}}
	lead := &model.Lead{Core: model.LeadFields{Email: "a@example.com", FirstName: "Ann"}, CampaignID: "c1"}
	return filter, lead, `[["email","a@example.com"]]`
}

func returnedRow(inserted bool, prev []byte) *sqlmock.Rows {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "created_at", "updated_at", "inserted", "doc"}).
		AddRow("5b0c7f3e-1111-4c1e-9d2a-000000000001", at, at, inserted, prev)
}

func TestUpsertByFilterInserted(t *testing.T) {
	db, mock := newMockDB(t)
	filter, lead, key := upsertFixture()
	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), "c1", key, sqlmock.AnyArg()).
		WillReturnRows(returnedRow(true, nil))

	res, err := (&LeadRepository{DB: db}).UpsertByFilter(context.Background(), filter, lead)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.False(t, res.Existed)
	assert.Nil(t, res.Previous)
	assert.Equal(t, "5b0c7f3e-1111-4c1e-9d2a-000000000001", res.Lead.ID)
	assert.Equal(t, "Ann", res.Lead.Core.FirstName)
	assert.False(t, res.Lead.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertByFilterReplaced(t *testing.T) {
	db, mock := newMockDB(t)
	filter, lead, key := upsertFixture()
	prev, err := encodeLead(&model.Lead{Core: model.LeadFields{Email: "a@example.com", FirstName: "Annie"}, CampaignID: "c1"})
	require.NoError(t, err)
	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), "c1", key, sqlmock.AnyArg()).
		WillReturnRows(returnedRow(false, prev))

	res, err := (&LeadRepository{DB: db}).UpsertByFilter(context.Background(), filter, lead)
	require.NoError(t, err)
	assert.True(t, res.Existed)
	assert.False(t, res.Inserted)
	require.NotNil(t, res.Previous)
	assert.Equal(t, "Annie", res.Previous.Core.FirstName)
	assert.Equal(t, res.Lead.ID, res.Previous.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertByFilterConflictWithoutSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	filter, lead, key := upsertFixture()
	mock.ExpectQuery(upsertPattern).
		WithArgs(sqlmock.AnyArg(), "c1", key, sqlmock.AnyArg()).
		WillReturnRows(returnedRow(false, nil))

	res, err := (&LeadRepository{DB: db}).UpsertByFilter(context.Background(), filter, lead)
	require.NoError(t, err)
	assert.True(t, res.Existed)
	assert.Nil(t, res.Previous)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertByFilterError(t *testing.T) {
	db, mock := newMockDB(t)
	filter, lead, _ := upsertFixture()
	mock.ExpectQuery(upsertPattern).WillReturnError(errors.New("connection reset"))

	_, err := (&LeadRepository{DB: db}).UpsertByFilter(context.Background(), filter, lead)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert lead")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByJob(t *testing.T) {
	db, mock := newMockDB(t)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)SELECT .* FROM admin_actions\s+WHERE campaign_id=\$1 AND job_id=\$2`).
		WithArgs("c1", "j1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "organization", "action_type", "file_path",
			"saved_on", "campaign_id", "file_type", "created_count", "updated_count", "errored_count",
			"errors_path", "job_id", "file_index", "error", "created_at"}).
			AddRow("a1", "u1", "org-1", model.ActionTypeLead, "gs://b/results/c1/j1/1-result-leads.xlsx",
				"gcs", "c1", model.FileTypeLead, 4, 1, 0, "", "j1", 1, "", at))

	got, err := (&AdminActionRepository{DB: db}).ListByJob(context.Background(), "c1", "j1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].FileIndex)
	assert.Equal(t, "j1", got[0].JobID)
	assert.Equal(t, 4, got[0].Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
