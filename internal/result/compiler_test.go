package result_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appErrors "github.com/unclebandit/lead-ingest/internal/errors"
	"github.com/unclebandit/lead-ingest/internal/model"
	"github.com/unclebandit/lead-ingest/internal/reconcile"
	"github.com/unclebandit/lead-ingest/internal/result"
)

func open(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestCompileSheetOrder(t *testing.T) {
	data, err := result.Compile(nil, nil)
	require.NoError(t, err)

	f := open(t, data)
	assert.Equal(t, []string{result.SheetUpdated, result.SheetCreated}, f.GetSheetList())
	rows, err := f.GetRows(result.SheetUpdated)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCompileRows(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	amount := 1200.5
	updated := []*model.Lead{
		{ID: "l1", Core: model.LeadFields{Email: "a@example.com"}, CampaignID: "c1", Campaign: "Expo", CreatedAt: created},
	}
	inserted := []*model.Lead{
		{ID: "l2", Core: model.LeadFields{Email: "b@example.com", Amount: &amount}, Extra: model.Fields{{Name: "city", Value: "Pune"}}, CampaignID: "c1"},
		{ID: "l3", Core: model.LeadFields{Email: "c@example.com", DocumentLinks: []string{"x", "y"}}, CampaignID: "c1"},
	}

	data, err := result.Compile(updated, inserted)
	require.NoError(t, err)
	f := open(t, data)

	rows, err := f.GetRows(result.SheetUpdated)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "email", "campaign", "campaignId", "organization", "uploader", "createdAt"}, rows[0])
	assert.Equal(t, "l1", rows[1][0])
	assert.Equal(t, "2024-03-01T09:00:00Z", rows[1][6])

	rows, err = f.GetRows(result.SheetCreated)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// union of names in first-seen order
	assert.Equal(t, []string{"id", "email", "amount", "city", "campaign", "campaignId", "organization", "uploader", "documentLinks"}, rows[0])
	assert.Equal(t, "Pune", rows[1][3])
	assert.Equal(t, "x,y", rows[2][8])
}

func TestErrorReport(t *testing.T) {
	out, err := result.ErrorReport(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	rec := model.NewRecord(7)
	rec.Set("email", "a@example.com")
	rec.Set("amount", "lots")
	out, err = result.ErrorReport([]reconcile.Outcome{{
		Kind:   reconcile.Errored,
		Row:    7,
		Record: rec,
		Err:    appErrors.NewRowReconciliation(7, errors.New("bad amount")),
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "row,error,values", lines[0])
	assert.Equal(t, "7,row 7: bad amount,email=a@example.com; amount=lots", lines[1])
}
