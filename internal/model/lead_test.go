package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/lead-ingest/internal/model"
)

func TestLeadFromRecordCoercesCoreFields(t *testing.T) {
	rec := model.NewRecord(2)
	rec.Set("email", "  alice@example.com ")
	rec.Set("amount", "1,250.50")
	rec.Set("pincode", 560001.0)
	rec.Set("followUp", "2024-03-01")
	rec.Set("documentLinks", "https://a.example/doc, ,https://b.example/doc")
	rec.Set("favouriteColour", "teal")
	rec.Set("campaign", "spoofed")

	lead, err := model.LeadFromRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", lead.Core.Email)
	require.NotNil(t, lead.Core.Amount)
	assert.InDelta(t, 1250.50, *lead.Core.Amount, 0.0001)
	require.NotNil(t, lead.Core.Pincode)
	assert.Equal(t, int64(560001), *lead.Core.Pincode)
	require.NotNil(t, lead.Core.FollowUp)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *lead.Core.FollowUp)
	assert.Equal(t, []string{"https://a.example/doc", "https://b.example/doc"}, lead.Core.DocumentLinks)

	// reserved names never reach the document from a spreadsheet
	assert.Equal(t, model.Fields{{Name: "favouriteColour", Value: "teal"}}, lead.Extra)
}

func TestLeadFromRecordRejectsBadNumber(t *testing.T) {
	rec := model.NewRecord(3)
	rec.Set("email", "bob@example.com")
	rec.Set("amount", "lots")

	_, err := model.LeadFromRecord(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount")
}

func TestLeadFromRecordRejectsOutOfRangePincode(t *testing.T) {
	for _, v := range []any{1e19, -1e19, "9223372036854775808"} {
		rec := model.NewRecord(2)
		rec.Set("pincode", v)

		_, err := model.LeadFromRecord(rec)
		require.Error(t, err, "value %v", v)
		assert.Contains(t, err.Error(), "pincode")
	}
}

func TestExcelSerialDate(t *testing.T) {
	rec := model.NewRecord(2)
	rec.Set("followUp", 45292.0)

	lead, err := model.LeadFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *lead.Core.FollowUp)
}

func TestSnapshotOrder(t *testing.T) {
	amount := 10.0
	lead := &model.Lead{
		ID:           "L1",
		Core:         model.LeadFields{Email: "a@x.io", Amount: &amount},
		Extra:        model.Fields{{Name: "zeta", Value: "z"}, {Name: "alpha", Value: "a"}},
		Campaign:     "Spring",
		CampaignID:   "c1",
		Organization: "org",
		Uploader:     "u",
	}

	assert.Equal(t,
		[]string{"id", "email", "amount", "zeta", "alpha", "campaign", "campaignId", "organization", "uploader"},
		lead.Snapshot().Names())

	v, ok := lead.Value("amount")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, ok = lead.Value("alpha")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = lead.Value("lastName")
	assert.False(t, ok)
}

func TestRecordSetOverwritesInPlace(t *testing.T) {
	rec := model.NewRecord(2)
	rec.Set("a", 1)
	rec.Set("b", 2)
	rec.Set("a", 3)

	assert.Equal(t, model.Fields{{Name: "a", Value: 3}, {Name: "b", Value: 2}}, rec.Fields())
}

func TestNaturalKeyIsOrderSensitive(t *testing.T) {
	f1 := model.LeadFilter{CampaignID: "c", Key: model.Fields{{Name: "email", Value: "a@x.io"}, {Name: "state", Value: "KA"}}}
	f2 := model.LeadFilter{CampaignID: "c", Key: model.Fields{{Name: "state", Value: "KA"}, {Name: "email", Value: "a@x.io"}}}

	k1, err := f1.NaturalKey()
	require.NoError(t, err)
	k2, err := f2.NaturalKey()
	require.NoError(t, err)

	assert.Equal(t, `[["email","a@x.io"],["state","KA"]]`, k1)
	assert.NotEqual(t, k1, k2)
}
