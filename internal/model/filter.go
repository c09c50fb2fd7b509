package model

import (
	"encoding/json"
	"fmt"
)

// LeadFilter identifies a lead within a campaign by the values at the
// campaign's unique columns, in configured order.
type LeadFilter struct {
	CampaignID string
	Key        Fields
}

// NaturalKey is the canonical text form of the key values. Stores index
// (campaignId, naturalKey) uniquely.
func (f LeadFilter) NaturalKey() (string, error) {
	pairs := make([][2]any, len(f.Key))
	for i, k := range f.Key {
		pairs[i] = [2]any{k.Name, k.Value}
	}
	b, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encode natural key: %w", err)
	}
	return string(b), nil
}

// UpsertResult reports what a single atomic upsert did. Previous is nil when
// the store inserted, or when it cannot return the replaced document.
type UpsertResult struct {
	Lead     *Lead
	Previous *Lead
	Existed  bool
	Inserted bool
}
