// internal/model/campaign.go
package model

import "time"

// Campaign is owned by campaign management; ingestion only reads it.
type Campaign struct {
	ID           string     `db:"id" json:"id" bson:"_id" yaml:"id"`
	Name         string     `db:"name" json:"name" bson:"name" yaml:"name"`
	Organization string     `db:"organization" json:"organization" bson:"organization" yaml:"organization"`
	UniqueCols   []string   `db:"unique_cols" json:"uniqueCols" bson:"uniqueCols" yaml:"uniqueCols"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt" bson:"createdAt" yaml:"-"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updatedAt,omitempty" bson:"updatedAt,omitempty" yaml:"-"`
}

// FieldMapping pairs a spreadsheet header with a canonical lead field.
type FieldMapping struct {
	CampaignID    string `db:"campaign_id" json:"campaignId" bson:"campaignId" yaml:"-"`
	ReadableField string `db:"readable_field" json:"readableField" bson:"readableField" yaml:"readable"`
	InternalField string `db:"internal_field" json:"internalField" bson:"internalField" yaml:"internal"`
}
