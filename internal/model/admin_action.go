// internal/model/admin_action.go
package model

import "time"

const (
	ActionTypeLead = "lead"

	// FileTypeCampaignConfig tags the raw upload entry, FileTypeLead the result entry.
	FileTypeCampaignConfig = "campaignConfig"
	FileTypeLead           = "lead"
)

// AdminAction is an append-only audit entry.
type AdminAction struct {
	ID           string    `db:"id" json:"id" bson:"_id"`
	UserID       string    `db:"user_id" json:"userid" bson:"userid"`
	Organization string    `db:"organization" json:"organization" bson:"organization"`
	ActionType   string    `db:"action_type" json:"actionType" bson:"actionType"`
	FilePath     string    `db:"file_path" json:"filePath" bson:"filePath"`
	SavedOn      string    `db:"saved_on" json:"savedOn" bson:"savedOn"`
	Campaign     string    `db:"campaign_id" json:"campaign" bson:"campaign"`
	FileType     string    `db:"file_type" json:"fileType" bson:"fileType"`
	Created      int       `db:"created_count" json:"created,omitempty" bson:"created,omitempty"`
	Updated      int       `db:"updated_count" json:"updated,omitempty" bson:"updated,omitempty"`
	Errored      int       `db:"errored_count" json:"errored,omitempty" bson:"errored,omitempty"`
	ErrorsPath   string    `db:"errors_path" json:"errorsPath,omitempty" bson:"errorsPath,omitempty"`
	JobID        string    `db:"job_id" json:"jobId,omitempty" bson:"jobId,omitempty"`
	FileIndex    int       `db:"file_index" json:"fileIndex" bson:"fileIndex"`
	Error        string    `db:"error" json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt" bson:"createdAt"`
}
