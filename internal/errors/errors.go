// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is returned by campaign lookups for an unknown id
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrConfigNotFound means a campaign has no field mapping entries
type ErrConfigNotFound struct {
	CampaignID string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("no field mapping configured for campaign %s", e.CampaignID)
}

func NewConfigNotFound(id string) error {
	return &ErrConfigNotFound{CampaignID: id}
}

// ErrCampaignNotConfigured aborts a whole batch before any file is touched.
type ErrCampaignNotConfigured struct {
	CampaignID string
	Err        error
}

func (e *ErrCampaignNotConfigured) Error() string {
	return fmt.Sprintf("campaign %s is not configured for lead uploads, create its field mapping before uploading leads: %v", e.CampaignID, e.Err)
}

func (e *ErrCampaignNotConfigured) Unwrap() error { return e.Err }

func NewCampaignNotConfigured(id string, err error) error {
	return &ErrCampaignNotConfigured{CampaignID: id, Err: err}
}

// ErrDecode is a per-file failure to read spreadsheet content.
// Row is 0 when the file could not be opened at all.
type ErrDecode struct {
	File string
	Row  int
	Err  error
}

func (e *ErrDecode) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("decode %s: row %d: %v", e.File, e.Row, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.File, e.Err)
}

func (e *ErrDecode) Unwrap() error { return e.Err }

func NewDecode(file string, row int, err error) error {
	return &ErrDecode{File: file, Row: row, Err: err}
}

// ErrRowReconciliation is absorbed into the errored bucket, never propagated past the file.
type ErrRowReconciliation struct {
	Row int
	Err error
}

func (e *ErrRowReconciliation) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *ErrRowReconciliation) Unwrap() error { return e.Err }

func NewRowReconciliation(row int, err error) error {
	return &ErrRowReconciliation{Row: row, Err: err}
}

type ErrArtifactStore struct {
	Name string
	Err  error
}

func (e *ErrArtifactStore) Error() string {
	return fmt.Sprintf("store artifact %s: %v", e.Name, e.Err)
}

func (e *ErrArtifactStore) Unwrap() error { return e.Err }

func NewArtifactStore(name string, err error) error {
	return &ErrArtifactStore{Name: name, Err: err}
}

type ErrAuditWrite struct {
	FilePath string
	Err      error
}

func (e *ErrAuditWrite) Error() string {
	return fmt.Sprintf("write audit entry for %s: %v", e.FilePath, e.Err)
}

func (e *ErrAuditWrite) Unwrap() error { return e.Err }

func NewAuditWrite(path string, err error) error {
	return &ErrAuditWrite{FilePath: path, Err: err}
}

// ErrNotification is only ever logged.
type ErrNotification struct {
	Err error
}

func (e *ErrNotification) Error() string {
	return fmt.Sprintf("push notification: %v", e.Err)
}

func (e *ErrNotification) Unwrap() error { return e.Err }

func NewNotification(err error) error {
	return &ErrNotification{Err: err}
}
