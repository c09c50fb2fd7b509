package model

// UploadedFile references a raw upload already in object storage.
type UploadedFile struct {
	Key      string `json:"key"`
	Location string `json:"location"`
}

// UploadJob is the unit of work carried by the lead upload queue.
type UploadJob struct {
	JobID        string         `json:"jobId"`
	Files        []UploadedFile `json:"files"`
	CampaignName string         `json:"campaignName"`
	Uploader     string         `json:"uploader"`
	Organization string         `json:"organization"`
	UserID       string         `json:"userId"`
	PushToken    string         `json:"pushtoken"`
	CampaignID   string         `json:"campaignId"`
}
