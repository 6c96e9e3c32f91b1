package channel

import "time"

// EventFileUploaded announces a newly stored file to the shop's dashboards.
const EventFileUploaded = "file-uploaded"

// Event is the notification fanned out to a tenant's subscribers. It never carries file bytes.
type Event struct {
	Type      string      `json:"type"`
	TenantID  string      `json:"tenantId"`
	Timestamp time.Time   `json:"timestamp"`
	File      FileCreated `json:"file"`
}

// FileCreated describes the stored file an event refers to.
type FileCreated struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	FileName    string    `json:"fileName"`
	SizeBytes   int64     `json:"sizeBytes"`
	MimeType    string    `json:"mimeType"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
