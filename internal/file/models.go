package file

import "time"

// StoredFile is an uploaded document held for the retention window.
// Records are immutable once created.
type StoredFile struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	DisplayName  string    `json:"displayName"`
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Payload      []byte    `json:"-"`

	objectName string
	seq        int64
}

// Metadata returns the record without its payload.
func (f StoredFile) Metadata() StoredFile {
	f.Payload = nil
	return f
}

// Live reports whether the record is still visible at now.
func (f StoredFile) Live(now time.Time) bool {
	return now.Before(f.ExpiresAt)
}

// PutInput carries an accepted upload. SizeBytes and MimeType are recorded as given;
// a zero SizeBytes falls back to the payload length.
type PutInput struct {
	TenantID    string
	DisplayName string
	FileName    string
	MimeType    string
	SizeBytes   int64
	Payload     []byte
}
