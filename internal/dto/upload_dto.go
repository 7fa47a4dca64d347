package dto

import "time"

// UploadURLResponse describes a short-lived direct upload target.
type UploadURLResponse struct {
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Fields    map[string]string `json:"fields,omitempty"`
	StorageID string            `json:"storage_id"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// UploadResponse describes a file stored through the server.
type UploadResponse struct {
	StorageID string `json:"storage_id"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
	FileName  string `json:"file_name"`
}
