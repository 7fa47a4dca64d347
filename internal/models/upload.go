package models

import "time"

// UploadRecord stores metadata about files pushed through the server-side upload path.
type UploadRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	StorageID string    `gorm:"size:255;uniqueIndex;not null" json:"storage_id"`
	FileName  string    `gorm:"size:255;not null" json:"file_name"`
	MimeType  string    `gorm:"size:128;not null" json:"mime_type"`
	SizeBytes int64     `gorm:"not null" json:"size_bytes"`
	Checksum  string    `gorm:"size:128;index" json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every persisted model for migrations.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Workspace{},
		&Member{},
		&Channel{},
		&Conversation{},
		&Message{},
		&Reaction{},
		&UploadRecord{},
	}
}
