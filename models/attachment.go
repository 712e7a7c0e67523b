package models

import "time"

// ProjectAttachment tracks a blob uploaded for a project (photos, PDFs).
// ObjectName is the blob-store key; contents never pass through the database.
type ProjectAttachment struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	ProjectId   uint      `gorm:"index;not null" json:"project_id"`
	ObjectName  string    `gorm:"size:255;not null" json:"-"`
	FileName    string    `gorm:"size:255" json:"file_name"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  string    `gorm:"size:100" json:"uploaded_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
