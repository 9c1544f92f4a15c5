package models

import "time"

// Upload positions recorded on UploadHistory. Only append is applied.
const (
	PositionAppend  = "append"
	PositionPrepend = "prepend"
)

// UploadHistory is the audit row written after a bulk proxy load.
type UploadHistory struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UploadedBy uint64 `gorm:"not null;index" json:"uploaded_by"`                   // Uploader user ID.
	FileName   string `gorm:"type:text;not null" json:"file_name"`                 // Original file name.
	ProxyCount int    `gorm:"not null" json:"proxy_count"`                         // Rows inserted.
	Position   string `gorm:"type:text;not null;default:'append'" json:"position"` // Always stored as append.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Upload timestamp.
}

// TableName keeps the singular table name used by existing deployments.
func (UploadHistory) TableName() string {
	return "upload_history"
}
