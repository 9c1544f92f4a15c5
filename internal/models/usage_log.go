package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageLog records claimed proxies. Claims from one batch accrue into one row.
type UsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID  uint64  `gorm:"not null;index" json:"user_id"`                          // Claiming user ID.
	BatchID *string `gorm:"type:varchar(64);uniqueIndex" json:"batch_id,omitempty"` // Allocation batch the claims came from.
	Amount  int     `gorm:"not null" json:"amount"`                                 // Number of proxies claimed.

	Proxies datatypes.JSON `gorm:"type:json" json:"proxies,omitempty"` // Claimed strings when claim auditing is on.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Claim timestamp.
}
