package models

import "time"

// Proxy represents one allocatable proxy string in the shared pool.
type Proxy struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement" json:"id"`     // Primary key.
	ProxyString string `gorm:"type:text;not null" json:"proxy_string"` // Opaque proxy/IP credential string.

	IsUsed bool       `gorm:"not null;default:false;index" json:"is_used"` // Set once by a successful claim.
	UsedBy *uint64    `gorm:"index" json:"used_by"`                        // Claiming user ID.
	UsedAt *time.Time `json:"used_at"`                                     // Claim timestamp.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Insertion timestamp.
}
