package models

import "time"

// Role values accepted for User.Role.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// DefaultDailyLimit is the quota applied when a user is created without one.
const DefaultDailyLimit = 500

// User represents an account that signs in with a shared access key.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username  string `gorm:"type:text;not null;uniqueIndex" json:"username"`   // Unique display/login name.
	AccessKey string `gorm:"type:text;not null;uniqueIndex" json:"access_key"` // Shared secret used to sign in.
	Role      string `gorm:"type:text;not null;default:'user'" json:"role"`    // One of admin, manager, user.

	DailyLimit int  `gorm:"not null;default:500" json:"daily_limit"` // Max proxies claimable per local day.
	IsActive   bool `gorm:"not null;default:true" json:"is_active"`  // Inactive users cannot sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`       // Last update timestamp.
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}
