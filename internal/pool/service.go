// Package pool allocates, claims and maintains the shared proxy inventory.
package pool

import (
	"time"

	"github.com/router-for-me/IPGenerator/internal/session"
	"gorm.io/gorm"
)

const defaultInsertBatchSize = 500

// Options tunes a Service.
type Options struct {
	// AuditClaimedProxies stores claimed strings on the usage log row.
	AuditClaimedProxies bool
	// InsertBatchSize bounds rows per INSERT during uploads.
	InsertBatchSize int
	// Now overrides the clock.
	Now func() time.Time
}

// Service owns every read and write against the proxies table.
type Service struct {
	db       *gorm.DB
	sessions *session.Manager

	auditClaims     bool
	insertBatchSize int
	now             func() time.Time
}

// NewService builds a Service.
func NewService(db *gorm.DB, sessions *session.Manager, opts Options) *Service {
	s := &Service{
		db:              db,
		sessions:        sessions,
		auditClaims:     opts.AuditClaimedProxies,
		insertBatchSize: opts.InsertBatchSize,
		now:             opts.Now,
	}
	if s.insertBatchSize <= 0 {
		s.insertBatchSize = defaultInsertBatchSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}
