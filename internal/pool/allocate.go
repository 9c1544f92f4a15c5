package pool

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/router-for-me/IPGenerator/internal/metrics"
	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/session"
	internalsettings "github.com/router-for-me/IPGenerator/internal/settings"
	"github.com/router-for-me/IPGenerator/internal/usage"
)

// Allocate selects amount unused proxies for the session user and stores them
// as the session's current batch. Nothing is marked used.
//
// Two concurrent allocations may return overlapping candidates; the claim step
// is the only exclusivity point.
func (s *Service) Allocate(ctx context.Context, sess session.Session, amount int) (*session.Batch, error) {
	if amount < 1 {
		metrics.RecordAllocation("invalid")
		return nil, fmt.Errorf("%w: amount must be at least 1", ErrInvalidAmount)
	}
	if maxAmount := internalsettings.IntValue(internalsettings.MaxAllocationKey); maxAmount > 0 && amount > maxAmount {
		metrics.RecordAllocation("invalid")
		return nil, fmt.Errorf("%w: amount must be at most %d", ErrInvalidAmount, maxAmount)
	}

	user := sess.User
	now := s.now()
	today, errToday := usage.TodayAmount(ctx, s.db, user.ID, now)
	if errToday != nil {
		return nil, fmt.Errorf("pool: load today usage: %w", errToday)
	}
	if today+amount > user.DailyLimit {
		metrics.RecordAllocation("limit")
		remaining := user.DailyLimit - today
		if remaining < 0 {
			remaining = 0
		}
		return nil, &LimitError{Remaining: remaining}
	}

	var candidates []models.Proxy
	if errFind := s.db.WithContext(ctx).
		Select("id", "proxy_string").
		Where("is_used = ?", false).
		Order("id ASC").
		Limit(amount).
		Find(&candidates).Error; errFind != nil {
		return nil, fmt.Errorf("pool: select candidates: %w", errFind)
	}
	if len(candidates) < amount {
		metrics.RecordAllocation("supply")
		return nil, &SupplyError{Available: len(candidates)}
	}

	ids := make([]uint64, 0, len(candidates))
	for _, row := range candidates {
		ids = append(ids, row.ID)
	}
	var stillUnused int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.Proxy{}).
		Where("id IN ? AND is_used = ?", ids, false).
		Count(&stillUnused).Error; errCount != nil {
		return nil, fmt.Errorf("pool: revalidate candidates: %w", errCount)
	}
	if int(stillUnused) < amount {
		metrics.RecordAllocation("contention")
		return nil, ErrContention
	}

	batch := &session.Batch{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Items:     make([]session.BatchItem, 0, len(candidates)),
		CreatedAt: now.UTC(),
	}
	for _, row := range candidates {
		batch.Items = append(batch.Items, session.BatchItem{ID: row.ID, ProxyString: row.ProxyString})
	}
	if errSave := s.sessions.SaveBatch(ctx, sess.ID, batch); errSave != nil {
		return nil, fmt.Errorf("pool: store batch: %w", errSave)
	}
	metrics.RecordAllocation("ok")
	return batch, nil
}

// CurrentBatch returns the session's outstanding batch.
func (s *Service) CurrentBatch(ctx context.Context, sess session.Session) (*session.Batch, error) {
	return s.sessions.LoadBatch(ctx, sess.ID)
}
