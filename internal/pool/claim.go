package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/router-for-me/IPGenerator/internal/metrics"
	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/session"
	"github.com/router-for-me/IPGenerator/internal/usage"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ClaimResult describes a finished claim.
type ClaimResult struct {
	Proxies     []string       `json:"proxies"`
	BatchClosed bool           `json:"batch_closed"`
	TodayUsage  int            `json:"today_usage"`
	Batch       *session.Batch `json:"batch,omitempty"`
}

// errBatchReplaced aborts a batch update when a newer allocation took its place.
var errBatchReplaced = errors.New("pool: batch replaced")

// ClaimOne claims a single proxy of the current batch. The claim is added to
// the batch's usage log right away; the batch is cleared once nothing is
// outstanding.
//
// The steps after the conditional update run as independent statements; a
// failure leaves earlier steps applied.
func (s *Service) ClaimOne(ctx context.Context, sess session.Session, proxyID uint64) (*ClaimResult, error) {
	batch, errBatch := s.sessions.LoadBatch(ctx, sess.ID)
	if errBatch != nil {
		return nil, errBatch
	}
	if !batch.IsOutstanding(proxyID) {
		return nil, ErrNotInBatch
	}

	now := s.now().UTC()
	userID := sess.User.ID
	res := s.db.WithContext(ctx).
		Model(&models.Proxy{}).
		Where("id = ? AND is_used = ?", proxyID, false).
		Updates(map[string]any{"is_used": true, "used_by": userID, "used_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("pool: mark proxy used: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.RecordClaim("single", "conflict", 0)
		if _, errDrop := s.updateBatch(ctx, sess, batch.ID, func(b *session.Batch) { b.Drop(proxyID) }); errDrop != nil {
			return nil, errDrop
		}
		return nil, ErrAlreadyClaimed
	}

	item, _ := batch.Item(proxyID)
	proxyString := item.ProxyString
	var row models.Proxy
	if errFind := s.db.WithContext(ctx).Select("id", "proxy_string").First(&row, proxyID).Error; errFind == nil {
		proxyString = row.ProxyString
	} else {
		log.WithError(errFind).WithField("proxy_id", proxyID).Warn("pool: re-read claimed proxy failed")
	}
	if errDelete := s.db.WithContext(ctx).Delete(&models.Proxy{}, proxyID).Error; errDelete != nil {
		log.WithError(errDelete).WithFields(log.Fields{"proxy_id": proxyID, "user_id": userID}).Warn("pool: delete claimed proxy failed")
	}

	batch.MarkClaimed(proxyID)
	if errLog := usage.Accrue(ctx, s.db, userID, batch.ID, 1, s.auditList(batch), now); errLog != nil {
		log.WithError(errLog).WithFields(log.Fields{"user_id": userID, "op": "claim_one"}).Error("pool: accrue usage log failed")
		return nil, errLog
	}
	metrics.RecordClaim("single", "ok", 1)

	updated, errUpdate := s.updateBatch(ctx, sess, batch.ID, func(b *session.Batch) { b.MarkClaimed(proxyID) })
	if errUpdate != nil {
		log.WithError(errUpdate).WithFields(log.Fields{"proxy_id": proxyID, "user_id": userID}).Warn("pool: record claim in batch failed")
	}

	today, errToday := usage.TodayAmount(ctx, s.db, userID, s.now())
	if errToday != nil {
		return nil, fmt.Errorf("pool: load today usage: %w", errToday)
	}
	out := &ClaimResult{Proxies: []string{proxyString}, BatchClosed: updated == nil || updated.Done(), TodayUsage: today}
	if !out.BatchClosed {
		out.Batch = updated
	}
	return out, nil
}

// updateBatch applies mutate to the session's batch if it is still batchID.
// A nil batch means it is gone: closed, replaced or expired.
func (s *Service) updateBatch(ctx context.Context, sess session.Session, batchID string, mutate func(*session.Batch)) (*session.Batch, error) {
	updated, errUpdate := s.sessions.UpdateBatch(ctx, sess.ID, func(b *session.Batch) error {
		if b.ID != batchID {
			return errBatchReplaced
		}
		mutate(b)
		return nil
	})
	switch {
	case errUpdate == nil:
		return updated, nil
	case errors.Is(errUpdate, session.ErrNoBatch), errors.Is(errUpdate, errBatchReplaced):
		return nil, nil
	default:
		return nil, fmt.Errorf("pool: store batch: %w", errUpdate)
	}
}

// ClaimBatch claims every outstanding proxy of the current batch in one
// transaction and adds them to the batch's usage log. If any of them was taken
// meanwhile nothing changes.
func (s *Service) ClaimBatch(ctx context.Context, sess session.Session) (*ClaimResult, error) {
	batch, errBatch := s.sessions.LoadBatch(ctx, sess.ID)
	if errBatch != nil {
		return nil, errBatch
	}
	outstanding := batch.Outstanding()
	if len(outstanding) == 0 {
		return nil, session.ErrNoBatch
	}
	ids := batch.OutstandingIDs()
	userID := sess.User.ID
	now := s.now().UTC()

	proxies := make([]string, 0, len(outstanding))
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Proxy{}).
			Where("id IN ? AND is_used = ?", ids, false).
			Updates(map[string]any{"is_used": true, "used_by": userID, "used_at": now})
		if res.Error != nil {
			return fmt.Errorf("pool: mark proxies used: %w", res.Error)
		}
		if int(res.RowsAffected) != len(ids) {
			return ErrSomeAlreadyUsed
		}

		var rows []models.Proxy
		if errFind := tx.Select("id", "proxy_string").Where("id IN ?", ids).Find(&rows).Error; errFind != nil {
			return fmt.Errorf("pool: read claimed proxies: %w", errFind)
		}
		byID := make(map[uint64]string, len(rows))
		for _, row := range rows {
			byID[row.ID] = row.ProxyString
		}
		for _, item := range outstanding {
			value, ok := byID[item.ID]
			if !ok {
				value = item.ProxyString
			}
			proxies = append(proxies, value)
		}

		if errDelete := tx.Where("id IN ?", ids).Delete(&models.Proxy{}).Error; errDelete != nil {
			return fmt.Errorf("pool: delete claimed proxies: %w", errDelete)
		}

		for _, id := range ids {
			batch.MarkClaimed(id)
		}
		if errLog := usage.Accrue(ctx, tx, userID, batch.ID, len(ids), s.auditList(batch), now); errLog != nil {
			return errLog
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrSomeAlreadyUsed) {
			metrics.RecordClaim("batch", "conflict", 0)
		} else {
			log.WithError(errTx).WithFields(log.Fields{"user_id": userID, "op": "claim_batch"}).Error("pool: batch claim failed")
		}
		return nil, errTx
	}
	metrics.RecordClaim("batch", "ok", len(proxies))

	if _, errClear := s.updateBatch(ctx, sess, batch.ID, func(b *session.Batch) {
		for _, id := range ids {
			b.MarkClaimed(id)
		}
	}); errClear != nil {
		log.WithError(errClear).WithField("user_id", userID).Warn("pool: clear batch failed")
	}
	today, errToday := usage.TodayAmount(ctx, s.db, userID, s.now())
	if errToday != nil {
		return nil, fmt.Errorf("pool: load today usage: %w", errToday)
	}
	return &ClaimResult{Proxies: proxies, BatchClosed: true, TodayUsage: today}, nil
}

// auditList returns the claimed strings of batch, or nil when auditing is off.
func (s *Service) auditList(batch *session.Batch) []string {
	if !s.auditClaims {
		return nil
	}
	out := make([]string, 0, len(batch.Claimed))
	for _, id := range batch.Claimed {
		if item, ok := batch.Item(id); ok {
			out = append(out, item.ProxyString)
		}
	}
	return out
}
