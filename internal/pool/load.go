package pool

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/router-for-me/IPGenerator/internal/metrics"
	"github.com/router-for-me/IPGenerator/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WipeConfirmation is the phrase an operator must type to wipe the pool.
const WipeConfirmation = "DELETE ALL PROXIES"

// ParseProxyLines splits an upload into trimmed, non-blank lines in file order.
func ParseProxyLines(r io.Reader) ([]string, error) {
	raw, errRead := io.ReadAll(r)
	if errRead != nil {
		return nil, errRead
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out, nil
}

// LoadRequest describes one uploaded file.
type LoadRequest struct {
	UploaderID uint64
	FileName   string
	Position   string
	Content    io.Reader
}

// Load inserts one proxy per non-blank line and records the upload. The
// requested position is ignored: new rows are always appended.
func (s *Service) Load(ctx context.Context, req LoadRequest) (*models.UploadHistory, error) {
	lines, errParse := ParseProxyLines(req.Content)
	if errParse != nil {
		return nil, fmt.Errorf("pool: read upload: %w", errParse)
	}
	if len(lines) == 0 {
		return nil, ErrNoValidEntries
	}
	if position := strings.ToLower(strings.TrimSpace(req.Position)); position == models.PositionPrepend {
		log.WithFields(log.Fields{"user_id": req.UploaderID, "file": req.FileName}).
			Warn("pool: prepend upload requested, appending instead")
	}

	now := s.now().UTC()
	rows := make([]models.Proxy, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, models.Proxy{ProxyString: line, CreatedAt: now})
	}
	history := models.UploadHistory{
		UploadedBy: req.UploaderID,
		FileName:   strings.TrimSpace(req.FileName),
		ProxyCount: len(rows),
		Position:   models.PositionAppend,
		CreatedAt:  now,
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.CreateInBatches(&rows, s.insertBatchSize).Error; errCreate != nil {
			return fmt.Errorf("pool: insert proxies: %w", errCreate)
		}
		if errHistory := tx.Create(&history).Error; errHistory != nil {
			return fmt.Errorf("pool: record upload: %w", errHistory)
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	metrics.ProxiesLoadedTotal.Add(float64(len(rows)))
	log.WithFields(log.Fields{"user_id": req.UploaderID, "file": history.FileName, "count": len(rows)}).Info("pool: proxies uploaded")
	return &history, nil
}

// Count returns the number of proxy rows.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var total int64
	if errCount := s.db.WithContext(ctx).Model(&models.Proxy{}).Count(&total).Error; errCount != nil {
		return 0, fmt.Errorf("pool: count proxies: %w", errCount)
	}
	return total, nil
}

// Wipe deletes every proxy row after checking both confirmations. It returns
// the count re-queried afterwards.
func (s *Service) Wipe(ctx context.Context, confirmCount int64, confirmPhrase string) (int64, error) {
	if strings.TrimSpace(confirmPhrase) != WipeConfirmation {
		return 0, fmt.Errorf("%w: type %q to confirm", ErrConfirmationMismatch, WipeConfirmation)
	}
	current, errCount := s.Count(ctx)
	if errCount != nil {
		return 0, errCount
	}
	if confirmCount != current {
		return current, fmt.Errorf("%w: pool holds %d proxies", ErrConfirmationMismatch, current)
	}

	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Proxy{})
	if res.Error != nil {
		return 0, fmt.Errorf("pool: wipe proxies: %w", res.Error)
	}
	log.WithField("deleted", res.RowsAffected).Warn("pool: proxy pool wiped")
	return s.Count(ctx)
}
