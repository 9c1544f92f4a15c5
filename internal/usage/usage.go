package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/router-for-me/IPGenerator/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DayStart returns local midnight of the day containing now.
func DayStart(now time.Time) time.Time {
	loc := time.Local
	localNow := now.In(loc)
	return time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
}

// TodayAmount sums the user's usage log amounts since local midnight.
func TodayAmount(ctx context.Context, db *gorm.DB, userID uint64, now time.Time) (int, error) {
	if db == nil {
		return 0, errors.New("nil db")
	}
	var total int64
	if errSum := db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("user_id = ? AND created_at >= ?", userID, DayStart(now).UTC()).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; errSum != nil {
		return 0, errSum
	}
	return int(total), nil
}

// Append writes one usage log row. claimed is stored only when non-nil.
func Append(ctx context.Context, db *gorm.DB, userID uint64, amount int, claimed []string, now time.Time) (*models.UsageLog, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	row := models.UsageLog{
		UserID:    userID,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}
	if claimed != nil {
		encoded, errMarshal := json.Marshal(claimed)
		if errMarshal != nil {
			return nil, fmt.Errorf("usage: encode claimed proxies: %w", errMarshal)
		}
		row.Proxies = datatypes.JSON(encoded)
	}
	if errCreate := db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("usage: append log: %w", errCreate)
	}
	return &row, nil
}

// Accrue adds amount to the usage log of batchID, creating the row on the
// first claim of the batch. The increment runs in the database, so concurrent
// claims on one batch never lose a count. When claimed is non-nil it replaces
// the audited list.
func Accrue(ctx context.Context, db *gorm.DB, userID uint64, batchID string, amount int, claimed []string, now time.Time) error {
	if db == nil {
		return errors.New("nil db")
	}
	if batchID == "" {
		_, errAppend := Append(ctx, db, userID, amount, claimed, now)
		return errAppend
	}
	row := models.UsageLog{
		UserID:    userID,
		BatchID:   &batchID,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}
	set := clause.Set{{Column: clause.Column{Name: "amount"}, Value: gorm.Expr("usage_logs.amount + excluded.amount")}}
	if claimed != nil {
		encoded, errMarshal := json.Marshal(claimed)
		if errMarshal != nil {
			return fmt.Errorf("usage: encode claimed proxies: %w", errMarshal)
		}
		row.Proxies = datatypes.JSON(encoded)
		set = append(set, clause.Assignment{Column: clause.Column{Name: "proxies"}, Value: gorm.Expr("excluded.proxies")})
	}
	if errUpsert := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "batch_id"}}, DoUpdates: set}).
		Create(&row).Error; errUpsert != nil {
		return fmt.Errorf("usage: accrue batch %s: %w", batchID, errUpsert)
	}
	return nil
}
