package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/IPGenerator/internal/models"
	internalsettings "github.com/router-for-me/IPGenerator/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openUsageTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:usage_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, errOpen)
	require.NoError(t, db.AutoMigrate(&models.UsageLog{}, &models.Setting{}))
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })
	return db
}

func TestTodayAmountCountsOnlySinceLocalMidnight(t *testing.T) {
	db := openUsageTestDB(t)
	ctx := context.Background()
	now := time.Now()

	_, errAppend := Append(ctx, db, 1, 15, nil, now)
	require.NoError(t, errAppend)
	_, errAppend = Append(ctx, db, 1, 5, nil, now)
	require.NoError(t, errAppend)
	_, errAppend = Append(ctx, db, 1, 100, nil, DayStart(now).Add(-time.Minute))
	require.NoError(t, errAppend)
	_, errAppend = Append(ctx, db, 2, 7, nil, now)
	require.NoError(t, errAppend)

	total, errToday := TodayAmount(ctx, db, 1, now)
	require.NoError(t, errToday)
	assert.Equal(t, 20, total)

	none, errToday := TodayAmount(ctx, db, 99, now)
	require.NoError(t, errToday)
	assert.Equal(t, 0, none)
}

func TestAppendStoresClaimedProxiesWhenGiven(t *testing.T) {
	db := openUsageTestDB(t)
	ctx := context.Background()

	row, errAppend := Append(ctx, db, 3, 2, []string{"1.1.1.1:80", "2.2.2.2:80"}, time.Now())
	require.NoError(t, errAppend)

	var stored models.UsageLog
	require.NoError(t, db.First(&stored, row.ID).Error)
	var proxies []string
	require.NoError(t, json.Unmarshal(stored.Proxies, &proxies))
	assert.Equal(t, []string{"1.1.1.1:80", "2.2.2.2:80"}, proxies)

	bare, errAppend := Append(ctx, db, 3, 1, nil, time.Now())
	require.NoError(t, errAppend)
	require.NoError(t, db.First(&stored, bare.ID).Error)
	assert.Empty(t, stored.Proxies)
}

func TestAccrueKeepsOneRowPerBatch(t *testing.T) {
	db := openUsageTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, Accrue(ctx, db, 4, "batch-a", 1, nil, now))
	require.NoError(t, Accrue(ctx, db, 4, "batch-a", 1, nil, now))
	require.NoError(t, Accrue(ctx, db, 4, "batch-a", 3, []string{"a", "b", "c", "d", "e"}, now))
	require.NoError(t, Accrue(ctx, db, 4, "batch-b", 2, nil, now))

	var rows []models.UsageLog
	require.NoError(t, db.Order("id ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, 5, rows[0].Amount)
	require.NotNil(t, rows[0].BatchID)
	assert.Equal(t, "batch-a", *rows[0].BatchID)
	var audited []string
	require.NoError(t, json.Unmarshal(rows[0].Proxies, &audited))
	assert.Len(t, audited, 5)
	assert.Equal(t, 2, rows[1].Amount)

	today, errToday := TodayAmount(ctx, db, 4, now)
	require.NoError(t, errToday)
	assert.Equal(t, 7, today)
}

func TestCleanupOnceDeletesOnlyRowsOlderThanCutoff(t *testing.T) {
	db := openUsageTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	_, errAppend := Append(ctx, db, 1, 1, nil, now.AddDate(0, 0, -40))
	require.NoError(t, errAppend)
	_, errAppend = Append(ctx, db, 1, 1, nil, now.AddDate(0, 0, -31))
	require.NoError(t, errAppend)
	_, errAppend = Append(ctx, db, 1, 1, nil, now.AddDate(0, 0, -5))
	require.NoError(t, errAppend)

	cleaner := NewLogsRetentionCleaner(db, "")
	cleaner.now = func() time.Time { return now }

	deleted, errClean := cleaner.CleanupOnce(ctx)
	require.NoError(t, errClean)
	assert.Equal(t, int64(0), deleted, "zero retention keeps everything")

	require.NoError(t, internalsettings.Upsert(ctx, db, internalsettings.UsageLogsRetentionDaysKey, 30))
	deleted, errClean = cleaner.CleanupOnce(ctx)
	require.NoError(t, errClean)
	assert.Equal(t, int64(2), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.UsageLog{}).Count(&remaining).Error)
	assert.Equal(t, int64(1), remaining)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := openUsageTestDB(t)
	cleaner := NewLogsRetentionCleaner(db, "not a schedule")
	require.Error(t, cleaner.Start(context.Background()))

	ok := NewLogsRetentionCleaner(db, "")
	require.NoError(t, ok.Start(context.Background()))
	ok.Stop()
}
