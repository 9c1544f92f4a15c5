package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	internalsettings "github.com/router-for-me/IPGenerator/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// DefaultRetentionSchedule runs the cleaner daily at 03:30 local time.
	DefaultRetentionSchedule = "0 30 3 * * *"

	defaultLogsDeleteBatchSize = 5000
	maxDeleteBatchesPerRun     = 2000
)

// LogsRetentionCleaner deletes usage logs older than USAGE_LOGS_RETENTION_DAYS on a cron schedule.
type LogsRetentionCleaner struct {
	db        *gorm.DB
	schedule  string
	batchSize int
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func NewLogsRetentionCleaner(db *gorm.DB, schedule string) *LogsRetentionCleaner {
	if db == nil {
		return nil
	}
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	return &LogsRetentionCleaner{
		db:        db,
		schedule:  schedule,
		batchSize: defaultLogsDeleteBatchSize,
		now:       time.Now,
	}
}

// Start registers the cleanup job and starts the scheduler.
func (c *LogsRetentionCleaner) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return errors.New("usage logs retention cleaner already started")
	}

	scheduler := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, errAdd := scheduler.AddFunc(c.schedule, func() {
		if _, errClean := c.CleanupOnce(ctx); errClean != nil {
			log.WithError(errClean).Warn("usage logs retention cleaner: run failed")
		}
	}); errAdd != nil {
		return errAdd
	}
	scheduler.Start()
	c.cron = scheduler
	log.Infof("usage logs retention cleaner started (schedule=%q)", c.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (c *LogsRetentionCleaner) Stop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	scheduler := c.cron
	c.cron = nil
	c.mu.Unlock()
	if scheduler == nil {
		return
	}
	<-scheduler.Stop().Done()
}

// CleanupOnce deletes expired usage logs and returns how many rows went away.
// A retention of zero days keeps everything.
func (c *LogsRetentionCleaner) CleanupOnce(ctx context.Context) (int64, error) {
	if c == nil || c.db == nil {
		return 0, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	retentionDays := internalsettings.IntValue(internalsettings.UsageLogsRetentionDaysKey)
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := c.now().UTC().AddDate(0, 0, -retentionDays)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			return deletedTotal, ctx.Err()
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			return deletedTotal, err
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("usage logs retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deletedTotal, nil
}

func (c *LogsRetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultLogsDeleteBatchSize
	}

	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM usage_logs
		WHERE id IN (
			SELECT id FROM usage_logs
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
