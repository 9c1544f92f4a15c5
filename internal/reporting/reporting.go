// Package reporting aggregates usage logs per user and for the whole system.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/usage"
	"gorm.io/gorm"
)

// UserStats is one row of the per-user usage report.
type UserStats struct {
	UserID     uint64     `json:"user_id"`
	Username   string     `json:"username"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	DailyLimit int        `json:"daily_limit"`
	Today      int        `json:"today"`
	Week       int        `json:"week"`
	AllTime    int        `json:"all_time"`
	Events     int        `json:"events"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

// SystemStats summarizes users and inventory.
type SystemStats struct {
	TotalUsers      int64 `json:"total_users"`
	ActiveUsers     int64 `json:"active_users"`
	TotalProxies    int64 `json:"total_proxies"`
	UsedProxies     int64 `json:"used_proxies"`
	UnusedProxies   int64 `json:"unused_proxies"`
	UsageToday      int64 `json:"usage_today"`
	UploadsOnRecord int64 `json:"uploads_on_record"`
}

// Service reads reports.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService builds a Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// UserUsage loads every user and every usage log and joins them in memory.
// Today starts at local midnight; the week window starts seven days before that.
func (s *Service) UserUsage(ctx context.Context) ([]UserStats, error) {
	var users []models.User
	if errFind := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&users).Error; errFind != nil {
		return nil, fmt.Errorf("reporting: load users: %w", errFind)
	}
	var logs []models.UsageLog
	if errFind := s.db.WithContext(ctx).Select("id", "user_id", "amount", "created_at").Find(&logs).Error; errFind != nil {
		return nil, fmt.Errorf("reporting: load usage logs: %w", errFind)
	}

	todayStart := usage.DayStart(s.now())
	weekStart := todayStart.AddDate(0, 0, -7)

	byUser := make(map[uint64]*UserStats, len(users))
	out := make([]UserStats, len(users))
	for i, u := range users {
		out[i] = UserStats{
			UserID:     u.ID,
			Username:   u.Username,
			Role:       u.Role,
			IsActive:   u.IsActive,
			DailyLimit: u.DailyLimit,
		}
		byUser[u.ID] = &out[i]
	}
	for _, entry := range logs {
		stats, ok := byUser[entry.UserID]
		if !ok {
			continue
		}
		stats.AllTime += entry.Amount
		stats.Events++
		if !entry.CreatedAt.Before(weekStart) {
			stats.Week += entry.Amount
		}
		if !entry.CreatedAt.Before(todayStart) {
			stats.Today += entry.Amount
		}
		if stats.LastUsedAt == nil || entry.CreatedAt.After(*stats.LastUsedAt) {
			last := entry.CreatedAt
			stats.LastUsedAt = &last
		}
	}
	return out, nil
}

// System counts users, proxies and today's usage.
func (s *Service) System(ctx context.Context) (SystemStats, error) {
	var stats SystemStats
	db := s.db.WithContext(ctx)
	if errCount := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; errCount != nil {
		return SystemStats{}, fmt.Errorf("reporting: count users: %w", errCount)
	}
	if errCount := db.Model(&models.User{}).Where("is_active = ?", true).Count(&stats.ActiveUsers).Error; errCount != nil {
		return SystemStats{}, fmt.Errorf("reporting: count active users: %w", errCount)
	}
	if errCount := db.Model(&models.Proxy{}).Count(&stats.TotalProxies).Error; errCount != nil {
		return SystemStats{}, fmt.Errorf("reporting: count proxies: %w", errCount)
	}
	if errCount := db.Model(&models.Proxy{}).Where("is_used = ?", true).Count(&stats.UsedProxies).Error; errCount != nil {
		return SystemStats{}, fmt.Errorf("reporting: count used proxies: %w", errCount)
	}
	stats.UnusedProxies = stats.TotalProxies - stats.UsedProxies
	if errSum := db.Model(&models.UsageLog{}).
		Where("created_at >= ?", usage.DayStart(s.now()).UTC()).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.UsageToday).Error; errSum != nil {
		return SystemStats{}, fmt.Errorf("reporting: sum usage: %w", errSum)
	}
	if errCount := db.Model(&models.UploadHistory{}).Count(&stats.UploadsOnRecord).Error; errCount != nil {
		return SystemStats{}, fmt.Errorf("reporting: count uploads: %w", errCount)
	}
	return stats, nil
}
