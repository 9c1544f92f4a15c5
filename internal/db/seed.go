package db

import (
	"context"
	"fmt"

	"github.com/router-for-me/IPGenerator/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// demoUsers are the accounts created by SeedDemoUsers on an empty database.
var demoUsers = []models.User{
	{Username: "admin", AccessKey: "admin123", Role: models.RoleAdmin, DailyLimit: 10000, IsActive: true},
	{Username: "manager", AccessKey: "manager123", Role: models.RoleManager, DailyLimit: 2000, IsActive: true},
	{Username: "user1", AccessKey: "user1key", Role: models.RoleUser, DailyLimit: models.DefaultDailyLimit, IsActive: true},
	{Username: "user2", AccessKey: "user2key", Role: models.RoleUser, DailyLimit: models.DefaultDailyLimit, IsActive: true},
	{Username: "user3", AccessKey: "user3key", Role: models.RoleUser, DailyLimit: models.DefaultDailyLimit, IsActive: true},
}

// SeedDemoUsers inserts the demo accounts when the users table is empty.
// It returns the number of rows created.
func SeedDemoUsers(ctx context.Context, conn *gorm.DB) (int, error) {
	if conn == nil {
		return 0, fmt.Errorf("db: nil connection")
	}
	var count int64
	if errCount := conn.WithContext(ctx).Model(&models.User{}).Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("db: count users: %w", errCount)
	}
	if count > 0 {
		return 0, nil
	}
	rows := make([]models.User, len(demoUsers))
	copy(rows, demoUsers)
	if errCreate := conn.WithContext(ctx).Create(&rows).Error; errCreate != nil {
		return 0, fmt.Errorf("db: seed users: %w", errCreate)
	}
	log.Infof("seeded %d demo users", len(rows))
	return len(rows), nil
}
