// Package accounts implements user administration.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/router-for-me/IPGenerator/internal/db"
	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/security"
	internalsettings "github.com/router-for-me/IPGenerator/internal/settings"
	"github.com/router-for-me/IPGenerator/internal/util"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("user not found")
	ErrDuplicate        = errors.New("username or access key already exists")
	ErrInvalidInput     = errors.New("invalid user input")
	ErrProtectedAccount = errors.New("admin accounts cannot be deleted")
)

// Service manages user rows.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService builds a Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// CreateInput holds the fields of a new user. Role defaults to user and
// DailyLimit to the DEFAULT_DAILY_LIMIT setting.
type CreateInput struct {
	Username   string
	AccessKey  string
	Role       string
	DailyLimit *int
}

// UpdateInput holds optional in-place edits.
type UpdateInput struct {
	Username   *string
	AccessKey  *string
	Role       *string
	DailyLimit *int
}

// List returns users newest first, optionally filtered by a username substring.
func (s *Service) List(ctx context.Context, usernameQ string) ([]models.User, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if usernameQ = strings.TrimSpace(usernameQ); usernameQ != "" {
		q = dbutil.WhereContainsFold(q, "username", usernameQ)
	}
	var rows []models.User
	if errFind := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("accounts: list users: %w", errFind)
	}
	return rows, nil
}

// Get loads one user.
func (s *Service) Get(ctx context.Context, id uint64) (models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.User{}, ErrNotFound
	}
	if errFind != nil {
		return models.User{}, fmt.Errorf("accounts: load user: %w", errFind)
	}
	return user, nil
}

// Create inserts a new active user.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	accessKey := strings.TrimSpace(in.AccessKey)
	if username == "" {
		return models.User{}, fmt.Errorf("%w: missing username", ErrInvalidInput)
	}
	if accessKey == "" {
		return models.User{}, fmt.Errorf("%w: missing access key", ErrInvalidInput)
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = models.RoleUser
	}
	if !models.ValidRole(role) {
		return models.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	limit := internalsettings.IntValue(internalsettings.DefaultDailyLimitKey)
	if in.DailyLimit != nil {
		limit = *in.DailyLimit
	}
	if limit < 0 {
		return models.User{}, fmt.Errorf("%w: daily limit must be >= 0", ErrInvalidInput)
	}
	if errDup := s.ensureUnique(ctx, 0, username, accessKey); errDup != nil {
		return models.User{}, errDup
	}

	now := s.now().UTC()
	user := models.User{
		Username:   username,
		AccessKey:  accessKey,
		Role:       role,
		DailyLimit: limit,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("accounts: create user: %w", errCreate)
	}
	if limit == 0 {
		// The column default would otherwise replace an explicit zero quota.
		if errZero := s.db.WithContext(ctx).Model(&user).Update("daily_limit", 0).Error; errZero != nil {
			return models.User{}, fmt.Errorf("accounts: set daily limit: %w", errZero)
		}
		user.DailyLimit = 0
	}
	log.WithFields(log.Fields{"user_id": user.ID, "username": user.Username, "role": user.Role}).Info("accounts: user created")
	return user, nil
}

// Update edits the given fields in place.
func (s *Service) Update(ctx context.Context, id uint64, in UpdateInput) (models.User, error) {
	current, errGet := s.Get(ctx, id)
	if errGet != nil {
		return models.User{}, errGet
	}
	updates := map[string]any{}
	username, accessKey := current.Username, current.AccessKey
	if in.Username != nil {
		username = strings.TrimSpace(*in.Username)
		if username == "" {
			return models.User{}, fmt.Errorf("%w: missing username", ErrInvalidInput)
		}
		updates["username"] = username
	}
	if in.AccessKey != nil {
		accessKey = strings.TrimSpace(*in.AccessKey)
		if accessKey == "" {
			return models.User{}, fmt.Errorf("%w: missing access key", ErrInvalidInput)
		}
		updates["access_key"] = accessKey
	}
	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		if !models.ValidRole(role) {
			return models.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
		}
		updates["role"] = role
	}
	if in.DailyLimit != nil {
		if *in.DailyLimit < 0 {
			return models.User{}, fmt.Errorf("%w: daily limit must be >= 0", ErrInvalidInput)
		}
		updates["daily_limit"] = *in.DailyLimit
	}
	if len(updates) == 0 {
		return current, nil
	}
	if errDup := s.ensureUnique(ctx, id, username, accessKey); errDup != nil {
		return models.User{}, errDup
	}
	return s.apply(ctx, id, updates)
}

// SetDailyLimit changes only the quota.
func (s *Service) SetDailyLimit(ctx context.Context, id uint64, limit int) (models.User, error) {
	return s.Update(ctx, id, UpdateInput{DailyLimit: &limit})
}

// ToggleActive flips is_active.
func (s *Service) ToggleActive(ctx context.Context, id uint64) (models.User, error) {
	current, errGet := s.Get(ctx, id)
	if errGet != nil {
		return models.User{}, errGet
	}
	return s.apply(ctx, id, map[string]any{"is_active": !current.IsActive})
}

// RegenerateKey replaces the access key with a fresh random one.
func (s *Service) RegenerateKey(ctx context.Context, id uint64) (models.User, error) {
	if _, errGet := s.Get(ctx, id); errGet != nil {
		return models.User{}, errGet
	}
	key, errKey := security.GenerateAccessKey()
	if errKey != nil {
		return models.User{}, errKey
	}
	user, errApply := s.apply(ctx, id, map[string]any{"access_key": key})
	if errApply != nil {
		return models.User{}, errApply
	}
	log.WithFields(log.Fields{"user_id": id, "access_key": util.HideAccessKey(key)}).Info("accounts: access key regenerated")
	return user, nil
}

// Delete removes a non-admin user.
func (s *Service) Delete(ctx context.Context, id uint64) error {
	current, errGet := s.Get(ctx, id)
	if errGet != nil {
		return errGet
	}
	if current.Role == models.RoleAdmin {
		return ErrProtectedAccount
	}
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return fmt.Errorf("accounts: delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	log.WithFields(log.Fields{"user_id": id, "username": current.Username}).Info("accounts: user deleted")
	return nil
}

func (s *Service) apply(ctx context.Context, id uint64, updates map[string]any) (models.User, error) {
	updates["updated_at"] = s.now().UTC()
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return models.User{}, ErrDuplicate
		}
		return models.User{}, fmt.Errorf("accounts: update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.User{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) ensureUnique(ctx context.Context, selfID uint64, username, accessKey string) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("(username = ? OR access_key = ?)", username, accessKey)
	if selfID != 0 {
		q = q.Where("id <> ?", selfID)
	}
	if errCount := q.Count(&count).Error; errCount != nil {
		return fmt.Errorf("accounts: check uniqueness: %w", errCount)
	}
	if count > 0 {
		return ErrDuplicate
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
