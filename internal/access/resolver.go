package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/router-for-me/IPGenerator/internal/models"
	"gorm.io/gorm"
)

// ErrMissingAccessKey indicates an empty access key.
var ErrMissingAccessKey = errors.New("missing access key")

// ErrInvalidAccessKey indicates no active user owns the access key.
var ErrInvalidAccessKey = errors.New("invalid access key")

// Resolver maps access keys to active users.
type Resolver struct {
	db *gorm.DB
}

// NewResolver builds a resolver over db.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the active user owning key. Surrounding whitespace is ignored.
func (r *Resolver) Resolve(ctx context.Context, key string) (models.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return models.User{}, ErrMissingAccessKey
	}
	if r == nil || r.db == nil {
		return models.User{}, errors.New("access resolver: nil db")
	}

	var user models.User
	err := r.db.WithContext(ctx).
		Where("access_key = ? AND is_active = ?", key, true).
		First(&user).Error
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.User{}, ErrInvalidAccessKey
	default:
		return models.User{}, fmt.Errorf("access resolver: query failed: %w", err)
	}
}

// ExtractBearer returns the bearer token of the request, falling back to the
// X-Session-Token header.
func ExtractBearer(r *http.Request) string {
	return extractToken(r, "Authorization", "Bearer", "X-Session-Token")
}

// extractToken reads a token from header with an optional scheme, then from fallbackHeader.
func extractToken(r *http.Request, header string, scheme string, fallbackHeader string) string {
	if r == nil {
		return ""
	}
	header = strings.TrimSpace(header)
	scheme = strings.TrimSpace(scheme)
	if header == "" {
		header = "Authorization"
	}
	val := strings.TrimSpace(r.Header.Get(header))
	if val != "" && scheme != "" {
		prefix := scheme + " "
		if len(val) > len(prefix) && strings.EqualFold(val[:len(prefix)], prefix) {
			return strings.TrimSpace(val[len(prefix):])
		}
	}
	if val != "" && scheme == "" {
		return val
	}
	if fallbackHeader != "" {
		if v := strings.TrimSpace(r.Header.Get(fallbackHeader)); v != "" {
			return v
		}
	}
	return ""
}
