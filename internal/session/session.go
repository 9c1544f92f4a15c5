package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/router-for-me/IPGenerator/internal/models"
)

var (
	// ErrSessionNotFound means the session was logged out or never existed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoBatch means the session has no current batch.
	ErrNoBatch = errors.New("no current batch")
)

const (
	sessionKeyPrefix = "session:"
	batchKeyPrefix   = "batch:"
)

// User is the identity snapshot held by a session.
type User struct {
	ID         uint64 `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	DailyLimit int    `json:"daily_limit"`
	IsActive   bool   `json:"is_active"`
}

// UserFromModel snapshots a stored user.
func UserFromModel(u models.User) User {
	return User{
		ID:         u.ID,
		Username:   u.Username,
		Role:       u.Role,
		DailyLimit: u.DailyLimit,
		IsActive:   u.IsActive,
	}
}

// Session is the server-side record referenced by a session token.
type Session struct {
	ID        string    `json:"session_id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager persists sessions and their batches in a Store.
type Manager struct {
	store      Store
	sessionTTL time.Duration
	batchTTL   time.Duration
	now        func() time.Time
}

// NewManager builds a manager. A zero TTL stores entries without expiry.
func NewManager(store Store, sessionTTL, batchTTL time.Duration) *Manager {
	return &Manager{store: store, sessionTTL: sessionTTL, batchTTL: batchTTL, now: time.Now}
}

// Create starts a session for user.
func (m *Manager) Create(ctx context.Context, user models.User) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		User:      UserFromModel(user),
		CreatedAt: m.now().UTC(),
	}
	if errSave := m.Save(ctx, sess); errSave != nil {
		return Session{}, errSave
	}
	return sess, nil
}

// Save writes sess, replacing any previous record with the same id.
func (m *Manager) Save(ctx context.Context, sess Session) error {
	payload, errMarshal := json.Marshal(sess)
	if errMarshal != nil {
		return fmt.Errorf("session: encode: %w", errMarshal)
	}
	if errSet := m.store.Set(ctx, sessionKeyPrefix+sess.ID, payload, m.sessionTTL); errSet != nil {
		return fmt.Errorf("session: save: %w", errSet)
	}
	return nil
}

// Load restores the session with id.
func (m *Manager) Load(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrSessionNotFound
	}
	payload, errGet := m.store.Get(ctx, sessionKeyPrefix+id)
	if errors.Is(errGet, ErrNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if errGet != nil {
		return Session{}, fmt.Errorf("session: load: %w", errGet)
	}
	var sess Session
	if errUnmarshal := json.Unmarshal(payload, &sess); errUnmarshal != nil {
		return Session{}, fmt.Errorf("session: decode: %w", errUnmarshal)
	}
	return sess, nil
}

// Destroy removes the session and its batch.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if errDel := m.store.Delete(ctx, sessionKeyPrefix+id, batchKeyPrefix+id); errDel != nil {
		return fmt.Errorf("session: destroy: %w", errDel)
	}
	return nil
}

// SaveBatch makes batch the current batch of the session, replacing any other.
func (m *Manager) SaveBatch(ctx context.Context, sessionID string, batch *Batch) error {
	payload, errMarshal := json.Marshal(batch)
	if errMarshal != nil {
		return fmt.Errorf("session: encode batch: %w", errMarshal)
	}
	if errSet := m.store.Set(ctx, batchKeyPrefix+sessionID, payload, m.batchTTL); errSet != nil {
		return fmt.Errorf("session: save batch: %w", errSet)
	}
	return nil
}

// LoadBatch returns the current batch of the session.
func (m *Manager) LoadBatch(ctx context.Context, sessionID string) (*Batch, error) {
	payload, errGet := m.store.Get(ctx, batchKeyPrefix+sessionID)
	if errors.Is(errGet, ErrNotFound) {
		return nil, ErrNoBatch
	}
	if errGet != nil {
		return nil, fmt.Errorf("session: load batch: %w", errGet)
	}
	var batch Batch
	if errUnmarshal := json.Unmarshal(payload, &batch); errUnmarshal != nil {
		return nil, fmt.Errorf("session: decode batch: %w", errUnmarshal)
	}
	return &batch, nil
}

// UpdateBatch applies mutate to the current batch atomically and returns the
// result. A batch left with nothing outstanding is removed.
func (m *Manager) UpdateBatch(ctx context.Context, sessionID string, mutate func(*Batch) error) (*Batch, error) {
	var out *Batch
	errUpdate := m.store.Update(ctx, batchKeyPrefix+sessionID, m.batchTTL, func(current []byte) ([]byte, error) {
		var batch Batch
		if errUnmarshal := json.Unmarshal(current, &batch); errUnmarshal != nil {
			return nil, fmt.Errorf("session: decode batch: %w", errUnmarshal)
		}
		if errMutate := mutate(&batch); errMutate != nil {
			return nil, errMutate
		}
		out = &batch
		if batch.Done() {
			return nil, nil
		}
		return json.Marshal(&batch)
	})
	if errors.Is(errUpdate, ErrNotFound) {
		return nil, ErrNoBatch
	}
	if errUpdate != nil {
		return nil, fmt.Errorf("session: update batch: %w", errUpdate)
	}
	return out, nil
}

