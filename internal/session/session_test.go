package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/router-for-me/IPGenerator/internal/models"
)

func TestManagerCreateLoadDestroy(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 0, time.Hour)

	sess, errCreate := m.Create(ctx, models.User{ID: 7, Username: "user1", Role: models.RoleUser, DailyLimit: 500, IsActive: true})
	if errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if sess.ID == "" {
		t.Fatalf("expected session id")
	}

	loaded, errLoad := m.Load(ctx, sess.ID)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if loaded.User.ID != 7 || loaded.User.Username != "user1" {
		t.Fatalf("unexpected user snapshot: %+v", loaded.User)
	}

	batch := &Batch{ID: "b1", UserID: 7, Items: []BatchItem{{ID: 1, ProxyString: "1.1.1.1:80"}}}
	if errSave := m.SaveBatch(ctx, sess.ID, batch); errSave != nil {
		t.Fatalf("save batch: %v", errSave)
	}

	if errDestroy := m.Destroy(ctx, sess.ID); errDestroy != nil {
		t.Fatalf("destroy: %v", errDestroy)
	}
	if _, errLoad = m.Load(ctx, sess.ID); !errors.Is(errLoad, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", errLoad)
	}
	if _, errBatch := m.LoadBatch(ctx, sess.ID); !errors.Is(errBatch, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch after logout, got %v", errBatch)
	}
}

func TestSaveBatchReplacesPrevious(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 0, time.Hour)

	_ = m.SaveBatch(ctx, "s", &Batch{ID: "first"})
	_ = m.SaveBatch(ctx, "s", &Batch{ID: "second"})

	got, errLoad := m.LoadBatch(ctx, "s")
	if errLoad != nil {
		t.Fatalf("load batch: %v", errLoad)
	}
	if got.ID != "second" {
		t.Fatalf("expected second batch, got %s", got.ID)
	}
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Set(ctx, "k", []byte("v"), time.Minute)
	if _, errGet := store.Get(ctx, "k"); errGet != nil {
		t.Fatalf("expected value, got %v", errGet)
	}
	now = now.Add(time.Minute)
	if _, errGet := store.Get(ctx, "k"); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", errGet)
	}
}

func TestBatchOutstandingTracking(t *testing.T) {
	b := &Batch{Items: []BatchItem{{ID: 1}, {ID: 2}, {ID: 3}}}

	b.MarkClaimed(1)
	b.Drop(2)
	b.MarkClaimed(1)
	b.MarkClaimed(99)

	if got := b.OutstandingIDs(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected [3], got %v", got)
	}
	if len(b.Claimed) != 1 {
		t.Fatalf("expected 1 claimed, got %d", len(b.Claimed))
	}
	if b.Done() {
		t.Fatalf("expected batch still open")
	}
	b.MarkClaimed(3)
	if !b.Done() {
		t.Fatalf("expected batch done")
	}
}

func TestUpdateBatchKeepsConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), 0, time.Hour)
	items := make([]BatchItem, 0, 20)
	for i := uint64(1); i <= 20; i++ {
		items = append(items, BatchItem{ID: i})
	}
	if errSave := m.SaveBatch(ctx, "s1", &Batch{ID: "b1", Items: items}); errSave != nil {
		t.Fatalf("save batch: %v", errSave)
	}

	var wg sync.WaitGroup
	for i := uint64(1); i < 20; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if _, errUpdate := m.UpdateBatch(ctx, "s1", func(b *Batch) error {
				b.MarkClaimed(id)
				return nil
			}); errUpdate != nil {
				t.Errorf("update batch: %v", errUpdate)
			}
		}(i)
	}
	wg.Wait()

	got, errLoad := m.LoadBatch(ctx, "s1")
	if errLoad != nil {
		t.Fatalf("load batch: %v", errLoad)
	}
	if len(got.Claimed) != 19 {
		t.Fatalf("expected 19 claimed, got %d", len(got.Claimed))
	}

	last, errUpdate := m.UpdateBatch(ctx, "s1", func(b *Batch) error {
		b.MarkClaimed(20)
		return nil
	})
	if errUpdate != nil {
		t.Fatalf("update batch: %v", errUpdate)
	}
	if !last.Done() || len(last.Claimed) != 20 {
		t.Fatalf("expected closed batch with 20 claims, got %+v", last)
	}
	if _, errLoad = m.LoadBatch(ctx, "s1"); !errors.Is(errLoad, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch after close, got %v", errLoad)
	}
	if _, errUpdate = m.UpdateBatch(ctx, "s1", func(*Batch) error { return nil }); !errors.Is(errUpdate, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch for missing batch, got %v", errUpdate)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("IPGEN_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("IPGEN_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, errDial := DialRedis(ctx, addr, "", 0)
	if errDial != nil {
		t.Fatalf("dial: %v", errDial)
	}
	defer client.Close()

	store := NewRedisStore(client, "ipgen-test:")
	if errSet := store.Set(ctx, "k", []byte("v"), time.Minute); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	got, errGet := store.Get(ctx, "k")
	if errGet != nil || string(got) != "v" {
		t.Fatalf("expected v, got %q (%v)", got, errGet)
	}
	if errUpdate := store.Update(ctx, "k", time.Minute, func(current []byte) ([]byte, error) {
		return append(current, 'w'), nil
	}); errUpdate != nil {
		t.Fatalf("update: %v", errUpdate)
	}
	if got, _ = store.Get(ctx, "k"); string(got) != "vw" {
		t.Fatalf("expected vw, got %q", got)
	}
	_ = store.Delete(ctx, "k")
	if _, errGet = store.Get(ctx, "k"); !errors.Is(errGet, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errGet)
	}
	if errUpdate := store.Update(ctx, "k", time.Minute, func(current []byte) ([]byte, error) {
		return current, nil
	}); !errors.Is(errUpdate, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of missing key, got %v", errUpdate)
	}
}
