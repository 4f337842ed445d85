package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	data := &Data{UserID: 7, Flash: []string{"hello"}, ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Save(ctx, "abc", data); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != 7 || len(got.Flash) != 1 || got.Flash[0] != "hello" {
		t.Errorf("Get() = %+v", got)
	}

	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	if _, err := NewMemoryStore().Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ExpiredRecordIsAbsent(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_ = store.Save(context.Background(), "abc", &Data{UserID: 1, ExpiresAt: now.Add(time.Hour)})

	now = now.Add(59 * time.Minute)
	if _, err := store.Get(context.Background(), "abc"); err != nil {
		t.Fatalf("Get() before expiry error = %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Get(context.Background(), "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() at expiry error = %v, want ErrNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("expired record was not dropped, Len() = %d", store.Len())
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Save(ctx, "abc", &Data{Flash: []string{"one"}, ExpiresAt: time.Now().Add(time.Hour)})

	got, _ := store.Get(ctx, "abc")
	got.Flash[0] = "changed"
	got.UserID = 99

	again, _ := store.Get(ctx, "abc")
	if again.Flash[0] != "one" || again.UserID != 0 {
		t.Errorf("mutating the result of Get() changed the stored record: %+v", again)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			_ = store.Save(ctx, id, &Data{UserID: int64(n), ExpiresAt: expires})
			_, _ = store.Get(ctx, id)
		}(i)
	}
	wg.Wait()

	if store.Len() != 26 {
		t.Errorf("Len() = %d, want 26", store.Len())
	}
}

func TestMemoryStore_SaveSweepsExpiredRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	// Cookieless visits that never come back.
	for i := 0; i < 1000; i++ {
		_ = store.Save(ctx, fmt.Sprintf("visit-%d", i), &Data{ExpiresAt: now.Add(time.Hour)})
	}
	if store.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", store.Len())
	}

	now = now.Add(2 * time.Hour)
	for i := 0; i < 10; i++ {
		_ = store.Save(ctx, fmt.Sprintf("fresh-%d", i), &Data{ExpiresAt: now.Add(time.Hour)})
	}
	if store.Len() != 10 {
		t.Errorf("Len() = %d after the visits expired, want 10", store.Len())
	}
}

func TestMemoryStore_SweepIsRateLimited(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_ = store.Save(ctx, "a", &Data{ExpiresAt: now.Add(10 * time.Second)})

	now = now.Add(30 * time.Second)
	_ = store.Save(ctx, "b", &Data{ExpiresAt: now.Add(time.Hour)})
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2: no sweep within %v of the last one", store.Len(), sweepInterval)
	}

	now = now.Add(sweepInterval)
	_ = store.Save(ctx, "c", &Data{ExpiresAt: now.Add(time.Hour)})
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2 once the expired record is swept", store.Len())
	}
	if _, err := store.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(a) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SaveExpiredDeletes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_ = store.Save(ctx, "abc", &Data{UserID: 3, ExpiresAt: now.Add(time.Hour)})
	_ = store.Save(ctx, "abc", &Data{UserID: 3, ExpiresAt: now.Add(-time.Second)})

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after saving an expired record", store.Len())
	}
}
