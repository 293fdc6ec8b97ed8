package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/circademic/gradetrack/internal/models"
	"github.com/circademic/gradetrack/internal/storage"
)

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryRepository()

	account := &models.Account{Email: "dana@example.com"}
	repo.CreateAccount(ctx, account)

	now := time.Now().UTC()
	repo.CreatePasswordReset(ctx, &models.PasswordReset{TokenHash: "expired", UserID: account.ID, ExpiresAt: now.Add(-time.Minute)})
	repo.CreatePasswordReset(ctx, &models.PasswordReset{TokenHash: "valid", UserID: account.ID, ExpiresAt: now.Add(time.Hour)})

	c := NewCleaner(repo, time.Minute)
	if deleted := c.RunOnce(ctx); deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if deleted := c.RunOnce(ctx); deleted != 0 {
		t.Errorf("second run deleted = %d, want 0", deleted)
	}

	if _, err := repo.ConsumePasswordReset(ctx, "valid"); err != nil {
		t.Errorf("valid reset was removed: %v", err)
	}
}

type failingStore struct{ calls int }

func (f *failingStore) DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	return 0, errors.New("database unavailable")
}

func TestRunStopsWithContext(t *testing.T) {
	store := &failingStore{}
	c := NewCleaner(store, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	if store.calls != 1 {
		t.Errorf("expected one immediate run, got %d", store.calls)
	}
}

func TestNewCleanerDefaultInterval(t *testing.T) {
	if c := NewCleaner(&failingStore{}, 0); c.interval != 10*time.Minute {
		t.Errorf("interval = %v", c.interval)
	}
}
