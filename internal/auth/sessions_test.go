package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemorySessionStoreRevocation(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	store.Revoke(ctx, "live", now.Add(time.Hour))
	store.Revoke(ctx, "stale", now.Add(-time.Second))

	if revoked, _ := store.IsRevoked(ctx, "live"); !revoked {
		t.Error("live token should be revoked")
	}
	if revoked, _ := store.IsRevoked(ctx, "stale"); revoked {
		t.Error("already expired tokens need no revocation entry")
	}

	now = now.Add(2 * time.Hour)
	if revoked, _ := store.IsRevoked(ctx, "live"); revoked {
		t.Error("revocation should lapse with the token")
	}
}

func TestMemorySessionStoreFailures(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		n, err := store.RecordFailure(ctx, "dana@example.com", time.Minute)
		if err != nil || n != i {
			t.Fatalf("RecordFailure #%d = %d, %v", i, n, err)
		}
	}

	if n, _ := store.Failures(ctx, "dana@example.com"); n != 3 {
		t.Errorf("Failures = %d, want 3", n)
	}

	now = now.Add(2 * time.Minute)
	if n, _ := store.Failures(ctx, "dana@example.com"); n != 0 {
		t.Errorf("window elapsed, Failures = %d", n)
	}
	if n, _ := store.RecordFailure(ctx, "dana@example.com", time.Minute); n != 1 {
		t.Errorf("new window should restart at 1, got %d", n)
	}

	store.ResetFailures(ctx, "dana@example.com")
	if n, _ := store.Failures(ctx, "dana@example.com"); n != 0 {
		t.Errorf("after reset Failures = %d", n)
	}
}
