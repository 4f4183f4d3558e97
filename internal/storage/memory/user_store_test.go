package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/config"
)

func TestUserStoreGetAndAlert(t *testing.T) {
	t.Parallel()

	store := NewUserStore()
	ctx := context.Background()
	store.PutUser(audit.User{ID: "user-1", Email: "dev@example.com", TierName: "free"})

	u, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.LastUsageAlertAt != nil {
		t.Fatal("expected no alert timestamp on fresh user")
	}

	at := time.Unix(5000, 0)
	if err := store.MarkUsageAlert(ctx, "user-1", at); err != nil {
		t.Fatalf("MarkUsageAlert() error = %v", err)
	}
	u, _ = store.GetUser(ctx, "user-1")
	if u.LastUsageAlertAt == nil || !u.LastUsageAlertAt.Equal(at) {
		t.Fatalf("expected alert timestamp %v, got %+v", at, u.LastUsageAlertAt)
	}

	if _, err := store.GetUser(ctx, "ghost"); !errors.Is(err, audit.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTierStoreResolvesConfiguredTiers(t *testing.T) {
	t.Parallel()

	store := NewTierStore(map[string]config.TierConfig{
		"free":    {AuditLimit: 5, TokenLimit: 10000},
		"starter": {AuditLimit: 50, TokenLimit: 100000, PriceCents: 2000},
	})
	ctx := context.Background()

	tier, err := store.GetTier(ctx, "starter")
	if err != nil {
		t.Fatalf("GetTier() error = %v", err)
	}
	if tier.Name != "starter" || tier.AuditLimit != 50 || tier.PriceCents != 2000 {
		t.Fatalf("unexpected tier %+v", tier)
	}

	if _, err := store.GetTier(ctx, "platinum"); !errors.Is(err, audit.ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}
