package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/config"
)

// UserStore keeps users in memory.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]audit.User
}

// NewUserStore constructs a UserStore.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]audit.User),
	}
}

// PutUser inserts or replaces a user.
func (s *UserStore) PutUser(u audit.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// GetUser fetches a user by ID.
func (s *UserStore) GetUser(_ context.Context, userID string) (audit.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return audit.User{}, audit.ErrUserNotFound
	}
	return u, nil
}

// MarkUsageAlert records when a usage alert was last sent to the user.
func (s *UserStore) MarkUsageAlert(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return audit.ErrUserNotFound
	}
	ts := at
	u.LastUsageAlertAt = &ts
	s.users[userID] = u
	return nil
}

// TierStore resolves tiers from configuration.
type TierStore struct {
	tiers map[string]audit.Tier
}

// NewTierStore seeds a TierStore from configured tier limits.
func NewTierStore(tiers map[string]config.TierConfig) *TierStore {
	out := make(map[string]audit.Tier, len(tiers))
	for name, tc := range tiers {
		out[name] = audit.Tier{
			Name:       name,
			AuditLimit: tc.AuditLimit,
			TokenLimit: tc.TokenLimit,
			PriceCents: tc.PriceCents,
		}
	}
	return &TierStore{tiers: out}
}

// GetTier resolves a tier by name.
func (s *TierStore) GetTier(_ context.Context, name string) (audit.Tier, error) {
	t, ok := s.tiers[name]
	if !ok {
		return audit.Tier{}, audit.ErrTierNotFound
	}
	return t, nil
}
