package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rankpilot/auditor/internal/audit"
)

// UsageStore keeps usage entries in memory.
type UsageStore struct {
	mu      sync.RWMutex
	entries []audit.UsageEntry
}

// NewUsageStore constructs a UsageStore.
func NewUsageStore() *UsageStore {
	return &UsageStore{}
}

// AppendUsage records one consumption fact.
func (s *UsageStore) AppendUsage(_ context.Context, entry audit.UsageEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// SetTokensUsed updates the entry created for the given audit.
func (s *UsageStore) SetTokensUsed(_ context.Context, auditID string, tokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].AuditID != nil && *s.entries[i].AuditID == auditID {
			s.entries[i].TokensUsed = tokens
			return nil
		}
	}
	return audit.ErrUsageNotFound
}

// PeriodUsage aggregates entries within [from, to] inclusive. Audit count
// covers entries with a non-nil audit ID; tokens sum over all entries.
func (s *UsageStore) PeriodUsage(_ context.Context, userID string, from, to time.Time) (audit.PeriodUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var usage audit.PeriodUsage
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		if e.AuditID != nil {
			usage.AuditsUsed++
		}
		usage.TokensUsed += e.TokensUsed
	}
	return usage, nil
}
