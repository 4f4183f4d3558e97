package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rankpilot/auditor/internal/audit"
)

// AuditStore provides an in-memory implementation for development/testing.
type AuditStore struct {
	mu     sync.RWMutex
	audits map[string]audit.Audit
}

// NewAuditStore constructs an AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{
		audits: make(map[string]audit.Audit),
	}
}

// CreateAudit stores a new audit record.
func (s *AuditStore) CreateAudit(_ context.Context, a audit.Audit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.audits[a.ID]; exists {
		return errors.New("audit already exists")
	}
	s.audits[a.ID] = a
	return nil
}

// GetAudit fetches an audit by ID.
func (s *AuditStore) GetAudit(_ context.Context, auditID string) (audit.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.audits[auditID]
	if !ok {
		return audit.Audit{}, audit.ErrAuditNotFound
	}
	return a, nil
}

// MarkProcessing moves an audit into the processing state. Re-marking an
// audit that is already processing succeeds.
func (s *AuditStore) MarkProcessing(_ context.Context, auditID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return audit.ErrAuditNotFound
	}
	if a.Status == audit.StatusCompleted || a.Status == audit.StatusFailed {
		return nil
	}
	a.Status = audit.StatusProcessing
	s.audits[auditID] = a
	return nil
}

// MarkFailed records a terminal failure with its error text.
func (s *AuditStore) MarkFailed(_ context.Context, auditID string, errText string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return audit.ErrAuditNotFound
	}
	if a.Status == audit.StatusCompleted {
		return nil
	}
	a.Status = audit.StatusFailed
	a.ErrorText = errText
	a.CompletedAt = pointerTime(at)
	s.audits[auditID] = a
	return nil
}

// CompleteAudit stores results and flips the status to completed. Completing
// an already-completed audit is a no-op.
func (s *AuditStore) CompleteAudit(_ context.Context, auditID string, results audit.Results, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.audits[auditID]
	if !ok {
		return audit.ErrAuditNotFound
	}
	if a.Status == audit.StatusCompleted {
		return nil
	}
	score := results.Score
	metrics := results.Metrics
	a.Status = audit.StatusCompleted
	a.Score = &score
	a.Metrics = &metrics
	a.Issues = results.Issues
	a.Recommendations = results.Recommendations
	a.CompetitorGaps = results.CompetitorGaps
	a.BlobURI = results.BlobURI
	a.ErrorText = ""
	a.CompletedAt = pointerTime(at)
	s.audits[auditID] = a
	return nil
}

// ListAuditsByUser returns the user's audits created within [from, to],
// newest first.
func (s *AuditStore) ListAuditsByUser(_ context.Context, userID string, from, to time.Time) ([]audit.Audit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Audit
	for _, a := range s.audits {
		if a.UserID != userID {
			continue
		}
		if a.CreatedAt.Before(from) || a.CreatedAt.After(to) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SnapshotStore keeps score history in memory.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]audit.Snapshot
}

// NewSnapshotStore constructs a SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[string][]audit.Snapshot),
	}
}

// AppendSnapshot records one score point per audit. A second append for the
// same audit ID is a no-op.
func (s *SnapshotStore) AppendSnapshot(_ context.Context, snap audit.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots[snap.AuditID]) > 0 {
		return nil
	}
	s.snapshots[snap.AuditID] = append(s.snapshots[snap.AuditID], snap)
	return nil
}

// ListSnapshots returns the history for one audit, oldest first.
func (s *SnapshotStore) ListSnapshots(_ context.Context, auditID string) ([]audit.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snaps := s.snapshots[auditID]
	out := make([]audit.Snapshot, len(snaps))
	copy(out, snaps)
	return out, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
