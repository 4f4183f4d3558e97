package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/rankpilot/auditor/internal/audit"
)

// AppendUsage inserts one consumption fact.
func (s *Store) AppendUsage(ctx context.Context, entry audit.UsageEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("usage entry id is required")
	}
	query := `
INSERT INTO usage_entries (
	id,
	user_id,
	audit_id,
	tokens_used,
	created_at
) VALUES (
	$1,$2,$3,$4,$5
)`
	if _, err := s.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.AuditID, entry.TokensUsed, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert usage entry: %w", err)
	}
	return nil
}

// SetTokensUsed records the final token cost on the entry created for the
// given audit at submission time.
func (s *Store) SetTokensUsed(ctx context.Context, auditID string, tokens int) error {
	query := `UPDATE usage_entries SET tokens_used = $2 WHERE audit_id = $1`
	tag, err := s.pool.Exec(ctx, query, auditID, tokens)
	if err != nil {
		return fmt.Errorf("set tokens used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrUsageNotFound
	}
	return nil
}

// PeriodUsage counts entries with a non-nil audit ID and sums tokens over
// [from, to] inclusive.
func (s *Store) PeriodUsage(ctx context.Context, userID string, from, to time.Time) (audit.PeriodUsage, error) {
	query := `
SELECT
	COUNT(*) FILTER (WHERE audit_id IS NOT NULL),
	COALESCE(SUM(tokens_used), 0)
FROM usage_entries
WHERE user_id = $1 AND created_at BETWEEN $2 AND $3`
	var usage audit.PeriodUsage
	if err := s.pool.QueryRow(ctx, query, userID, from, to).Scan(&usage.AuditsUsed, &usage.TokensUsed); err != nil {
		return audit.PeriodUsage{}, fmt.Errorf("aggregate period usage: %w", err)
	}
	return usage, nil
}
