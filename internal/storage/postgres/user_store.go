package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rankpilot/auditor/internal/audit"
)

// GetUser fetches a user with their billing period bounds.
func (s *Store) GetUser(ctx context.Context, userID string) (audit.User, error) {
	query := `
SELECT
	id,
	email,
	tier,
	current_period_start,
	current_period_end,
	last_usage_alert_at
FROM users
WHERE id = $1`
	var u audit.User
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID,
		&u.Email,
		&u.TierName,
		&u.CurrentPeriodStart,
		&u.CurrentPeriodEnd,
		&u.LastUsageAlertAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.User{}, audit.ErrUserNotFound
	}
	if err != nil {
		return audit.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// MarkUsageAlert records when a usage alert was last dispatched to the user.
func (s *Store) MarkUsageAlert(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_usage_alert_at = $2 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("mark usage alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrUserNotFound
	}
	return nil
}

// GetTier resolves tier reference data by name.
func (s *Store) GetTier(ctx context.Context, name string) (audit.Tier, error) {
	query := `SELECT name, audit_limit, token_limit, price_cents FROM tiers WHERE name = $1`
	var t audit.Tier
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&t.Name, &t.AuditLimit, &t.TokenLimit, &t.PriceCents,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Tier{}, audit.ErrTierNotFound
	}
	if err != nil {
		return audit.Tier{}, fmt.Errorf("select tier: %w", err)
	}
	return t, nil
}
