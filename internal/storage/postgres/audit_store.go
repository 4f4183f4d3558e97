package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rankpilot/auditor/internal/audit"
)

const auditColumns = `
	id,
	project_id,
	user_id,
	url,
	status,
	score,
	metrics,
	issues,
	recommendations,
	competitor_gaps,
	blob_uri,
	error_text,
	created_at,
	completed_at`

// CreateAudit inserts a new audit row.
func (s *Store) CreateAudit(ctx context.Context, a audit.Audit) error {
	if a.ID == "" {
		return fmt.Errorf("audit id is required")
	}
	query := `
INSERT INTO audits (
	id,
	project_id,
	user_id,
	url,
	status,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6
)`
	if _, err := s.pool.Exec(ctx, query,
		a.ID, a.ProjectID, a.UserID, a.URL, string(a.Status), a.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// GetAudit fetches one audit by ID.
func (s *Store) GetAudit(ctx context.Context, auditID string) (audit.Audit, error) {
	query := `SELECT` + auditColumns + ` FROM audits WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, auditID)
	a, err := scanAudit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return audit.Audit{}, audit.ErrAuditNotFound
		}
		return audit.Audit{}, fmt.Errorf("select audit: %w", err)
	}
	return a, nil
}

// MarkProcessing flips a non-terminal audit into the processing state.
// Re-marking an already-processing audit succeeds.
func (s *Store) MarkProcessing(ctx context.Context, auditID string) error {
	query := `UPDATE audits SET status = $2 WHERE id = $1 AND status NOT IN ($3, $4)`
	tag, err := s.pool.Exec(ctx, query,
		auditID,
		string(audit.StatusProcessing),
		string(audit.StatusCompleted),
		string(audit.StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark audit processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.ensureAuditExists(ctx, auditID)
	}
	return nil
}

// MarkFailed records a terminal failure. Completed audits are left alone.
func (s *Store) MarkFailed(ctx context.Context, auditID string, errText string, at time.Time) error {
	query := `
UPDATE audits
SET status = $2, error_text = $3, completed_at = $4
WHERE id = $1 AND status <> $5`
	tag, err := s.pool.Exec(ctx, query,
		auditID, string(audit.StatusFailed), errText, at, string(audit.StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("mark audit failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.ensureAuditExists(ctx, auditID)
	}
	return nil
}

// CompleteAudit stores the results and flips the status to completed in one
// statement. Completing an already-completed audit is a no-op.
func (s *Store) CompleteAudit(ctx context.Context, auditID string, results audit.Results, at time.Time) error {
	metricsJSON, err := json.Marshal(results.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	issuesJSON, err := json.Marshal(results.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	recsJSON, err := json.Marshal(results.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	gapsJSON, err := json.Marshal(results.CompetitorGaps)
	if err != nil {
		return fmt.Errorf("marshal competitor gaps: %w", err)
	}
	query := `
UPDATE audits
SET status = $2,
	score = $3,
	metrics = $4,
	issues = $5,
	recommendations = $6,
	competitor_gaps = $7,
	blob_uri = $8,
	error_text = '',
	completed_at = $9
WHERE id = $1 AND status <> $2`
	tag, err := s.pool.Exec(ctx, query,
		auditID,
		string(audit.StatusCompleted),
		results.Score,
		metricsJSON,
		issuesJSON,
		recsJSON,
		gapsJSON,
		results.BlobURI,
		at,
	)
	if err != nil {
		return fmt.Errorf("complete audit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.ensureAuditExists(ctx, auditID)
	}
	return nil
}

// ListAuditsByUser returns the user's audits created within [from, to],
// newest first.
func (s *Store) ListAuditsByUser(ctx context.Context, userID string, from, to time.Time) ([]audit.Audit, error) {
	query := `SELECT` + auditColumns + `
FROM audits
WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	defer rows.Close()

	var out []audit.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	return out, nil
}

// AppendSnapshot records one score point per audit. A duplicate append for
// the same audit ID is swallowed by the conflict clause.
func (s *Store) AppendSnapshot(ctx context.Context, snap audit.Snapshot) error {
	query := `
INSERT INTO snapshots (audit_id, score, ts)
VALUES ($1, $2, $3)
ON CONFLICT (audit_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, snap.AuditID, snap.Score, snap.Timestamp); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the score history for one audit, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, auditID string) ([]audit.Snapshot, error) {
	query := `SELECT audit_id, score, ts FROM snapshots WHERE audit_id = $1 ORDER BY ts`
	rows, err := s.pool.Query(ctx, query, auditID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []audit.Snapshot
	for rows.Next() {
		var snap audit.Snapshot
		if err := rows.Scan(&snap.AuditID, &snap.Score, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

func (s *Store) ensureAuditExists(ctx context.Context, auditID string) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM audits WHERE id = $1`, auditID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.ErrAuditNotFound
	}
	if err != nil {
		return fmt.Errorf("check audit exists: %w", err)
	}
	return nil
}

func scanAudit(row pgx.Row) (audit.Audit, error) {
	var (
		a           audit.Audit
		status      string
		score       *int
		metricsJSON []byte
		issuesJSON  []byte
		recsJSON    []byte
		gapsJSON    []byte
	)
	err := row.Scan(
		&a.ID,
		&a.ProjectID,
		&a.UserID,
		&a.URL,
		&status,
		&score,
		&metricsJSON,
		&issuesJSON,
		&recsJSON,
		&gapsJSON,
		&a.BlobURI,
		&a.ErrorText,
		&a.CreatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		return audit.Audit{}, err
	}
	a.Status = audit.Status(status)
	a.Score = score
	if len(metricsJSON) > 0 {
		var m audit.Metrics
		if err := json.Unmarshal(metricsJSON, &m); err != nil {
			return audit.Audit{}, fmt.Errorf("unmarshal metrics: %w", err)
		}
		a.Metrics = &m
	}
	if len(issuesJSON) > 0 {
		if err := json.Unmarshal(issuesJSON, &a.Issues); err != nil {
			return audit.Audit{}, fmt.Errorf("unmarshal issues: %w", err)
		}
	}
	if len(recsJSON) > 0 {
		if err := json.Unmarshal(recsJSON, &a.Recommendations); err != nil {
			return audit.Audit{}, fmt.Errorf("unmarshal recommendations: %w", err)
		}
	}
	if len(gapsJSON) > 0 {
		if err := json.Unmarshal(gapsJSON, &a.CompetitorGaps); err != nil {
			return audit.Audit{}, fmt.Errorf("unmarshal competitor gaps: %w", err)
		}
	}
	return a, nil
}
