package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/rankpilot/auditor/internal/audit"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestCreateAuditInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO audits").
		WithArgs("audit-1", "proj-1", "user-1", "https://example.com", "processing", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.CreateAudit(context.Background(), audit.Audit{
		ID:        "audit-1",
		ProjectID: "proj-1",
		UserID:    "user-1",
		URL:       "https://example.com",
		Status:    audit.StatusProcessing,
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuditUnmarshalsResults(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	created := time.Unix(1700000000, 0).UTC()
	completed := created.Add(time.Minute)
	score := 82
	metricsJSON, err := json.Marshal(audit.Metrics{PageSpeed: 90, SEOBasics: 85})
	require.NoError(t, err)
	issuesJSON, err := json.Marshal([]audit.Issue{{Type: audit.IssueWarning, Title: "Thin content"}})
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"id", "project_id", "user_id", "url", "status", "score",
		"metrics", "issues", "recommendations", "competitor_gaps",
		"blob_uri", "error_text", "created_at", "completed_at",
	}).AddRow(
		"audit-1", "proj-1", "user-1", "https://example.com", "completed", &score,
		metricsJSON, issuesJSON, []byte(nil), []byte(nil),
		"gs://bucket/pages/audit-1/abc.html", "", created, &completed,
	)
	mock.ExpectQuery("SELECT(.|\n)+FROM audits WHERE id").
		WithArgs("audit-1").
		WillReturnRows(rows)

	a, err := store.GetAudit(context.Background(), "audit-1")
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, a.Status)
	require.NotNil(t, a.Score)
	require.Equal(t, 82, *a.Score)
	require.NotNil(t, a.Metrics)
	require.Equal(t, 90, a.Metrics.PageSpeed)
	require.Len(t, a.Issues, 1)
	require.Equal(t, "Thin content", a.Issues[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAuditNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT(.|\n)+FROM audits WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetAudit(context.Background(), "missing")
	require.ErrorIs(t, err, audit.ErrAuditNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAuditSecondCallIsNoOp(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE audits").
		WithArgs("audit-1", "completed", 82,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT 1 FROM audits WHERE id").
		WithArgs("audit-1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	err := store.CompleteAudit(context.Background(), "audit-1", audit.Results{Score: 82}, at)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedUnknownAudit(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE audits").
		WithArgs("missing", "failed", "fetch timed out", at, "completed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT 1 FROM audits WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err := store.MarkFailed(context.Background(), "missing", "fetch timed out", at)
	require.ErrorIs(t, err, audit.ErrAuditNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendSnapshotInsertsWithConflictGuard(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	ts := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("INSERT INTO snapshots").
		WithArgs("audit-1", 82, ts).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := store.AppendSnapshot(context.Background(), audit.Snapshot{
		AuditID:   "audit-1",
		Score:     82,
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodUsageAggregates(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	from := time.Unix(1000, 0).UTC()
	to := time.Unix(2000, 0).UTC()

	mock.ExpectQuery("SELECT(.|\n)+FROM usage_entries").
		WithArgs("user-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"count", "coalesce"}).AddRow(3, 5500))

	usage, err := store.PeriodUsage(context.Background(), "user-1", from, to)
	require.NoError(t, err)
	require.Equal(t, 3, usage.AuditsUsed)
	require.Equal(t, 5500, usage.TokensUsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTokensUsedMissingEntry(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE usage_entries").
		WithArgs("missing", 1100).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetTokensUsed(context.Background(), "missing", 1100)
	require.ErrorIs(t, err, audit.ErrUsageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserScansBillingPeriod(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	start := time.Unix(1000, 0).UTC()
	end := time.Unix(2000, 0).UTC()

	rows := pgxmock.NewRows([]string{
		"id", "email", "tier", "current_period_start", "current_period_end", "last_usage_alert_at",
	}).AddRow("user-1", "dev@example.com", "starter", start, end, (*time.Time)(nil))
	mock.ExpectQuery("SELECT(.|\n)+FROM users").
		WithArgs("user-1").
		WillReturnRows(rows)

	u, err := store.GetUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, "starter", u.TierName)
	require.True(t, u.CurrentPeriodStart.Equal(start))
	require.Nil(t, u.LastUsageAlertAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT(.|\n)+FROM users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetUser(context.Background(), "ghost")
	require.ErrorIs(t, err, audit.ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTierResolvesLimits(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"name", "audit_limit", "token_limit", "price_cents"}).
		AddRow("pro", 200, 500000, 4500)
	mock.ExpectQuery("SELECT(.|\n)+FROM tiers").
		WithArgs("pro").
		WillReturnRows(rows)

	tier, err := store.GetTier(context.Background(), "pro")
	require.NoError(t, err)
	require.Equal(t, 200, tier.AuditLimit)
	require.Equal(t, 500000, tier.TokenLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}
