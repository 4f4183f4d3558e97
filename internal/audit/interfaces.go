package audit

import (
	"context"
	"time"
)

// AuditStore persists audit records.
type AuditStore interface {
	CreateAudit(ctx context.Context, a Audit) error
	GetAudit(ctx context.Context, auditID string) (Audit, error)
	// MarkProcessing is idempotent: re-marking an already-processing audit
	// succeeds, so a redelivered job can safely re-enter execution.
	MarkProcessing(ctx context.Context, auditID string) error
	MarkFailed(ctx context.Context, auditID string, errText string, at time.Time) error
	// CompleteAudit sets the score and completed status together. Completing
	// an already-completed audit is a no-op so redelivery stays safe.
	CompleteAudit(ctx context.Context, auditID string, results Results, at time.Time) error
	ListAuditsByUser(ctx context.Context, userID string, from, to time.Time) ([]Audit, error)
}

// SnapshotStore appends immutable score history points.
type SnapshotStore interface {
	// AppendSnapshot is guarded per audit: a second append for the same
	// audit ID is a no-op.
	AppendSnapshot(ctx context.Context, snap Snapshot) error
	ListSnapshots(ctx context.Context, auditID string) ([]Snapshot, error)
}

// UsageStore records and aggregates metered consumption.
type UsageStore interface {
	AppendUsage(ctx context.Context, entry UsageEntry) error
	// SetTokensUsed records the final token cost on the entry created for
	// the given audit at submission time.
	SetTokensUsed(ctx context.Context, auditID string, tokens int) error
	// PeriodUsage counts entries with a non-nil audit ID and sums tokens
	// over [from, to] inclusive.
	PeriodUsage(ctx context.Context, userID string, from, to time.Time) (PeriodUsage, error)
}

// UserStore reads users and records usage-alert dispatch times.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (User, error)
	MarkUsageAlert(ctx context.Context, userID string, at time.Time) error
}

// TierStore resolves tier reference data.
type TierStore interface {
	GetTier(ctx context.Context, name string) (Tier, error)
}

// Queue provides enqueue/dequeue semantics for audit jobs. Delivery is
// at-least-once; consumers must tolerate duplicate items.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus timing metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// PageAnalyzer runs the full analysis pipeline for one URL.
type PageAnalyzer interface {
	AnalyzePage(ctx context.Context, url string) (AnalysisResult, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher computes digests for blob paths and integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces audit and usage-entry IDs.
type IDGenerator interface {
	NewID() (string, error)
}
