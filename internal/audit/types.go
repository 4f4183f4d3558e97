// Package audit defines core types shared across subsystems.
package audit

import "time"

// Status represents the lifecycle state of an audit.
type Status string

// Audit status values persisted in the audit store. Processing is the only
// non-terminal state; completed and failed are terminal.
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IssueType classifies the severity band of a detected issue.
type IssueType string

// Issue types.
const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
	IssueInfo    IssueType = "info"
)

// Category groups issues and recommendations by audit area.
type Category string

// Issue/recommendation categories.
const (
	CategoryTechnical   Category = "technical"
	CategoryContent     Category = "content"
	CategoryPerformance Category = "performance"
	CategoryMobile      Category = "mobile"
)

// Impact ranks how much an issue affects search performance.
type Impact string

// Impact levels.
const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Priority orders recommendations for display.
type Priority string

// Recommendation priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Effort estimates the work required to act on a recommendation.
type Effort string

// Effort levels.
const (
	EffortEasy   Effort = "easy"
	EffortMedium Effort = "medium"
	EffortHard   Effort = "hard"
)

// Issue is a single defect detected by an analyzer.
type Issue struct {
	Type        IssueType `json:"type"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Impact      Impact    `json:"impact"`
	Fix         string    `json:"fix"`
}

// Recommendation is an actionable suggestion synthesized from the issue set.
// ImpactScore is a 0-100 display-ordering hint, unrelated to token cost.
type Recommendation struct {
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Effort      Effort   `json:"effort"`
	ImpactScore int      `json:"impact"`
}

// Metrics holds the five analyzer sub-scores, each in [0, 100].
type Metrics struct {
	PageSpeed          int `json:"page_speed"`
	SEOBasics          int `json:"seo_basics"`
	ContentQuality     int `json:"content_quality"`
	TechnicalSEO       int `json:"technical_seo"`
	MobileOptimization int `json:"mobile_optimization"`
}

// AnalysisResult is the transient output of one page analysis. It is folded
// into an Audit by the worker and discarded.
type AnalysisResult struct {
	Score           int              `json:"score"`
	Metrics         Metrics          `json:"metrics"`
	Issues          []Issue          `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
	ElapsedMillis   int64            `json:"elapsed_ms"`
	Body            []byte           `json:"-"`
}

// CompetitorGap compares a competitor URL against the primary page. When the
// competitor analysis failed, Error is set and the score fields are zero.
type CompetitorGap struct {
	URL        string   `json:"url"`
	Score      int      `json:"score,omitempty"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	Gaps       []string `json:"gaps,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Audit is the persisted record for one submitted audit request. Score and
// Metrics are nil until the audit completes; they are set together with the
// completed status, exactly once.
type Audit struct {
	ID              string           `json:"id"`
	ProjectID       string           `json:"project_id"`
	UserID          string           `json:"user_id"`
	URL             string           `json:"url"`
	Status          Status           `json:"status"`
	Score           *int             `json:"score,omitempty"`
	Metrics         *Metrics         `json:"metrics,omitempty"`
	Issues          []Issue          `json:"issues,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	CompetitorGaps  []CompetitorGap  `json:"competitor_gaps,omitempty"`
	BlobURI         string           `json:"blob_uri,omitempty"`
	ErrorText       string           `json:"error_text,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// Results carries everything the worker persists when an audit completes.
type Results struct {
	Score           int
	Metrics         Metrics
	Issues          []Issue
	Recommendations []Recommendation
	CompetitorGaps  []CompetitorGap
	BlobURI         string
}

// Snapshot is an immutable historical score point, appended once per
// completed audit.
type Snapshot struct {
	AuditID   string    `json:"audit_id"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// Tier is immutable reference data bounding per-period consumption.
type Tier struct {
	Name       string `json:"name"`
	AuditLimit int    `json:"audit_limit"`
	TokenLimit int    `json:"token_limit"`
	PriceCents int    `json:"price_cents"`
}

// User carries the billing window used for quota computation. The period
// bounds are rolled over by the external billing integration.
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	TierName           string     `json:"tier"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	LastUsageAlertAt   *time.Time `json:"last_usage_alert_at,omitempty"`
}

// UsageEntry is an append-only consumption fact. One entry is created at
// submission with zero tokens and updated with the real cost after the audit
// completes. AuditID is set at most once and never reassigned.
type UsageEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AuditID    *string   `json:"audit_id,omitempty"`
	TokensUsed int       `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// PeriodUsage aggregates a user's consumption over one billing period.
type PeriodUsage struct {
	AuditsUsed int `json:"audits_used"`
	TokensUsed int `json:"tokens_used"`
}

// QueueItem wraps an admitted audit ready for asynchronous execution.
type QueueItem struct {
	AuditID     string   `json:"audit_id"`
	UserID      string   `json:"user_id"`
	ProjectID   string   `json:"project_id"`
	URL         string   `json:"url"`
	Competitors []string `json:"competitors,omitempty"`
	Attempt     int      `json:"attempt"`
	Submitted   int64    `json:"submitted"`

	// Settle reports the processing outcome back to the queue that delivered
	// the item. A nil error acknowledges the delivery, a non-nil error asks
	// the queue to redeliver. Queues without delivery state leave it nil.
	Settle func(error) `json:"-"`
}

// FetchRequest captures everything needed to fetch a page.
type FetchRequest struct {
	AuditID string
	URL     string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}
