// Package service implements audit submission and retrieval on top of the
// stores, the quota ledger and the job queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/quota"
)

const enqueueTimeout = 5 * time.Second

// ErrInvalidURL rejects submissions whose URL is missing or not http(s).
var ErrInvalidURL = errors.New("invalid url")

// SubmitRequest carries one audit submission.
type SubmitRequest struct {
	UserID      string
	ProjectID   string
	URL         string
	Competitors []string
}

// Submission is the admission outcome. When Admitted is false, Reason holds
// the limit error and no audit record exists.
type Submission struct {
	Admitted bool
	AuditID  string
	Reason   error
	Usage    audit.PeriodUsage
}

// UsageSummary reports a user's consumption against their tier limits.
type UsageSummary struct {
	Tier        string            `json:"tier"`
	PeriodStart time.Time         `json:"period_start"`
	PeriodEnd   time.Time         `json:"period_end"`
	Usage       audit.PeriodUsage `json:"usage"`
	AuditLimit  int               `json:"audit_limit"`
	TokenLimit  int               `json:"token_limit"`
}

// Service wires submission, admission control and retrieval.
type Service struct {
	users     audit.UserStore
	tiers     audit.TierStore
	audits    audit.AuditStore
	snapshots audit.SnapshotStore
	usage     audit.UsageStore
	ledger    *quota.Ledger
	queue     audit.Queue
	ids       audit.IDGenerator
	clock     audit.Clock
	logger    *zap.Logger
}

// New constructs a Service.
func New(
	users audit.UserStore,
	tiers audit.TierStore,
	audits audit.AuditStore,
	snapshots audit.SnapshotStore,
	usage audit.UsageStore,
	ledger *quota.Ledger,
	queue audit.Queue,
	ids audit.IDGenerator,
	clock audit.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:     users,
		tiers:     tiers,
		audits:    audits,
		snapshots: snapshots,
		usage:     usage,
		ledger:    ledger,
		queue:     queue,
		ids:       ids,
		clock:     clock,
		logger:    logger,
	}
}

// SubmitAudit admits, records and enqueues one audit. Admission runs under
// the user's lock so concurrent submissions see each other's reservations.
// The usage entry is written before enqueueing, which reserves one audit
// slot even if the worker later fails the job.
func (s *Service) SubmitAudit(ctx context.Context, req SubmitRequest) (Submission, error) {
	if err := validateURL(req.URL); err != nil {
		return Submission{}, err
	}

	user, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return Submission{}, fmt.Errorf("loading user %s: %w", req.UserID, err)
	}
	tier, err := s.tiers.GetTier(ctx, user.TierName)
	if err != nil {
		return Submission{}, fmt.Errorf("loading tier %s: %w", user.TierName, err)
	}

	unlock := s.ledger.LockUser(user.ID)
	defer unlock()

	decision, err := s.ledger.CheckAdmission(ctx, user, tier)
	if err != nil {
		return Submission{}, err
	}
	if !decision.Admitted {
		s.logger.Info("audit submission rejected",
			zap.String("user_id", user.ID),
			zap.String("url", req.URL),
			zap.String("reason", decision.Reason.Error()),
		)
		return Submission{Reason: decision.Reason, Usage: decision.Usage}, nil
	}

	auditID, err := s.ids.NewID()
	if err != nil {
		return Submission{}, fmt.Errorf("generating audit id: %w", err)
	}
	now := s.clock.Now()

	if err := s.audits.CreateAudit(ctx, audit.Audit{
		ID:        auditID,
		ProjectID: req.ProjectID,
		UserID:    user.ID,
		URL:       req.URL,
		Status:    audit.StatusProcessing,
		CreatedAt: now,
	}); err != nil {
		return Submission{}, fmt.Errorf("creating audit: %w", err)
	}

	entryID, err := s.ids.NewID()
	if err != nil {
		return Submission{}, fmt.Errorf("generating usage entry id: %w", err)
	}
	if err := s.usage.AppendUsage(ctx, audit.UsageEntry{
		ID:        entryID,
		UserID:    user.ID,
		AuditID:   &auditID,
		CreatedAt: now,
	}); err != nil {
		return Submission{}, fmt.Errorf("recording usage entry: %w", err)
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := s.queue.Enqueue(enqueueCtx, audit.QueueItem{
		AuditID:     auditID,
		UserID:      user.ID,
		ProjectID:   req.ProjectID,
		URL:         req.URL,
		Competitors: req.Competitors,
		Submitted:   now.Unix(),
	}); err != nil {
		return Submission{}, fmt.Errorf("enqueueing audit %s: %w", auditID, err)
	}

	s.logger.Info("audit submitted",
		zap.String("audit_id", auditID),
		zap.String("user_id", user.ID),
		zap.String("url", req.URL),
		zap.Int("competitors", len(req.Competitors)),
	)
	return Submission{Admitted: true, AuditID: auditID, Usage: decision.Usage}, nil
}

// GetAudit returns one audit by ID.
func (s *Service) GetAudit(ctx context.Context, auditID string) (audit.Audit, error) {
	return s.audits.GetAudit(ctx, auditID)
}

// ListSnapshots returns the score history for one audit.
func (s *Service) ListSnapshots(ctx context.Context, auditID string) ([]audit.Snapshot, error) {
	if _, err := s.audits.GetAudit(ctx, auditID); err != nil {
		return nil, err
	}
	return s.snapshots.ListSnapshots(ctx, auditID)
}

// ListAudits returns the user's audits within the current billing period.
func (s *Service) ListAudits(ctx context.Context, userID string) ([]audit.Audit, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.audits.ListAuditsByUser(ctx, userID, user.CurrentPeriodStart, user.CurrentPeriodEnd)
}

// GetUsage reports current-period consumption against tier limits.
func (s *Service) GetUsage(ctx context.Context, userID string) (UsageSummary, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return UsageSummary{}, err
	}
	tier, err := s.tiers.GetTier(ctx, user.TierName)
	if err != nil {
		return UsageSummary{}, err
	}
	usage, err := s.usage.PeriodUsage(ctx, userID, user.CurrentPeriodStart, user.CurrentPeriodEnd)
	if err != nil {
		return UsageSummary{}, err
	}
	return UsageSummary{
		Tier:        tier.Name,
		PeriodStart: user.CurrentPeriodStart,
		PeriodEnd:   user.CurrentPeriodEnd,
		Usage:       usage,
		AuditLimit:  tier.AuditLimit,
		TokenLimit:  tier.TokenLimit,
	}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}
