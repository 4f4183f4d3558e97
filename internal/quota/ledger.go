// Package quota enforces per-period audit and token limits and emits usage
// alerts as consumption approaches the cap.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
)

// Config tunes alerting behavior.
type Config struct {
	// AlertThresholdPct triggers a usage alert once either metric crosses
	// this percentage of its limit.
	AlertThresholdPct int
	// AlertCooldown suppresses repeat alerts for the same user.
	AlertCooldown time.Duration
}

// DefaultConfig returns the standard alert settings.
func DefaultConfig() Config {
	return Config{
		AlertThresholdPct: 90,
		AlertCooldown:     24 * time.Hour,
	}
}

// Alerter receives usage alerts. Implementations fan out to email, metrics
// or logs.
type Alerter interface {
	UsageAlert(ctx context.Context, user audit.User, usage audit.PeriodUsage, tier audit.Tier)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted bool
	// Reason carries the limit error when Admitted is false.
	Reason error
	Usage  audit.PeriodUsage
}

// Ledger aggregates period usage and decides admission. Admission for a
// given user must run under LockUser so two concurrent submissions cannot
// both read the same usage snapshot and both pass.
type Ledger struct {
	usage   audit.UsageStore
	users   audit.UserStore
	clock   audit.Clock
	alerter Alerter
	logger  *zap.Logger
	cfg     Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a Ledger. alerter may be nil to disable alerts.
func NewLedger(usage audit.UsageStore, users audit.UserStore, clock audit.Clock, alerter Alerter, logger *zap.Logger, cfg Config) *Ledger {
	if cfg.AlertThresholdPct == 0 {
		cfg.AlertThresholdPct = DefaultConfig().AlertThresholdPct
	}
	if cfg.AlertCooldown == 0 {
		cfg.AlertCooldown = DefaultConfig().AlertCooldown
	}
	return &Ledger{
		usage:   usage,
		users:   users,
		clock:   clock,
		alerter: alerter,
		logger:  logger,
		cfg:     cfg,
		locks:   make(map[string]*sync.Mutex),
	}
}

// LockUser serializes admission per user. Returns the unlock function.
func (l *Ledger) LockUser(userID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// CheckAdmission evaluates both limits against the user's current billing
// period. The audit limit is checked before the token limit, so a user out
// of both gets the audit-limit reason. Callers must hold the user's lock.
func (l *Ledger) CheckAdmission(ctx context.Context, user audit.User, tier audit.Tier) (Decision, error) {
	usage, err := l.usage.PeriodUsage(ctx, user.ID, user.CurrentPeriodStart, user.CurrentPeriodEnd)
	if err != nil {
		return Decision{}, fmt.Errorf("reading period usage for user %s: %w", user.ID, err)
	}

	if usage.AuditsUsed >= tier.AuditLimit {
		return Decision{
			Reason: &audit.AuditLimitExceededError{AuditsUsed: usage.AuditsUsed, AuditLimit: tier.AuditLimit},
			Usage:  usage,
		}, nil
	}
	if usage.TokensUsed >= tier.TokenLimit {
		return Decision{
			Reason: &audit.TokenLimitExceededError{TokensUsed: usage.TokensUsed, TokenLimit: tier.TokenLimit},
			Usage:  usage,
		}, nil
	}

	l.maybeAlert(ctx, user, usage, tier)

	return Decision{Admitted: true, Usage: usage}, nil
}

// maybeAlert fires a usage alert when either metric crosses the threshold
// and no alert went out within the cooldown window. Alert failures never
// block admission.
func (l *Ledger) maybeAlert(ctx context.Context, user audit.User, usage audit.PeriodUsage, tier audit.Tier) {
	if l.alerter == nil {
		return
	}
	if !l.overThreshold(usage, tier) {
		return
	}
	now := l.clock.Now()
	if user.LastUsageAlertAt != nil && now.Sub(*user.LastUsageAlertAt) < l.cfg.AlertCooldown {
		return
	}
	if err := l.users.MarkUsageAlert(ctx, user.ID, now); err != nil {
		l.logger.Warn("failed to record usage alert time",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return
	}
	l.alerter.UsageAlert(ctx, user, usage, tier)
	l.logger.Info("usage alert sent",
		zap.String("user_id", user.ID),
		zap.Int("audits_used", usage.AuditsUsed),
		zap.Int("tokens_used", usage.TokensUsed),
	)
}

func (l *Ledger) overThreshold(usage audit.PeriodUsage, tier audit.Tier) bool {
	return percentOf(usage.AuditsUsed, tier.AuditLimit) >= l.cfg.AlertThresholdPct ||
		percentOf(usage.TokensUsed, tier.TokenLimit) >= l.cfg.AlertThresholdPct
}

func percentOf(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	return used * 100 / limit
}
