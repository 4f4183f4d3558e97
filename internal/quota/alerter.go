package quota

import (
	"context"

	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
	"github.com/rankpilot/auditor/internal/metrics"
)

// LogAlerter emits usage alerts as structured log lines plus a metric. It
// stands in for an email integration.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter constructs a LogAlerter.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAlerter{logger: logger}
}

// UsageAlert logs the user's consumption against their tier limits.
func (a *LogAlerter) UsageAlert(_ context.Context, user audit.User, usage audit.PeriodUsage, tier audit.Tier) {
	metrics.ObserveUsageAlert()
	a.logger.Warn("usage approaching tier limit",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("tier", tier.Name),
		zap.Int("audits_used", usage.AuditsUsed),
		zap.Int("audit_limit", tier.AuditLimit),
		zap.Int("tokens_used", usage.TokensUsed),
		zap.Int("token_limit", tier.TokenLimit),
	)
}
