package audit

import (
	"errors"
	"fmt"
)

// ErrFetchTimeout reports a fetch that exceeded its hard deadline.
var ErrFetchTimeout = errors.New("fetch timed out")

// Not-found sentinels returned by stores.
var (
	ErrAuditNotFound = errors.New("audit not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrTierNotFound  = errors.New("tier not found")
	ErrUsageNotFound = errors.New("usage entry not found")
)

// NetworkError reports a DNS or connection failure while fetching.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UpstreamHTTPError reports a non-2xx response from the audited site.
type UpstreamHTTPError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.StatusCode, e.URL)
}

// AuditLimitExceededError rejects admission when the period audit count is
// exhausted. Not retryable without a plan upgrade.
type AuditLimitExceededError struct {
	AuditsUsed int
	AuditLimit int
}

func (e *AuditLimitExceededError) Error() string {
	return fmt.Sprintf("audit limit exceeded: %d of %d used this period", e.AuditsUsed, e.AuditLimit)
}

// TokenLimitExceededError rejects admission when the period token budget is
// exhausted. Not retryable without a plan upgrade.
type TokenLimitExceededError struct {
	TokensUsed int
	TokenLimit int
}

func (e *TokenLimitExceededError) Error() string {
	return fmt.Sprintf("token limit exceeded: %d of %d used this period", e.TokensUsed, e.TokenLimit)
}
