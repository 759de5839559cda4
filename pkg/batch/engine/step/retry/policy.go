// Package retry decides whether a failed chunk is re-attempted after a rollback.
package retry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// Policy names accepted by DefaultRetryPolicyFactory.Create.
const (
	PolicyNever  = "never"
	PolicySimple = "simple"
)

// RetryPolicy decides whether the same chunk is re-attempted from a clean working set.
// Fatal errors (see exception.IsFatal) are never offered to a RetryPolicy.
type RetryPolicy interface {
	// ShouldRetry reports whether another attempt is allowed after attempt failed attempts caused by err.
	ShouldRetry(err error, attempt int) bool
	// GetBackoffInterval returns how long to wait before the next attempt.
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the maximum number of attempts, including the first one.
	GetMaxAttempts() int
}

// NeverRetry never re-attempts a chunk.
type NeverRetry struct{}

// NewNeverRetry returns a NeverRetry policy.
func NewNeverRetry() *NeverRetry { return &NeverRetry{} }

func (NeverRetry) ShouldRetry(error, int) bool          { return false }
func (NeverRetry) GetBackoffInterval(int) time.Duration { return 0 }
func (NeverRetry) GetMaxAttempts() int                  { return 1 }

// SimpleRetryPolicy retries up to maxAttempts attempts with a fixed backoff.
// An error is retryable when it is a retryable BatchError or matches one of the configured names.
type SimpleRetryPolicy struct {
	maxAttempts         int
	interval            time.Duration
	retryableExceptions []string
}

// NewSimpleRetryPolicy creates a SimpleRetryPolicy.
func NewSimpleRetryPolicy(maxAttempts int, interval time.Duration, retryableExceptions []string) *SimpleRetryPolicy {
	return &SimpleRetryPolicy{
		maxAttempts:         maxAttempts,
		interval:            interval,
		retryableExceptions: retryableExceptions,
	}
}

// ShouldRetry implements RetryPolicy.
func (p *SimpleRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}

	var be *exception.BatchError
	if errors.As(err, &be) && be.IsRetryable() {
		return true
	}

	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

// GetBackoffInterval returns the fixed interval regardless of attempt.
func (p *SimpleRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	return p.interval
}

// GetMaxAttempts implements RetryPolicy.
func (p *SimpleRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// DefaultRetryPolicyFactory creates retry policies from configuration values.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create returns the policy named by policy. An empty name selects PolicySimple when
// maxAttempts is above 1 and PolicyNever otherwise.
func (f *DefaultRetryPolicyFactory) Create(policy string, maxAttempts int, interval time.Duration, retryableExceptions []string) (RetryPolicy, error) {
	name := strings.ToLower(strings.TrimSpace(policy))
	if name == "" {
		name = PolicyNever
		if maxAttempts > 1 {
			name = PolicySimple
		}
	}

	switch name {
	case PolicyNever:
		return NewNeverRetry(), nil
	case PolicySimple:
		if maxAttempts < 1 {
			return nil, fmt.Errorf("retry policy '%s' requires max attempts >= 1, got %d", name, maxAttempts)
		}
		for _, n := range retryableExceptions {
			if !exception.IsErrorTypeRegistered(n) {
				return nil, fmt.Errorf("retryable exception '%s' is not a registered error type", n)
			}
		}
		return NewSimpleRetryPolicy(maxAttempts, interval, retryableExceptions), nil
	default:
		return nil, fmt.Errorf("unknown retry policy '%s'", policy)
	}
}

var (
	_ RetryPolicy = (*NeverRetry)(nil)
	_ RetryPolicy = (*SimpleRetryPolicy)(nil)
)
