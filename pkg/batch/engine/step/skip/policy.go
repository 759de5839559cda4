// Package skip decides whether a failed item (or a failed write batch) is discarded so the step can go on.
package skip

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
)

// Policy names accepted by DefaultSkipPolicyFactory.Create.
const (
	PolicyAlways = "always"
	PolicyNever  = "never"
	PolicyLimit  = "limit"
)

// Unlimited is the skip limit reported by policies without an upper bound.
const Unlimited = -1

// SkipPolicy decides whether a failure is tolerated by discarding the offending item.
// Fatal errors (see exception.IsFatal) are never offered to a SkipPolicy.
type SkipPolicy interface {
	// ShouldSkip reports whether err is tolerated. itemIndexInChunk is the zero-based
	// position of the failed item in its chunk, or -1 for a whole-batch write failure.
	ShouldSkip(err error, itemIndexInChunk int) bool
	// IncrementSkipCount records n skipped items.
	IncrementSkipCount(n int)
	// GetSkipCount returns the number of items skipped so far.
	GetSkipCount() int
	// GetSkipLimit returns the maximum number of skips, or Unlimited.
	GetSkipLimit() int
}

// counter is the bookkeeping shared by every policy.
type counter struct {
	skipped int
}

func (c *counter) IncrementSkipCount(n int) { c.skipped += n }
func (c *counter) GetSkipCount() int        { return c.skipped }

// AlwaysSkip tolerates every non-nil error with no upper bound. It hides systemic
// failures such as an unavailable store, so it fits fault-injection runs and jobs whose
// verification step checks the outcome.
type AlwaysSkip struct {
	counter
}

// NewAlwaysSkip returns an AlwaysSkip policy.
func NewAlwaysSkip() *AlwaysSkip { return &AlwaysSkip{} }

func (p *AlwaysSkip) ShouldSkip(err error, _ int) bool { return err != nil }
func (p *AlwaysSkip) GetSkipLimit() int                { return Unlimited }

// NeverSkip tolerates nothing; the first failure fails the step.
type NeverSkip struct {
	counter
}

// NewNeverSkip returns a NeverSkip policy.
func NewNeverSkip() *NeverSkip { return &NeverSkip{} }

func (p *NeverSkip) ShouldSkip(error, int) bool { return false }
func (p *NeverSkip) GetSkipLimit() int          { return 0 }

// LimitCheckingSkipPolicy skips errors that are skippable BatchErrors or match one of the
// configured exception names, as long as fewer than skipLimit items have been skipped.
type LimitCheckingSkipPolicy struct {
	counter
	skipLimit           int
	skippableExceptions []string
}

// NewLimitCheckingSkipPolicy creates a LimitCheckingSkipPolicy. A skipLimit of 0 disables skipping.
func NewLimitCheckingSkipPolicy(skipLimit int, skippableExceptions []string) *LimitCheckingSkipPolicy {
	return &LimitCheckingSkipPolicy{skipLimit: skipLimit, skippableExceptions: skippableExceptions}
}

// ShouldSkip checks the limit first, then the BatchError flag, then the configured names.
func (p *LimitCheckingSkipPolicy) ShouldSkip(err error, _ int) bool {
	if err == nil || p.skipLimit <= 0 || p.skipped >= p.skipLimit {
		return false
	}

	var be *exception.BatchError
	if errors.As(err, &be) && be.IsSkippable() {
		return true
	}

	for _, typeName := range p.skippableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}
	return false
}

func (p *LimitCheckingSkipPolicy) GetSkipLimit() int { return p.skipLimit }

// CanSkipBatch reports whether p tolerates a write failure that drops all n items of a
// batch: the policy must accept err and the n skips must fit within its limit.
func CanSkipBatch(p SkipPolicy, err error, n int) bool {
	if !p.ShouldSkip(err, -1) {
		return false
	}
	limit := p.GetSkipLimit()
	return limit == Unlimited || p.GetSkipCount()+n <= limit
}

// DefaultSkipPolicyFactory creates skip policies from configuration values.
type DefaultSkipPolicyFactory struct{}

// NewDefaultSkipPolicyFactory creates a new DefaultSkipPolicyFactory.
func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create returns the policy named by policy (PolicyAlways, PolicyNever or PolicyLimit).
// An empty name selects PolicyLimit. Every exception name must be registered with the
// exception package.
func (f *DefaultSkipPolicyFactory) Create(policy string, skipLimit int, skippableExceptions []string) (SkipPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case PolicyAlways:
		return NewAlwaysSkip(), nil
	case PolicyNever:
		return NewNeverSkip(), nil
	case PolicyLimit, "":
		for _, name := range skippableExceptions {
			if !exception.IsErrorTypeRegistered(name) {
				return nil, fmt.Errorf("skippable exception '%s' is not a registered error type", name)
			}
		}
		return NewLimitCheckingSkipPolicy(skipLimit, skippableExceptions), nil
	default:
		return nil, fmt.Errorf("unknown skip policy '%s'", policy)
	}
}

var (
	_ SkipPolicy = (*AlwaysSkip)(nil)
	_ SkipPolicy = (*NeverSkip)(nil)
	_ SkipPolicy = (*LimitCheckingSkipPolicy)(nil)
)
