package imaging

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStrategyFailed means no candidate of a strategy passed verification
	ErrStrategyFailed = errors.New("imaging: strategy failed")
	// ErrNotApplicable means the strategy cannot handle the source URL at all; it is not retried
	ErrNotApplicable = errors.New("imaging: strategy not applicable")
	// ErrResolutionExhausted means every strategy and placeholder failed
	ErrResolutionExhausted = errors.New("imaging: all strategies exhausted")
	// ErrCheckFailed is returned by a Checker for URLs that do not load as images
	ErrCheckFailed = errors.New("imaging: image did not load")
)

// Tier groups strategies by how much verification time they get
type Tier int

const (
	TierPrimary Tier = iota
	TierSecondary
	TierFallback
)

// String returns the tier name
func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	default:
		return "fallback"
	}
}

// TierTimeouts holds the verification timeout per tier
type TierTimeouts struct {
	Primary   time.Duration
	Secondary time.Duration
	Fallback  time.Duration
}

// DefaultTierTimeouts returns 10s, 8s and 5s
func DefaultTierTimeouts() TierTimeouts {
	return TierTimeouts{
		Primary:   10 * time.Second,
		Secondary: 8 * time.Second,
		Fallback:  5 * time.Second,
	}
}

// For returns the timeout for a tier
func (t TierTimeouts) For(tier Tier) time.Duration {
	switch tier {
	case TierPrimary:
		return t.Primary
	case TierSecondary:
		return t.Secondary
	default:
		return t.Fallback
	}
}

// Strategy produces candidate URLs for a request. Candidates are verified by
// the resolver, never by the strategy itself.
type Strategy interface {
	Name() string
	Tier() Tier
	Candidates(ctx context.Context, req Request) ([]string, error)
}

// Checker checks that a URL actually loads as an image
type Checker interface {
	Check(ctx context.Context, url string) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context, url string) error

// Check calls f
func (f CheckerFunc) Check(ctx context.Context, url string) error {
	return f(ctx, url)
}
