package imaging

import (
	"context"
	"errors"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/telemetry"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ResolverConfig holds the retry and verification settings
type ResolverConfig struct {
	Timeouts imaging.TierTimeouts
	// MaxAttempts is how often one strategy is tried before moving on
	MaxAttempts int
	// RetryBaseDelay is the wait before the second attempt; it doubles after that
	RetryBaseDelay time.Duration
}

// DefaultResolverConfig returns the standard tier timeouts, 2 attempts and a 500ms base delay
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Timeouts:       imaging.DefaultTierTimeouts(),
		MaxAttempts:    2,
		RetryBaseDelay: 500 * time.Millisecond,
	}
}

// Resolver walks the strategy chain until a candidate URL passes the check.
//
// StrategyUsed in the result is the 1-based position of the winner: the
// strategies first, then the placeholder step, then the inline image which
// reports len(strategies)+2.
type Resolver struct {
	strategies   []imaging.Strategy
	placeholders Placeholders
	checker       imaging.Checker
	cfg          ResolverConfig
	logger       *zap.Logger
	metrics      *telemetry.StoreMetrics
	now          func() time.Time
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithResolverMetrics sets the metrics sink
func WithResolverMetrics(m *telemetry.StoreMetrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithResolverClock overrides the clock stamped on results
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver
func NewResolver(strategies []imaging.Strategy, placeholders Placeholders, checker imaging.Checker, cfg ResolverConfig, opts ...ResolverOption) *Resolver {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeouts == (imaging.TierTimeouts{}) {
		cfg.Timeouts = imaging.DefaultTierTimeouts()
	}
	r := &Resolver{
		strategies:   strategies,
		placeholders: placeholders,
		checker:       checker,
		cfg:          cfg,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ChainLength is the number of checkd steps: the strategies plus the placeholder step
func (r *Resolver) ChainLength() int {
	return len(r.strategies) + 1
}

// Resolve returns a URL that passed the load check, or the inline
// placeholder when every strategy and placeholder failed. The only error is
// the context's, returned together with the inline placeholder.
func (r *Resolver) Resolve(ctx context.Context, req imaging.Request) (imaging.ResolvedImage, error) {
	for i, s := range r.strategies {
		url, err := r.attempt(ctx, s, req)
		if err == nil {
			return r.result(url, i+1, s.Name()), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.inline(), ctxErr
		}
		if !errors.Is(err, imaging.ErrNotApplicable) {
			r.logger.Debug("image strategy failed",
				zap.String("strategy", s.Name()),
				zap.String("source_url", req.SourceURL),
				zap.Error(err))
		}
	}

	for _, candidate := range r.placeholders.For(req.FallbackCategory) {
		if err := r.check(ctx, imaging.TierFallback, candidate); err == nil {
			return r.result(candidate, len(r.strategies)+1, StrategyPlaceholder), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.inline(), ctxErr
		}
	}

	r.logger.Warn("image resolution exhausted, using inline placeholder",
		zap.String("source_url", req.SourceURL),
		zap.Error(imaging.ErrResolutionExhausted))
	return r.inline(), nil
}

// attempt runs one strategy with exponential backoff between attempts
func (r *Resolver) attempt(ctx context.Context, s imaging.Strategy, req imaging.Request) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryBaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), ctx)

	var winner string
	op := func() error {
		candidates, err := s.Candidates(ctx, req)
		if errors.Is(err, imaging.ErrNotApplicable) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		for _, c := range candidates {
			if err := r.check(ctx, s.Tier(), c); err == nil {
				winner = c
				return nil
			}
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
		}
		return imaging.ErrStrategyFailed
	}

	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return winner, nil
}

func (r *Resolver) check(ctx context.Context, tier imaging.Tier, url string) error {
	pctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.For(tier))
	defer cancel()

	start := time.Now()
	err := r.checker.Check(pctx, url)
	r.metrics.ObserveCheck(tier.String(), time.Since(start), err == nil)
	return err
}

func (r *Resolver) result(url string, position int, strategy string) imaging.ResolvedImage {
	r.metrics.RecordResolution(strategy)
	return imaging.ResolvedImage{
		URL:          url,
		StrategyUsed: position,
		Strategy:     strategy,
		ResolvedAt:   r.now(),
	}
}

func (r *Resolver) inline() imaging.ResolvedImage {
	return r.result(InlinePlaceholder, len(r.strategies)+2, StrategyInline)
}
