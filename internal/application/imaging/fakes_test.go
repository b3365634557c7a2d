package imaging

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
)

// fakeChecker accepts URLs for which ok returns true
type fakeChecker struct {
	ok func(url string) bool

	mu    sync.Mutex
	calls []string
}

func acceptPrefix(prefixes ...string) *fakeChecker {
	return &fakeChecker{ok: func(url string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(url, p) {
				return true
			}
		}
		return false
	}}
}

func (p *fakeChecker) Check(ctx context.Context, url string) error {
	p.mu.Lock()
	p.calls = append(p.calls, url)
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ok(url) {
		return nil
	}
	return imaging.ErrCheckFailed
}

func (p *fakeChecker) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// fakeStrategy returns fixed candidates and counts attempts
type fakeStrategy struct {
	name       string
	tier       imaging.Tier
	candidates []string
	err        error
	attempts   atomic.Int32
}

func (s *fakeStrategy) Name() string       { return s.name }
func (s *fakeStrategy) Tier() imaging.Tier { return s.tier }
func (s *fakeStrategy) Candidates(ctx context.Context, req imaging.Request) ([]string, error) {
	s.attempts.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

// fakeLocator is an ObjectLocator over https://bucket.test/
type fakeLocator struct {
	signErr error
}

const fakeLocatorBase = "https://bucket.test/"

func (l *fakeLocator) ObjectKey(raw string) (string, bool) {
	if !strings.HasPrefix(raw, fakeLocatorBase) {
		return "", false
	}
	key, _, _ := strings.Cut(strings.TrimPrefix(raw, fakeLocatorBase), "?")
	return key, key != ""
}

func (l *fakeLocator) PublicURL(path string) string {
	return fakeLocatorBase + path
}

func (l *fakeLocator) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if l.signErr != nil {
		return "", l.signErr
	}
	return fakeLocatorBase + path + "?signature=fresh", nil
}

// fakeResolver resolves to "<source>#<n>" and can be held on a gate
type fakeResolver struct {
	calls   atomic.Int32
	gate    chan struct{}
	started chan string
	inline  bool
}

func (r *fakeResolver) Resolve(ctx context.Context, req imaging.Request) (imaging.ResolvedImage, error) {
	n := r.calls.Add(1)
	if r.started != nil {
		r.started <- req.SourceURL
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return imaging.ResolvedImage{URL: InlinePlaceholder}, ctx.Err()
		}
	}
	if r.inline {
		return imaging.ResolvedImage{URL: InlinePlaceholder, StrategyUsed: 7}, nil
	}
	return imaging.ResolvedImage{
		URL:          req.SourceURL + "#" + itoa(int(n)),
		StrategyUsed: 1,
		ResolvedAt:   time.Now(),
	}, nil
}

func itoa(n int) string {
	const digits = "0123456789"
	if n < 10 {
		return digits[n : n+1]
	}
	return itoa(n/10) + digits[n%10:n%10+1]
}

func fastConfig() ResolverConfig {
	return ResolverConfig{
		Timeouts: imaging.TierTimeouts{
			Primary:   200 * time.Millisecond,
			Secondary: 150 * time.Millisecond,
			Fallback:  100 * time.Millisecond,
		},
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
	}
}
