// Package imaging resolves product image URLs into URLs that are known to
// load, caches the results and keeps displayed images fresh.
package imaging

import (
	"context"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
)

// Strategy names, in chain order
const (
	StrategyDirect        = "direct"
	StrategyTokenRefresh  = "token-refresh"
	StrategyCORSVariants  = "cors-variants"
	StrategyProxy         = "proxy"
	StrategyStorageDirect = "storage-direct"
	StrategyPlaceholder   = "placeholder"
	StrategyInline        = "inline"
)

// ObjectLocator addresses objects of the configured bucket.
// The object storage implementations satisfy it.
type ObjectLocator interface {
	// ObjectKey extracts the key from a URL of this bucket
	ObjectKey(rawURL string) (string, bool)
	PublicURL(path string) string
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// cacheBust appends the _t/_r/_v markers and the quality hint to raw.
// Existing query parameters are kept.
func cacheBust(raw string, req imaging.Request, now time.Time) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", imaging.ErrNotApplicable
	}
	q := u.Query()
	q.Set("_t", strconv.FormatInt(now.UnixMilli(), 10))
	q.Set("_r", strconv.FormatUint(rand.Uint64()>>32, 36))
	if req.Version > 0 {
		q.Set("_v", strconv.FormatInt(req.Version, 10))
	}
	if w := req.Quality.Width(); w > 0 {
		q.Set("width", strconv.Itoa(w))
		q.Set("quality", string(req.Quality))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isHTTPURL(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}

// DirectStrategy loads the source URL with cache-busting parameters
type DirectStrategy struct {
	now func() time.Time
}

// NewDirectStrategy creates a DirectStrategy
func NewDirectStrategy() *DirectStrategy {
	return &DirectStrategy{now: time.Now}
}

func (s *DirectStrategy) Name() string       { return StrategyDirect }
func (s *DirectStrategy) Tier() imaging.Tier { return imaging.TierPrimary }

// Candidates returns the cache-busted source URL
func (s *DirectStrategy) Candidates(ctx context.Context, req imaging.Request) ([]string, error) {
	if !isHTTPURL(req.SourceURL) {
		return nil, imaging.ErrNotApplicable
	}
	u, err := cacheBust(req.SourceURL, req, s.now())
	if err != nil {
		return nil, err
	}
	return []string{u}, nil
}

// TokenRefreshStrategy asks object storage for a freshly signed URL of the
// object behind a storage URL. Expired download tokens are the most common
// reason a stored image stops loading.
type TokenRefreshStrategy struct {
	locator ObjectLocator
	ttl     time.Duration
}

// NewTokenRefreshStrategy creates a TokenRefreshStrategy. A nil locator makes
// it inapplicable to every request.
func NewTokenRefreshStrategy(locator ObjectLocator, ttl time.Duration) *TokenRefreshStrategy {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenRefreshStrategy{locator: locator, ttl: ttl}
}

func (s *TokenRefreshStrategy) Name() string       { return StrategyTokenRefresh }
func (s *TokenRefreshStrategy) Tier() imaging.Tier { return imaging.TierPrimary }

// Candidates returns a signed URL for the parsed object path
func (s *TokenRefreshStrategy) Candidates(ctx context.Context, req imaging.Request) ([]string, error) {
	if s.locator == nil {
		return nil, imaging.ErrNotApplicable
	}
	key, ok := objectPath(s.locator, req.SourceURL)
	if !ok {
		return nil, imaging.ErrNotApplicable
	}
	signed, err := s.locator.SignedURL(ctx, key, s.ttl)
	if err != nil {
		return nil, imaging.ErrStrategyFailed
	}
	return []string{signed}, nil
}

// objectPath finds the object key for a URL of the own bucket or of a
// recognised storage host
func objectPath(locator ObjectLocator, raw string) (string, bool) {
	if key, ok := locator.ObjectKey(raw); ok {
		return key, true
	}
	if loc, ok := imaging.ParseStorageURL(raw); ok {
		return loc.Path, true
	}
	return "", false
}

// CORSVariantStrategy retries storage URLs in the forms browsers and mobile
// networks accept more readily: without the token, with alt=media, and
// through the provider's alternate public host.
type CORSVariantStrategy struct{}

// NewCORSVariantStrategy creates a CORSVariantStrategy
func NewCORSVariantStrategy() *CORSVariantStrategy {
	return &CORSVariantStrategy{}
}

func (s *CORSVariantStrategy) Name() string       { return StrategyCORSVariants }
func (s *CORSVariantStrategy) Tier() imaging.Tier { return imaging.TierSecondary }

// Candidates returns the distinct variants of the source URL
func (s *CORSVariantStrategy) Candidates(ctx context.Context, req imaging.Request) ([]string, error) {
	u, err := url.Parse(req.SourceURL)
	if err != nil || u.Host == "" {
		return nil, imaging.ErrNotApplicable
	}

	seen := map[string]bool{req.SourceURL: true}
	var out []string
	add := func(candidate string) {
		if candidate != "" && !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}

	q := u.Query()
	if q.Has("token") {
		stripped := *u
		sq := stripped.Query()
		sq.Del("token")
		stripped.RawQuery = sq.Encode()
		add(stripped.String())
	}

	loc, known := imaging.ParseStorageURL(req.SourceURL)
	if known && loc.Provider == imaging.ProviderFirebase {
		add(loc.FirebaseURL())
	} else if q.Get("alt") != "media" {
		media := *u
		mq := media.Query()
		mq.Set("alt", "media")
		media.RawQuery = mq.Encode()
		add(media.String())
	}
	if known {
		for _, alt := range loc.AlternateHostURLs() {
			add(alt)
		}
	}

	if len(out) == 0 {
		return nil, imaging.ErrNotApplicable
	}
	return out, nil
}

// ProxyStrategy loads the image through the configured image proxy and, as a
// last resort before placeholders, with aggressive cache busting
type ProxyStrategy struct {
	proxyBase string
	now       func() time.Time
}

// NewProxyStrategy creates a ProxyStrategy; proxyBase may be empty
func NewProxyStrategy(proxyBase string) *ProxyStrategy {
	return &ProxyStrategy{proxyBase: proxyBase, now: time.Now}
}

func (s *ProxyStrategy) Name() string       { return StrategyProxy }
func (s *ProxyStrategy) Tier() imaging.Tier { return imaging.TierSecondary }

// Candidates returns the proxied URL and a no-cache variant of the source
func (s *ProxyStrategy) Candidates(ctx context.Context, req imaging.Request) ([]string, error) {
	if !isHTTPURL(req.SourceURL) {
		return nil, imaging.ErrNotApplicable
	}
	var out []string
	if s.proxyBase != "" {
		out = append(out, s.proxyBase+url.QueryEscape(req.SourceURL))
	}

	busted, err := cacheBust(req.SourceURL, req, s.now())
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(busted)
	if err != nil {
		return nil, imaging.ErrNotApplicable
	}
	q := u.Query()
	q.Set("_nocache", strconv.FormatInt(s.now().UnixNano(), 36))
	q.Set("_mobile", "1")
	u.RawQuery = q.Encode()
	return append(out, u.String()), nil
}

// StorageDirectStrategy rebuilds the public URL of the object from its path
type StorageDirectStrategy struct {
	locator ObjectLocator
}

// NewStorageDirectStrategy creates a StorageDirectStrategy
func NewStorageDirectStrategy(locator ObjectLocator) *StorageDirectStrategy {
	return &StorageDirectStrategy{locator: locator}
}

func (s *StorageDirectStrategy) Name() string       { return StrategyStorageDirect }
func (s *StorageDirectStrategy) Tier() imaging.Tier { return imaging.TierFallback }

// Candidates returns the public URL of the object in the own bucket
func (s *StorageDirectStrategy) Candidates(ctx context.Context, req imaging.Request) ([]string, error) {
	if s.locator == nil {
		return nil, imaging.ErrNotApplicable
	}
	key, ok := objectPath(s.locator, req.SourceURL)
	if !ok {
		return nil, imaging.ErrNotApplicable
	}
	public := s.locator.PublicURL(key)
	if public == req.SourceURL {
		return nil, imaging.ErrNotApplicable
	}
	return []string{public}, nil
}

// DefaultStrategies returns the standard chain. locator may be nil when no
// object storage is configured.
func DefaultStrategies(locator ObjectLocator, proxyBase string, signedTTL time.Duration) []imaging.Strategy {
	chain := []imaging.Strategy{
		NewDirectStrategy(),
		NewTokenRefreshStrategy(locator, signedTTL),
		NewCORSVariantStrategy(),
		NewProxyStrategy(proxyBase),
		NewStorageDirectStrategy(locator),
	}
	return chain
}

var (
	_ imaging.Strategy = (*DirectStrategy)(nil)
	_ imaging.Strategy = (*TokenRefreshStrategy)(nil)
	_ imaging.Strategy = (*CORSVariantStrategy)(nil)
	_ imaging.Strategy = (*ProxyStrategy)(nil)
	_ imaging.Strategy = (*StorageDirectStrategy)(nil)
)
