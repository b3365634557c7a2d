// Package imaging verifies that image URLs actually load.
package imaging

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// sniffBytes is how much of the body is read when the content type is missing
const sniffBytes = 512

// HTTPChecker checks image URLs with a one-byte ranged GET.
// A URL passes when the response is 2xx (or 206) and either declares an image
// content type or, lacking one, does not look like an HTML error page.
type HTTPChecker struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// HTTPCheckerOption configures an HTTPChecker
type HTTPCheckerOption func(*HTTPChecker)

// WithCheckClient sets the HTTP client
func WithCheckClient(client *http.Client) HTTPCheckerOption {
	return func(c *HTTPChecker) {
		c.client = client
	}
}

// WithCheckRateLimit caps outgoing checks; rps <= 0 disables limiting
func WithCheckRateLimit(rps float64, burst int) HTTPCheckerOption {
	return func(c *HTTPChecker) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCheckLogger sets the logger
func WithCheckLogger(logger *zap.Logger) HTTPCheckerOption {
	return func(c *HTTPChecker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPChecker creates an HTTPChecker. Timeouts come from the caller's context.
func NewHTTPChecker(opts ...HTTPCheckerOption) *HTTPChecker {
	c := &HTTPChecker{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns nil when url loads as an image
func (c *HTTPChecker) Check(ctx context.Context, url string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", imaging.ErrCheckFailed, err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("Accept", "image/*")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", imaging.ErrCheckFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, sniffBytes))
		return fmt.Errorf("%w: status %d", imaging.ErrCheckFailed, resp.StatusCode)
	}

	mediaType := ""
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return nil
	case mediaType == "text/html":
		return fmt.Errorf("%w: html response", imaging.ErrCheckFailed)
	}

	head, _ := io.ReadAll(io.LimitReader(resp.Body, sniffBytes))
	if len(head) == 0 {
		// Some hosts answer a ranged request with an empty 2xx
		if mediaType == "" {
			return nil
		}
		return fmt.Errorf("%w: content type %s", imaging.ErrCheckFailed, mediaType)
	}
	sniffed := http.DetectContentType(head)
	if strings.HasPrefix(sniffed, "text/html") {
		return fmt.Errorf("%w: html response", imaging.ErrCheckFailed)
	}
	if mediaType != "" && mediaType != "application/octet-stream" && !strings.HasPrefix(sniffed, "image/") {
		return fmt.Errorf("%w: content type %s", imaging.ErrCheckFailed, mediaType)
	}
	return nil
}

var _ imaging.Checker = (*HTTPChecker)(nil)
