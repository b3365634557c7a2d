// Package imaging describes image resolution requests and results.
package imaging

import (
	"strings"
	"time"
)

// Quality is a rendering hint passed to image hosts that support it
type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// ParseQuality maps free text to a Quality, defaulting to auto
func ParseQuality(s string) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case QualityHigh:
		return QualityHigh
	case QualityMedium:
		return QualityMedium
	case QualityLow:
		return QualityLow
	default:
		return QualityAuto
	}
}

// Width returns the width hint for the quality level, 0 for auto
func (q Quality) Width() int {
	switch q {
	case QualityHigh:
		return 1200
	case QualityMedium:
		return 600
	case QualityLow:
		return 300
	default:
		return 0
	}
}

// FallbackCategory selects which placeholder is tried first
type FallbackCategory string

const (
	FallbackProduct     FallbackCategory = "product"
	FallbackElectronics FallbackCategory = "electronics"
	FallbackComponents  FallbackCategory = "components"
	FallbackDefault     FallbackCategory = "default"
)

// ParseFallbackCategory maps free text to a FallbackCategory
func ParseFallbackCategory(s string) FallbackCategory {
	switch FallbackCategory(strings.ToLower(strings.TrimSpace(s))) {
	case FallbackProduct:
		return FallbackProduct
	case FallbackElectronics:
		return FallbackElectronics
	case FallbackComponents:
		return FallbackComponents
	default:
		return FallbackDefault
	}
}

// Request asks for a working URL for SourceURL. It is a value type and is
// never modified after it was issued.
type Request struct {
	SourceURL        string
	ForceRefresh     bool
	Quality          Quality
	FallbackCategory FallbackCategory
	// Version is appended as a cache-busting marker when non-zero
	Version int64
}

// NewRequest creates a request with default quality and fallback category
func NewRequest(sourceURL string) Request {
	return Request{
		SourceURL:        strings.TrimSpace(sourceURL),
		Quality:          QualityAuto,
		FallbackCategory: FallbackDefault,
	}
}

// CacheKey is the proxy cache key: source URL plus a refresh bucket
func (r Request) CacheKey() string {
	if r.ForceRefresh {
		return r.SourceURL + "|refresh"
	}
	return r.SourceURL + "|cached"
}

// ResolvedImage is a URL that was verified to load, or the inline placeholder
type ResolvedImage struct {
	URL          string    `json:"url"`
	StrategyUsed int       `json:"strategy_used"`
	Strategy     string    `json:"strategy"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// IsInline reports whether the image is an embedded data URI
func (r ResolvedImage) IsInline() bool {
	return strings.HasPrefix(r.URL, "data:")
}
