package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Field flags the optional product columns. Older deployments of the products
// table lack some of them, so a record remembers which ones the server returned.
type Field uint8

const (
	FieldImages Field = 1 << iota
	FieldFeatured
	FieldVisible
	FieldImageVersion
)

// AllOptionalFields is the mask of a record read from a fully migrated table
const AllOptionalFields = FieldImages | FieldFeatured | FieldVisible | FieldImageVersion

// Product is a catalog item as shown on the storefront
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Images       []string        `json:"images,omitempty"`
	InStock      bool            `json:"in_stock"`
	Featured     bool            `json:"featured"`
	Visible      bool            `json:"visible"`
	ImageVersion int64           `json:"image_version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Fields records which optional columns carry authoritative values
	Fields Field `json:"-"`
}

// NewProduct creates a new, visible, in-stock product
func NewProduct(name, category string, price decimal.Decimal) (*Product, error) {
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if err := validatePrice(price); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Product{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Category:  strings.TrimSpace(category),
		Price:     price,
		InStock:   true,
		Visible:   true,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    AllOptionalFields,
	}, nil
}

// Has reports whether the optional field f was loaded
func (p *Product) Has(f Field) bool {
	return p.Fields&f == f
}

// Clone returns a deep copy of the product
func (p Product) Clone() Product {
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	return p
}

// Merge shallow-merges a server-confirmed record into the locally cached one.
// Base columns always come from the server; optional columns only when the
// server actually returned them, so a degraded read never wipes local values.
func Merge(local, server Product) Product {
	merged := local.Clone()
	merged.ID = server.ID
	merged.Name = server.Name
	merged.Description = server.Description
	merged.Price = server.Price
	merged.Category = server.Category
	merged.Image = server.Image
	merged.InStock = server.InStock
	if !server.CreatedAt.IsZero() {
		merged.CreatedAt = server.CreatedAt
	}
	if !server.UpdatedAt.IsZero() {
		merged.UpdatedAt = server.UpdatedAt
	}

	if server.Has(FieldImages) {
		merged.Images = append([]string(nil), server.Images...)
	}
	if server.Has(FieldFeatured) {
		merged.Featured = server.Featured
	}
	if server.Has(FieldVisible) {
		merged.Visible = server.Visible
	}
	if server.Has(FieldImageVersion) && server.ImageVersion > merged.ImageVersion {
		merged.ImageVersion = server.ImageVersion
	}
	merged.Fields = local.Fields | server.Fields
	return merged
}

// NextImageVersion returns a version strictly greater than prev.
// The wall clock in milliseconds is used when it is ahead, so versions stay
// comparable across instances that never saw each other's updates.
func NextImageVersion(prev int64, now time.Time) int64 {
	next := now.UnixMilli()
	if next <= prev {
		next = prev + 1
	}
	return next
}

// IsStaleImageVersion reports whether candidate is not newer than current
func IsStaleImageVersion(current, candidate int64) bool {
	return candidate <= current
}

// DeriveCategories returns the distinct non-empty categories in sorted order
func DeriveCategories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	categories := make([]string, 0)
	for _, p := range products {
		c := strings.TrimSpace(p.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Product price cannot be negative")
	}
	return nil
}
