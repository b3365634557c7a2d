package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// legacyNamespace derives stable product ids for export records without a UUID
var legacyNamespace = uuid.MustParse("4f1c2b7e-9d3a-4c55-8e0f-6a2b1d7c9e31")

// ObjectGetter reads a whole object by key
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// LegacyProductSource serves the JSON product export kept in object storage.
// The store falls back to it when the database is unreachable or empty.
type LegacyProductSource struct {
	getter ObjectGetter
	key    string
	logger *zap.Logger
}

// Ensure LegacyProductSource implements catalog.ProductSource
var _ catalog.ProductSource = (*LegacyProductSource)(nil)

// NewLegacyProductSource creates a source reading key through getter
func NewLegacyProductSource(getter ObjectGetter, key string, logger *zap.Logger) *LegacyProductSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyProductSource{getter: getter, key: key, logger: logger}
}

// Name identifies the source in events and logs
func (s *LegacyProductSource) Name() string {
	return "legacy"
}

// List reads and decodes the export. Records that cannot be decoded are
// skipped and logged.
func (s *LegacyProductSource) List(ctx context.Context) ([]catalog.Product, error) {
	data, err := s.getter.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy export %q: %w", s.key, err)
	}

	records, err := decodeLegacyExport(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode legacy export %q: %w", s.key, err)
	}

	products := make([]catalog.Product, 0, len(records))
	for i, rec := range records {
		p, err := rec.toProduct()
		if err != nil {
			s.logger.Warn("Skipping legacy product record",
				zap.Int("index", i),
				zap.String("name", rec.Name),
				zap.Error(err),
			)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// decodeLegacyExport accepts either a bare array or {"products": [...]}
func decodeLegacyExport(data []byte) ([]legacyRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var records []legacyRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var wrapped struct {
		Products []legacyRecord `json:"products"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Products, nil
}

// legacyRecord mirrors the loosely typed export. Both camelCase and
// snake_case keys occur in older exports.
type legacyRecord struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        json.RawMessage `json:"price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	ImageURL     string          `json:"imageUrl"`
	Images       []string        `json:"images"`
	InStock      *bool           `json:"inStock"`
	InStockSnake *bool           `json:"in_stock"`
	Featured     *bool           `json:"featured"`
	Visible      *bool           `json:"visible"`
	UpdatedAt    *time.Time      `json:"updated_at"`
}

func (r legacyRecord) toProduct() (catalog.Product, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return catalog.Product{}, errors.New("record has no name")
	}

	price, err := parseLegacyPrice(r.Price)
	if err != nil {
		return catalog.Product{}, err
	}

	id, err := uuid.Parse(r.ID)
	if err != nil {
		id = uuid.NewSHA1(legacyNamespace, []byte(r.ID+"|"+name))
	}

	p := catalog.Product{
		ID:          id,
		Name:        name,
		Description: r.Description,
		Price:       price,
		Category:    strings.TrimSpace(r.Category),
		Image:       r.Image,
		InStock:     true,
		Visible:     true,
	}
	if p.Image == "" {
		p.Image = r.ImageURL
	}
	switch {
	case r.InStock != nil:
		p.InStock = *r.InStock
	case r.InStockSnake != nil:
		p.InStock = *r.InStockSnake
	}
	if r.Images != nil {
		p.Images = r.Images
		p.Fields |= catalog.FieldImages
	}
	if r.Featured != nil {
		p.Featured = *r.Featured
		p.Fields |= catalog.FieldFeatured
	}
	if r.Visible != nil {
		p.Visible = *r.Visible
		p.Fields |= catalog.FieldVisible
	}
	if r.UpdatedAt != nil {
		p.UpdatedAt = *r.UpdatedAt
		p.CreatedAt = *r.UpdatedAt
	}
	return p, nil
}

// parseLegacyPrice handles JSON numbers and display strings like "K 1,250.00"
func parseLegacyPrice(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		return catalog.ParsePrice(s)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero, catalog.ErrInvalidPrice
	}
	return d, nil
}
