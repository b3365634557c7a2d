package models

import (
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// BaseProductColumns exist on every deployment of the products table
var BaseProductColumns = []string{
	"id", "name", "description", "price", "category", "image", "in_stock", "created_at", "updated_at",
}

// OptionalProductColumns were added later and may be missing on older schemas
var OptionalProductColumns = []string{"images", "featured", "visible", "image_version"}

// BaseProductModel maps only the base columns of the products table
type BaseProductModel struct {
	BaseModel
	Name        string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Category    string          `gorm:"type:varchar(100);index"`
	Image       string          `gorm:"type:text"`
	InStock     bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BaseProductModel) TableName() string {
	return "products"
}

// ProductModel maps the fully migrated products table. Column defaults live
// in the migrations; declaring them here would make GORM skip false values.
type ProductModel struct {
	BaseProductModel
	Images       StringList `gorm:"type:jsonb"`
	Featured     bool       `gorm:"not null"`
	Visible      bool       `gorm:"not null"`
	ImageVersion int64      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the base model; optional fields are flagged as absent
func (m *BaseProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Category:    m.Category,
		Image:       m.Image,
		InStock:     m.InStock,
		Visible:     true,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ToDomain converts the full model
func (m *ProductModel) ToDomain() *catalog.Product {
	p := m.BaseProductModel.ToDomain()
	p.Images = append([]string(nil), m.Images...)
	p.Featured = m.Featured
	p.Visible = m.Visible
	p.ImageVersion = m.ImageVersion
	p.Fields = catalog.AllOptionalFields
	return p
}

// ProductModelFromDomain builds a full model from a domain product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	return &ProductModel{
		BaseProductModel: BaseProductModel{
			BaseModel: BaseModel{
				ID:        p.ID,
				CreatedAt: p.CreatedAt,
				UpdatedAt: p.UpdatedAt,
			},
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Category:    p.Category,
			Image:       p.Image,
			InStock:     p.InStock,
		},
		Images:       StringList(p.Images),
		Featured:     p.Featured,
		Visible:      p.Visible,
		ImageVersion: p.ImageVersion,
	}
}

// PatchColumns converts a patch into a column map for an UPDATE
func PatchColumns(patch catalog.ProductPatch) map[string]any {
	cols := make(map[string]any)
	if patch.Name != nil {
		cols["name"] = *patch.Name
	}
	if patch.Description != nil {
		cols["description"] = *patch.Description
	}
	if patch.Price != nil {
		cols["price"] = *patch.Price
	}
	if patch.Category != nil {
		cols["category"] = *patch.Category
	}
	if patch.Image != nil {
		cols["image"] = *patch.Image
	}
	if patch.InStock != nil {
		cols["in_stock"] = *patch.InStock
	}
	if patch.Images != nil {
		cols["images"] = StringList(*patch.Images)
	}
	if patch.Featured != nil {
		cols["featured"] = *patch.Featured
	}
	if patch.Visible != nil {
		cols["visible"] = *patch.Visible
	}
	if patch.ImageVersion != nil {
		cols["image_version"] = *patch.ImageVersion
	}
	return cols
}
