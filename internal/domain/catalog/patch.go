package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductPatch is a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Image        *string          `json:"image,omitempty"`
	Images       *[]string        `json:"images,omitempty"`
	InStock      *bool            `json:"in_stock,omitempty"`
	Featured     *bool            `json:"featured,omitempty"`
	Visible      *bool            `json:"visible,omitempty"`
	ImageVersion *int64           `json:"image_version,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p ProductPatch) IsEmpty() bool {
	return len(p.Changes()) == 0
}

// Changes lists the column names touched by the patch
func (p ProductPatch) Changes() []string {
	changes := make([]string, 0, 10)
	if p.Name != nil {
		changes = append(changes, "name")
	}
	if p.Description != nil {
		changes = append(changes, "description")
	}
	if p.Price != nil {
		changes = append(changes, "price")
	}
	if p.Category != nil {
		changes = append(changes, "category")
	}
	if p.Image != nil {
		changes = append(changes, "image")
	}
	if p.Images != nil {
		changes = append(changes, "images")
	}
	if p.InStock != nil {
		changes = append(changes, "in_stock")
	}
	if p.Featured != nil {
		changes = append(changes, "featured")
	}
	if p.Visible != nil {
		changes = append(changes, "visible")
	}
	if p.ImageVersion != nil {
		changes = append(changes, "image_version")
	}
	return changes
}

// Validate checks the values carried by the patch
func (p ProductPatch) Validate() error {
	if p.Name != nil {
		if err := validateProductName(*p.Name); err != nil {
			return err
		}
	}
	if p.Price != nil {
		if err := validatePrice(*p.Price); err != nil {
			return err
		}
	}
	return nil
}

// Apply writes the patch onto product and bumps UpdatedAt
func (p ProductPatch) Apply(product *Product, now time.Time) {
	if p.Name != nil {
		product.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Category != nil {
		product.Category = strings.TrimSpace(*p.Category)
	}
	if p.Image != nil {
		product.Image = *p.Image
	}
	if p.Images != nil {
		product.Images = append([]string(nil), (*p.Images)...)
		product.Fields |= FieldImages
	}
	if p.InStock != nil {
		product.InStock = *p.InStock
	}
	if p.Featured != nil {
		product.Featured = *p.Featured
		product.Fields |= FieldFeatured
	}
	if p.Visible != nil {
		product.Visible = *p.Visible
		product.Fields |= FieldVisible
	}
	if p.ImageVersion != nil {
		product.ImageVersion = *p.ImageVersion
		product.Fields |= FieldImageVersion
	}
	product.UpdatedAt = now
}

// Without returns a copy of the patch with the given optional fields cleared.
// Used when the remote table does not have those columns.
func (p ProductPatch) Without(fields Field) ProductPatch {
	if fields&FieldImages != 0 {
		p.Images = nil
	}
	if fields&FieldFeatured != 0 {
		p.Featured = nil
	}
	if fields&FieldVisible != 0 {
		p.Visible = nil
	}
	if fields&FieldImageVersion != 0 {
		p.ImageVersion = nil
	}
	return p
}
