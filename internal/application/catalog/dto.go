package catalog

import (
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to create a new product.
// Price accepts display strings such as "K 1,250.00".
type CreateProductRequest struct {
	Name        string   `json:"name" binding:"required,min=1,max=200"`
	Description string   `json:"description" binding:"max=2000"`
	Price       string   `json:"price" binding:"required"`
	Category    string   `json:"category" binding:"max=100"`
	Image       string   `json:"image" binding:"omitempty,max=2048"`
	Images      []string `json:"images" binding:"omitempty,dive,max=2048"`
	InStock     *bool    `json:"in_stock"`
	Featured    bool     `json:"featured"`
	Visible     *bool    `json:"visible"`
}

// ToProduct validates the request and builds the product
func (r CreateProductRequest) ToProduct() (*catalog.Product, error) {
	price, err := catalog.ParsePrice(r.Price)
	if err != nil {
		return nil, err
	}
	p, err := catalog.NewProduct(r.Name, r.Category, price)
	if err != nil {
		return nil, err
	}
	p.Description = r.Description
	p.Image = r.Image
	p.Images = append([]string(nil), r.Images...)
	p.Featured = r.Featured
	if r.InStock != nil {
		p.InStock = *r.InStock
	}
	if r.Visible != nil {
		p.Visible = *r.Visible
	}
	return p, nil
}

// UpdateProductRequest represents a partial product update
type UpdateProductRequest struct {
	Name        *string   `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string   `json:"description" binding:"omitempty,max=2000"`
	Price       *string   `json:"price"`
	Category    *string   `json:"category" binding:"omitempty,max=100"`
	Image       *string   `json:"image" binding:"omitempty,max=2048"`
	Images      *[]string `json:"images"`
	InStock     *bool     `json:"in_stock"`
	Featured    *bool     `json:"featured"`
	Visible     *bool     `json:"visible"`
}

// ToPatch converts the request into a ProductPatch
func (r UpdateProductRequest) ToPatch() (catalog.ProductPatch, error) {
	patch := catalog.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Image:       r.Image,
		Images:      r.Images,
		InStock:     r.InStock,
		Featured:    r.Featured,
		Visible:     r.Visible,
	}
	if r.Price != nil {
		price, err := catalog.ParsePrice(*r.Price)
		if err != nil {
			return catalog.ProductPatch{}, err
		}
		patch.Price = &price
	}
	return patch, nil
}

// UpdateImageRequest reassigns the main image of a product
type UpdateImageRequest struct {
	Image string `json:"image" binding:"required,max=2048"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DisplayPrice string          `json:"display_price"`
	Category     string          `json:"category"`
	Image        string          `json:"image"`
	Images       []string        `json:"images"`
	InStock      bool            `json:"in_stock"`
	Featured     bool            `json:"featured"`
	Visible      bool            `json:"visible"`
	ImageVersion int64           `json:"image_version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToProductResponse converts a domain Product to ProductResponse
func ToProductResponse(p catalog.Product) ProductResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		DisplayPrice: catalog.FormatPrice(p.Price),
		Category:     p.Category,
		Image:        p.Image,
		Images:       images,
		InStock:      p.InStock,
		Featured:     p.Featured,
		Visible:      p.Visible,
		ImageVersion: p.ImageVersion,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// ToProductResponses converts a slice of products
func ToProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = ToProductResponse(p)
	}
	return out
}
