package catalog

import (
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeProduct = "Product"

// Event type constants
const (
	EventTypeProductAdded        = "productAdded"
	EventTypeProductUpdated      = "productUpdated"
	EventTypeProductDeleted      = "productDeleted"
	EventTypeProductImageUpdated = "productImageUpdated"
	EventTypeProductStockUpdated = "productStockUpdated"
	EventTypeProductsRefreshed   = "productsRefreshed"
)

// AllEventTypes lists every event the product store publishes
var AllEventTypes = []string{
	EventTypeProductAdded,
	EventTypeProductUpdated,
	EventTypeProductDeleted,
	EventTypeProductImageUpdated,
	EventTypeProductStockUpdated,
	EventTypeProductsRefreshed,
}

// ProductAddedEvent is published after a product was created remotely
type ProductAddedEvent struct {
	shared.BaseDomainEvent
	Product Product `json:"product"`
}

// NewProductAddedEvent creates a new ProductAddedEvent
func NewProductAddedEvent(product Product) *ProductAddedEvent {
	return &ProductAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductAdded, AggregateTypeProduct, product.ID),
		Product:         product,
	}
}

// ProductUpdatedEvent is published after a patch was confirmed by the server
type ProductUpdatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	Changes   []string  `json:"changes"`
	Product   Product   `json:"product"`
}

// NewProductUpdatedEvent creates a new ProductUpdatedEvent
func NewProductUpdatedEvent(product Product, changes []string) *ProductUpdatedEvent {
	return &ProductUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductUpdated, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		Changes:         changes,
		Product:         product,
	}
}

// ProductDeletedEvent is published after a product was removed
type ProductDeletedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
}

// NewProductDeletedEvent creates a new ProductDeletedEvent
func NewProductDeletedEvent(id uuid.UUID) *ProductDeletedEvent {
	return &ProductDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductDeleted, AggregateTypeProduct, id),
		ProductID:       id,
	}
}

// ProductImageUpdatedEvent is published when a product's primary image changes
type ProductImageUpdatedEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID `json:"product_id"`
	ImageURL     string    `json:"image_url"`
	ImageVersion int64     `json:"image_version"`
	Category     string    `json:"category"`
}

// NewProductImageUpdatedEvent creates a new ProductImageUpdatedEvent
func NewProductImageUpdatedEvent(product Product) *ProductImageUpdatedEvent {
	return &ProductImageUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductImageUpdated, AggregateTypeProduct, product.ID),
		ProductID:       product.ID,
		ImageURL:        product.Image,
		ImageVersion:    product.ImageVersion,
		Category:        product.Category,
	}
}

// ProductStockUpdatedEvent is published when stock availability flips
type ProductStockUpdatedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
	InStock   bool      `json:"in_stock"`
}

// NewProductStockUpdatedEvent creates a new ProductStockUpdatedEvent
func NewProductStockUpdatedEvent(id uuid.UUID, inStock bool) *ProductStockUpdatedEvent {
	return &ProductStockUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductStockUpdated, AggregateTypeProduct, id),
		ProductID:       id,
		InStock:         inStock,
	}
}

// ProductsRefreshedEvent is published after the whole product set was reloaded
type ProductsRefreshedEvent struct {
	shared.BaseDomainEvent
	Count  int    `json:"count"`
	Source string `json:"source"`
}

// NewProductsRefreshedEvent creates a new ProductsRefreshedEvent
func NewProductsRefreshedEvent(count int, source string) *ProductsRefreshedEvent {
	return &ProductsRefreshedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductsRefreshed, AggregateTypeProduct, uuid.Nil),
		Count:           count,
		Source:          source,
	}
}
