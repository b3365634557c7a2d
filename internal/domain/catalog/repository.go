package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProductFilter narrows a product listing
type ProductFilter struct {
	Category    string
	InStockOnly bool
	VisibleOnly bool
	Limit       int
}

// ProductRepository is the remote product table
type ProductRepository interface {
	// List returns products matching the filter, newest first
	List(ctx context.Context, filter ProductFilter) ([]Product, error)

	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// Insert stores a new product and returns the server-confirmed record
	Insert(ctx context.Context, product *Product) (*Product, error)

	// Update applies a patch and returns the server-confirmed record
	Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*Product, error)

	// Delete removes a product
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductSource is a read-only product feed used when the repository fails
type ProductSource interface {
	Name() string
	List(ctx context.Context) ([]Product, error)
}

// SnapshotStore is the local durable copy of the product set
type SnapshotStore interface {
	Save(ctx context.Context, products []Product) error
	Load(ctx context.Context) ([]Product, error)
}

// SyncChannel is the well-known key for cross-instance product notifications
const SyncChannel = "products:updated"

// SyncSignal tells sibling instances that the product set changed
type SyncSignal struct {
	Origin    string    `json:"origin"`
	Reason    string    `json:"reason"`
	ProductID uuid.UUID `json:"product_id,omitempty"`
	At        time.Time `json:"at"`
}

// Broadcaster carries SyncSignals between store instances
type Broadcaster interface {
	Notify(ctx context.Context, signal SyncSignal) error
	// Listen blocks, delivering received signals to fn until ctx is done
	Listen(ctx context.Context, fn func(SyncSignal)) error
	Close() error
}
