// Package cart holds the shopping cart consumed by checkout.
package cart

import (
	"sync"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned for non-positive quantities
var ErrInvalidQuantity = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be greater than zero")

// Item is one cart line
type Item struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// Subtotal returns unit price times quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is safe for concurrent use. Checkout snapshots Items when paying and
// calls Deduct with that snapshot on success.
type Cart struct {
	mu    sync.RWMutex
	items []Item
}

// New creates an empty cart
func New() *Cart {
	return &Cart{items: make([]Item, 0)}
}

// Add adds quantity of a product, merging with an existing line
func (c *Cart) Add(item Item) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == item.ProductID {
			c.items[i].Quantity += item.Quantity
			c.items[i].UnitPrice = item.UnitPrice
			return nil
		}
	}
	c.items = append(c.items, item)
	return nil
}

// SetQuantity replaces a line's quantity; zero removes the line
func (c *Cart) SetQuantity(productID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID != productID {
			continue
		}
		if quantity == 0 {
			c.items = append(c.items[:i], c.items[i+1:]...)
		} else {
			c.items[i].Quantity = quantity
		}
		return nil
	}
	return shared.ErrNotFound
}

// Remove drops a product line
func (c *Cart) Remove(productID uuid.UUID) error {
	return c.SetQuantity(productID, 0)
}

// Items returns a copy of the lines
func (c *Cart) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Item(nil), c.items...)
}

// Count returns the number of units in the cart
func (c *Cart) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Total returns the sum of all line subtotals
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Sum(c.items)
}

// Sum returns the sum of the subtotals of items
func Sum(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items) == 0
}

// Deduct removes the quantities in items from the matching lines. Lines that
// reach zero are dropped; units added after the snapshot stay in the cart.
func (c *Cart) Deduct(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	paid := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		paid[it.ProductID] += it.Quantity
	}
	kept := c.items[:0]
	for _, it := range c.items {
		it.Quantity -= paid[it.ProductID]
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = c.items[:0]
}
