// Package cart keeps the shopping carts of storefront clients.
package cart

import (
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/cart"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrProductUnavailable is returned when adding a product that is out of stock or hidden
	ErrProductUnavailable = shared.NewDomainError("PRODUCT_UNAVAILABLE", "Product is not available for purchase")
	// ErrCartIDRequired is returned when a request carries no cart id
	ErrCartIDRequired = shared.NewDomainError("CART_ID_REQUIRED", "Cart id is required")
)

// ProductLookup finds the current product data for a cart line
type ProductLookup interface {
	GetByID(id uuid.UUID) (catalog.Product, error)
}

// Summary is the cart as returned to clients
type Summary struct {
	ID    string      `json:"id"`
	Items []cart.Item `json:"items"`
	Count int         `json:"count"`
	Total string      `json:"total"`

	// DisplayTotal is Total formatted for the storefront, e.g. "K 1,250.00"
	DisplayTotal string `json:"display_total"`
}

type entry struct {
	cart     *cart.Cart
	lastSeen time.Time
}

// Service holds one cart per client cart id
type Service struct {
	products ProductLookup
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	carts map[string]*entry
}

// NewService creates a cart Service
func NewService(products ProductLookup, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		products: products,
		logger:   logger,
		now:      time.Now,
		carts:    make(map[string]*entry),
	}
}

// Cart returns the cart for id, creating it on first use
func (s *Service) Cart(id string) (*cart.Cart, error) {
	if id == "" {
		return nil, ErrCartIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.carts[id]
	if !ok {
		e = &entry{cart: cart.New()}
		s.carts[id] = e
	}
	e.lastSeen = s.now()
	return e.cart, nil
}

// AddItem adds quantity units of a product at its current price
func (s *Service) AddItem(cartID string, productID uuid.UUID, quantity int) (Summary, error) {
	c, err := s.Cart(cartID)
	if err != nil {
		return Summary{}, err
	}
	product, err := s.products.GetByID(productID)
	if err != nil {
		return Summary{}, err
	}
	if !product.InStock || !product.Visible {
		return Summary{}, ErrProductUnavailable
	}

	err = c.Add(cart.Item{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		Image:     product.Image,
	})
	if err != nil {
		return Summary{}, err
	}
	s.logger.Debug("cart item added",
		zap.String("cart_id", cartID),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity))
	return summarize(cartID, c), nil
}

// SetQuantity replaces the quantity of a line; zero removes it
func (s *Service) SetQuantity(cartID string, productID uuid.UUID, quantity int) (Summary, error) {
	c, err := s.Cart(cartID)
	if err != nil {
		return Summary{}, err
	}
	if err := c.SetQuantity(productID, quantity); err != nil {
		return Summary{}, err
	}
	return summarize(cartID, c), nil
}

// RemoveItem drops a product line
func (s *Service) RemoveItem(cartID string, productID uuid.UUID) (Summary, error) {
	return s.SetQuantity(cartID, productID, 0)
}

// Clear empties a cart
func (s *Service) Clear(cartID string) (Summary, error) {
	c, err := s.Cart(cartID)
	if err != nil {
		return Summary{}, err
	}
	c.Clear()
	return summarize(cartID, c), nil
}

// Summary returns the cart contents and total
func (s *Service) Summary(cartID string) (Summary, error) {
	c, err := s.Cart(cartID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(cartID, c), nil
}

// Prune drops carts that were not used since cutoff
func (s *Service) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.carts {
		if e.lastSeen.Before(cutoff) {
			delete(s.carts, id)
			n++
		}
	}
	return n
}

func summarize(id string, c *cart.Cart) Summary {
	total := c.Total()
	return Summary{
		ID:           id,
		Items:        c.Items(),
		Count:        c.Count(),
		Total:        total.StringFixed(2),
		DisplayTotal: catalog.FormatPrice(total),
	}
}
