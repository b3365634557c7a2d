package handler

import (
	cartapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/cart"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CartHandler handles the shopping cart identified by the X-Cart-ID header
type CartHandler struct {
	BaseHandler
	carts *cartapp.Service
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *cartapp.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

// AddItemRequest adds a product to the cart
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"omitempty,gte=1,lte=999"`
}

// SetQuantityRequest replaces a line quantity; zero removes the line
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0,lte=999"`
}

func cartID(c *gin.Context) string {
	return c.GetHeader(middleware.CartIDHeader)
}

// Get godoc
// @Summary      Get the cart
// @Tags         cart
// @Produce      json
// @Param        X-Cart-ID header string true "Cart ID"
// @Success      200 {object} dto.Response{data=cartapp.Summary}
// @Router       /cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	summary, err := h.carts.Summary(cartID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// AddItem godoc
// @Summary      Add a product to the cart
// @Description  Uses the product's current price. Hidden and out-of-stock products are rejected.
// @Tags         cart
// @Accept       json
// @Produce      json
// @Param        X-Cart-ID header string true "Cart ID"
// @Param        request body AddItemRequest true "Item"
// @Success      200 {object} dto.Response{data=cartapp.Summary}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	summary, err := h.carts.AddItem(cartID(c), req.ProductID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// SetQuantity replaces the quantity of a line
func (h *CartHandler) SetQuantity(c *gin.Context) {
	productID, ok := h.parseID(c, "productId")
	if !ok {
		return
	}
	var req SetQuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	summary, err := h.carts.SetQuantity(cartID(c), productID, *req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// RemoveItem drops a line
func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, ok := h.parseID(c, "productId")
	if !ok {
		return
	}
	summary, err := h.carts.RemoveItem(cartID(c), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Clear empties the cart
func (h *CartHandler) Clear(c *gin.Context) {
	summary, err := h.carts.Clear(cartID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
