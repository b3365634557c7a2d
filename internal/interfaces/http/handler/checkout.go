package handler

import (
	"errors"

	cartapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/cart"
	checkoutapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/checkout"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/logger"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CheckoutHandler drives checkout sessions: details, payment and polling.
// Clients poll GET /checkout/:id while the session is verifying.
type CheckoutHandler struct {
	BaseHandler
	sessions *checkoutapp.Manager
	carts    *cartapp.Service
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(sessions *checkoutapp.Manager, carts *cartapp.Service) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		carts:    carts,
	}
}

// Open godoc
// @Summary      Open a checkout session for the cart
// @Tags         checkout
// @Produce      json
// @Param        X-Cart-ID header string true "Cart ID"
// @Success      201 {object} dto.Response{data=checkout.Snapshot}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /checkout [post]
func (h *CheckoutHandler) Open(c *gin.Context) {
	cart, err := h.carts.Cart(cartID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if cart.IsEmpty() {
		h.HandleError(c, checkout.ErrEmptyCart)
		return
	}
	session := h.sessions.Open(cart)
	h.Created(c, session.Snapshot())
}

// Get returns the session snapshot
func (h *CheckoutHandler) Get(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.Success(c, session.Snapshot())
}

// SubmitDetails godoc
// @Summary      Submit customer details
// @Description  Valid details move the session to the payment step. Invalid ones answer 422 with the message to show and the unchanged session.
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        id path string true "Session ID"
// @Param        request body checkout.CustomerDetails true "Customer details"
// @Success      200 {object} dto.Response{data=checkout.Snapshot}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /checkout/{id}/details [post]
func (h *CheckoutHandler) SubmitDetails(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var details checkout.CustomerDetails
	if !h.BindJSON(c, &details) {
		return
	}
	snap, err := session.SubmitDetails(details)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if snap.Error != "" {
		h.rejectWithSnapshot(c, dto.ErrCodeCheckoutDetails, snap)
		return
	}
	h.Success(c, snap)
}

// Back returns from the payment step to the details step
func (h *CheckoutHandler) Back(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Back(); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session.Snapshot())
}

// Pay godoc
// @Summary      Pay with mobile money
// @Description  Initiates the payment and starts verification polling. Answers 202 with the verifying session; poll GET /checkout/{id} for the outcome.
// @Tags         checkout
// @Produce      json
// @Param        id path string true "Session ID"
// @Success      202 {object} dto.Response{data=checkout.Snapshot}
// @Failure      402 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /checkout/{id}/pay [post]
func (h *CheckoutHandler) Pay(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Pay(c.Request.Context()); err != nil {
		snap := session.Snapshot()
		if errors.Is(err, checkout.ErrPaymentRejected) && snap.Error != "" {
			h.rejectWithSnapshot(c, dto.ErrCodePaymentRejected, snap)
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, session.Snapshot())
}

// Cancel closes the session and stops any verification polling
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *CheckoutHandler) session(c *gin.Context) (*checkoutapp.Session, bool) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return session, true
}

// rejectWithSnapshot answers with the session's error message and the
// session itself so the client can render the current step
func (h *CheckoutHandler) rejectWithSnapshot(c *gin.Context, code string, snap checkout.Snapshot) {
	resp := dto.NewErrorResponseWithRequestID(code, snap.Error, logger.GetGinRequestID(c))
	resp.Data = snap
	c.JSON(dto.GetHTTPStatus(code), resp)
}
