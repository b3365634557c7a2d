package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	cartapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/cart"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCartService(t *testing.T, products ...catalog.Product) *cartapp.Service {
	t.Helper()
	store := setupProductStore(t, new(MockProductRepository), products...)
	return cartapp.NewService(store, zap.NewNop())
}

func cartRouter(h *CartHandler) *gin.Engine {
	router := setupTestRouter()
	router.GET("/cart", h.Get)
	router.POST("/cart/items", h.AddItem)
	router.PUT("/cart/items/:productId", h.SetQuantity)
	router.DELETE("/cart/items/:productId", h.RemoveItem)
	router.DELETE("/cart", h.Clear)
	return router
}

func cartRequest(method, path, cartID string, body any) *http.Request {
	var req *http.Request
	if body != nil {
		req = jsonRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cartID != "" {
		req.Header.Set(middleware.CartIDHeader, cartID)
	}
	return req
}

func decodeSummary(t *testing.T, w *httptest.ResponseRecorder) cartapp.Summary {
	t.Helper()
	_, data := decode(t, w)
	var s cartapp.Summary
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestCartHandler_Flow(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	dht := testProduct("DHT22 Sensor", "Sensors", 85)
	router := cartRouter(NewCartHandler(setupCartService(t, uno, dht)))
	const cartID = "cart-1"

	t.Run("empty cart", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodGet, "/cart", cartID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		s := decodeSummary(t, w)
		assert.Equal(t, cartID, s.ID)
		assert.Equal(t, 0, s.Count)
		assert.Equal(t, "0.00", s.Total)
	})

	t.Run("add defaults to one unit", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodPost, "/cart/items", cartID, map[string]any{"product_id": uno.ID}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, decodeSummary(t, w).Count)
	})

	t.Run("add accumulates quantity", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodPost, "/cart/items", cartID, AddItemRequest{ProductID: dht.ID, Quantity: 2}))

		assert.Equal(t, http.StatusOK, w.Code)
		s := decodeSummary(t, w)
		assert.Equal(t, 3, s.Count)
		assert.Equal(t, "420.00", s.Total)
		assert.Equal(t, "K 420.00", s.DisplayTotal)
	})

	t.Run("set quantity", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodPut, "/cart/items/"+uno.ID.String(), cartID, map[string]any{"quantity": 4}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1170.00", decodeSummary(t, w).Total)
	})

	t.Run("quantity is required", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodPut, "/cart/items/"+uno.ID.String(), cartID, map[string]any{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("remove", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodDelete, "/cart/items/"+dht.ID.String(), cartID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 4, decodeSummary(t, w).Count)
	})

	t.Run("clear", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, cartRequest(http.MethodDelete, "/cart", cartID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 0, decodeSummary(t, w).Count)
	})
}

func TestCartHandler_Errors(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	soldOut := testProduct("ESP8266", "Microcontrollers", 90)
	soldOut.InStock = false
	router := cartRouter(NewCartHandler(setupCartService(t, uno, soldOut)))

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{
			name:   "missing cart id",
			req:    cartRequest(http.MethodGet, "/cart", "", nil),
			status: http.StatusBadRequest,
			code:   dto.ErrCodeBadRequest,
		},
		{
			name:   "unknown product",
			req:    cartRequest(http.MethodPost, "/cart/items", "c", map[string]any{"product_id": uuid.New()}),
			status: http.StatusNotFound,
			code:   dto.ErrCodeNotFound,
		},
		{
			name:   "out of stock product",
			req:    cartRequest(http.MethodPost, "/cart/items", "c", map[string]any{"product_id": soldOut.ID}),
			status: http.StatusUnprocessableEntity,
			code:   dto.ErrCodeProductUnavailable,
		},
		{
			name:   "quantity out of range",
			req:    cartRequest(http.MethodPost, "/cart/items", "c", map[string]any{"product_id": uno.ID, "quantity": 1000}),
			status: http.StatusBadRequest,
			code:   dto.ErrCodeValidation,
		},
		{
			name:   "malformed product id in path",
			req:    cartRequest(http.MethodDelete, "/cart/items/abc", "c", nil),
			status: http.StatusBadRequest,
			code:   dto.ErrCodeBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, tt.req)

			assert.Equal(t, tt.status, w.Code)
			resp, _ := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
