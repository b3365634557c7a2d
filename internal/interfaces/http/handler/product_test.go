package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	catalogapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/event"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/logger"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/storage"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProductRepository implements catalog.ProductRepository for testing
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Insert(ctx context.Context, product *catalog.Product) (*catalog.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, id uuid.UUID, patch catalog.ProductPatch) (*catalog.Product, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupTestRouter() *gin.Engine {
	router := gin.New()
	router.Use(logger.RequestID())
	return router
}

func testProduct(name, category string, price int64) catalog.Product {
	return catalog.Product{
		ID:        uuid.New(),
		Name:      name,
		Category:  category,
		Price:     decimal.NewFromInt(price),
		InStock:   true,
		Visible:   true,
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Fields:    catalog.AllOptionalFields,
	}
}

// setupProductStore returns a store loaded with products through the mock repository
func setupProductStore(t *testing.T, repo *MockProductRepository, products ...catalog.Product) *catalogapp.ProductStore {
	t.Helper()
	store := catalogapp.NewProductStore(repo, event.NewInMemoryEventBus(zap.NewNop()), catalogapp.ProductStoreConfig{
		InstanceID:  "test-instance",
		ReloadDelay: time.Hour,
	})
	t.Cleanup(store.Close)

	if len(products) > 0 {
		repo.On("List", mock.Anything, catalog.ProductFilter{}).Return(products, nil).Once()
		require.NoError(t, store.LoadProducts(context.Background(), false))
	}
	return store
}

func setupProductHandler(t *testing.T, repo *MockProductRepository, products ...catalog.Product) (*ProductHandler, *storage.MemoryObjectStorage) {
	t.Helper()
	objects := storage.NewMemoryObjectStorage("https://cdn.test/media")
	images := catalogapp.NewImageLibrary(objects, 1<<20, zap.NewNop())
	return NewProductHandler(setupProductStore(t, repo, products...), images), objects
}

func decodeProduct(t *testing.T, raw json.RawMessage) catalogapp.ProductResponse {
	t.Helper()
	var p catalogapp.ProductResponse
	require.NoError(t, json.Unmarshal(raw, &p))
	return p
}

func jsonRequest(method, path string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestProductHandler_List_Success(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	dht := testProduct("DHT22 Sensor", "Sensors", 85)
	hidden := testProduct("Prototype Board", "Microcontrollers", 40)
	hidden.Visible = false
	dht.InStock = false

	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno, dht, hidden)

	router := setupTestRouter()
	router.GET("/products", handler.List)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"visible only by default", "", []string{"Arduino Uno R3", "DHT22 Sensor"}},
		{"include hidden", "?include_hidden=true", []string{"Arduino Uno R3", "DHT22 Sensor", "Prototype Board"}},
		{"by category", "?category=Sensors", []string{"DHT22 Sensor"}},
		{"in stock only", "?in_stock=true", []string{"Arduino Uno R3"}},
		{"limit", "?limit=1", []string{"Arduino Uno R3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products"+tt.query, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			resp, data := decode(t, w)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, len(tt.want), resp.Meta.Total)
			assert.Empty(t, resp.Meta.LoadError)

			var products []catalogapp.ProductResponse
			require.NoError(t, json.Unmarshal(data, &products))
			names := make([]string, len(products))
			for i, p := range products {
				names[i] = p.Name
			}
			assert.Equal(t, tt.want, names)
		})
	}
	repo.AssertExpectations(t)
}

func TestProductHandler_List_LoadError(t *testing.T) {
	repo := new(MockProductRepository)
	repo.On("List", mock.Anything, catalog.ProductFilter{}).Return(nil, errors.New("connection refused"))
	handler, _ := setupProductHandler(t, repo)
	require.Error(t, handler.store.LoadProducts(context.Background(), false))

	router := setupTestRouter()
	router.GET("/products", handler.List)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp, data := decode(t, w)
	assert.JSONEq(t, `[]`, string(data))
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 0, resp.Meta.Total)
	assert.Contains(t, resp.Meta.LoadError, "connection refused")
}

func TestProductHandler_List_InvalidLimit(t *testing.T) {
	handler, _ := setupProductHandler(t, new(MockProductRepository))
	router := setupTestRouter()
	router.GET("/products", handler.List)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products?limit=-3", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProductHandler_Get(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno)

	router := setupTestRouter()
	router.GET("/products/:id", handler.Get)

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/"+uno.ID.String(), nil))

		assert.Equal(t, http.StatusOK, w.Code)
		_, data := decode(t, w)
		p := decodeProduct(t, data)
		assert.Equal(t, uno.ID, p.ID)
		assert.Equal(t, "K 250.00", p.DisplayPrice)
		assert.Equal(t, []string{}, p.Images)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/"+uuid.NewString(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp, _ := decode(t, w)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProductHandler_Categories(t *testing.T) {
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo,
		testProduct("DHT22 Sensor", "Sensors", 85),
		testProduct("Arduino Uno R3", "Microcontrollers", 250),
		testProduct("HC-SR04", "Sensors", 45),
	)
	router := setupTestRouter()
	router.GET("/categories", handler.Categories)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.JSONEq(t, `["Microcontrollers","Sensors"]`, string(data))
}

func TestProductHandler_Reload(t *testing.T) {
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, testProduct("Arduino Uno R3", "Microcontrollers", 250))
	repo.On("List", mock.Anything, catalog.ProductFilter{}).Return([]catalog.Product{
		testProduct("Arduino Uno R3", "Microcontrollers", 250),
		testProduct("ESP32 DevKit", "Microcontrollers", 180),
	}, nil).Once()

	router := setupTestRouter()
	router.POST("/products/reload", handler.Reload)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/products/reload", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.JSONEq(t, `{"count":2}`, string(data))
	repo.AssertExpectations(t)
}

func TestProductHandler_Create_Success(t *testing.T) {
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo)

	server := testProduct("Raspberry Pi 4", "Single Board Computers", 1250)
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(p *catalog.Product) bool {
		return p.Name == "Raspberry Pi 4" && p.Price.Equal(decimal.NewFromInt(1250))
	})).Return(&server, nil)

	router := setupTestRouter()
	router.POST("/admin/products", handler.Create)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPost, "/admin/products", catalogapp.CreateProductRequest{
		Name:     "Raspberry Pi 4",
		Price:    "K 1,250.00",
		Category: "Single Board Computers",
	}))

	assert.Equal(t, http.StatusCreated, w.Code)
	_, data := decode(t, w)
	p := decodeProduct(t, data)
	assert.Equal(t, server.ID, p.ID)

	cached, err := handler.store.GetByID(server.ID)
	require.NoError(t, err)
	assert.Equal(t, "Raspberry Pi 4", cached.Name)
	repo.AssertExpectations(t)
}

func TestProductHandler_Create_InvalidInput(t *testing.T) {
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo)

	router := setupTestRouter()
	router.POST("/admin/products", handler.Create)

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/products", bytes.NewBufferString("invalid json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/admin/products", map[string]any{"price": "100"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})

	t.Run("unparseable price", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/admin/products", map[string]any{"name": "LED", "price": "cheap"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidationFormat, resp.Error.Code)
	})

	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestProductHandler_Update_WriteFailureKeepsCache(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno)
	repo.On("Update", mock.Anything, uno.ID, mock.AnythingOfType("catalog.ProductPatch")).
		Return(nil, errors.New("connection reset"))

	router := setupTestRouter()
	router.PUT("/admin/products/:id", handler.Update)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPut, "/admin/products/"+uno.ID.String(), map[string]any{"name": "Arduino Mega"}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp, _ := decode(t, w)
	assert.Equal(t, dto.ErrCodeWriteFailed, resp.Error.Code)

	cached, err := handler.store.GetByID(uno.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arduino Uno R3", cached.Name)
}

func TestProductHandler_Update_Success(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno)

	server := uno
	server.Price = decimal.NewFromInt(275)
	repo.On("Update", mock.Anything, uno.ID, mock.MatchedBy(func(p catalog.ProductPatch) bool {
		return p.Price != nil && p.Price.Equal(decimal.NewFromInt(275))
	})).Return(&server, nil)

	router := setupTestRouter()
	router.PUT("/admin/products/:id", handler.Update)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPut, "/admin/products/"+uno.ID.String(), map[string]any{"price": "275"}))

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.Equal(t, "K 275.00", decodeProduct(t, data).DisplayPrice)
	repo.AssertExpectations(t)
}

func TestProductHandler_Update_NotFound(t *testing.T) {
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo)
	id := uuid.New()
	repo.On("Update", mock.Anything, id, mock.AnythingOfType("catalog.ProductPatch")).Return(nil, shared.ErrNotFound)

	router := setupTestRouter()
	router.PUT("/admin/products/:id", handler.Update)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPut, "/admin/products/"+id.String(), map[string]any{"featured": true}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductHandler_Delete_Success(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno)
	repo.On("Delete", mock.Anything, uno.ID).Return(nil)

	router := setupTestRouter()
	router.DELETE("/admin/products/:id", handler.Delete)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/products/"+uno.ID.String(), nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err := handler.store.GetByID(uno.ID)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	repo.AssertExpectations(t)
}

func TestProductHandler_ToggleStock(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno)

	server := uno
	server.InStock = false
	repo.On("Update", mock.Anything, uno.ID, mock.MatchedBy(func(p catalog.ProductPatch) bool {
		return p.InStock != nil && !*p.InStock
	})).Return(&server, nil)

	router := setupTestRouter()
	router.POST("/admin/products/:id/toggle-stock", handler.ToggleStock)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/products/"+uno.ID.String()+"/toggle-stock", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	_, data := decode(t, w)
	assert.False(t, decodeProduct(t, data).InStock)
	repo.AssertExpectations(t)
}

func TestProductHandler_UpdateImage(t *testing.T) {
	uno := testProduct("Arduino Uno R3", "Microcontrollers", 250)
	repo := new(MockProductRepository)
	handler, _ := setupProductHandler(t, repo, uno)

	const newImage = "https://cdn.test/media/products/2024/03/uno.jpg"
	server := uno
	server.Image = newImage
	repo.On("Update", mock.Anything, uno.ID, mock.MatchedBy(func(p catalog.ProductPatch) bool {
		return p.Image != nil && *p.Image == newImage && p.ImageVersion != nil
	})).Return(&server, nil)

	router := setupTestRouter()
	router.PUT("/admin/products/:id/image", handler.UpdateImage)

	t.Run("replaces the image", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPut, "/admin/products/"+uno.ID.String()+"/image", catalogapp.UpdateImageRequest{Image: newImage}))

		assert.Equal(t, http.StatusOK, w.Code)
		_, data := decode(t, w)
		p := decodeProduct(t, data)
		assert.Equal(t, newImage, p.Image)
		assert.Positive(t, p.ImageVersion)
	})

	t.Run("image is required", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPut, "/admin/products/"+uno.ID.String()+"/image", map[string]any{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// pngHeader is enough for http.DetectContentType to report image/png
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func multipartUpload(t *testing.T, filename string, data []byte, folder string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(uploadFormField, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestProductHandler_Images(t *testing.T) {
	handler, objects := setupProductHandler(t, new(MockProductRepository))

	router := setupTestRouter()
	router.POST("/admin/images", handler.UploadImage)
	router.GET("/admin/images", handler.ListImages)
	router.DELETE("/admin/images/*path", handler.DeleteImage)

	var uploaded catalogapp.UploadResult

	t.Run("upload detects the content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartUpload(t, "Arduino Uno.png", pngHeader, ""))

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		_, data := decode(t, w)
		require.NoError(t, json.Unmarshal(data, &uploaded))
		assert.True(t, strings.HasPrefix(uploaded.Path, "products/"))
		assert.True(t, strings.HasSuffix(uploaded.Path, "-arduino-uno.png"))
		assert.Equal(t, "image/png", uploaded.ContentType)
		assert.Equal(t, objects.PublicURL(uploaded.Path), uploaded.PublicURL)
	})

	t.Run("rejects non-images", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartUpload(t, "notes.txt", []byte("plain text"), ""))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decode(t, w)
		assert.Equal(t, dto.ErrCodeValidationFormat, resp.Error.Code)
	})

	t.Run("rejects folders outside the bucket root", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, multipartUpload(t, "a.png", pngHeader, "../secrets"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/admin/images", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/images?folder=products", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp, _ := decode(t, w)
		assert.Equal(t, 1, resp.Meta.Total)
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/images/"+uploaded.Path, nil))

		assert.Equal(t, http.StatusNoContent, w.Code)
		entries, err := objects.List(context.Background(), "products/")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestProductHandler_ImagesDisabled(t *testing.T) {
	handler := NewProductHandler(setupProductStore(t, new(MockProductRepository)), nil)
	router := setupTestRouter()
	router.GET("/admin/images", handler.ListImages)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/images", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
