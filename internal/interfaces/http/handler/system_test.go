package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h *SystemHandler) (int, HealthResponse) {
	t.Helper()
	router := setupTestRouter()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestSystemHandler_Health(t *testing.T) {
	ok := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}

	t.Run("ok", func(t *testing.T) {
		store := setupProductStore(t, new(MockProductRepository), testProduct("Arduino Uno R3", "Microcontrollers", 250))
		code, resp := getHealth(t, NewSystemHandler("storefront", store, ok))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "test-instance", resp.InstanceID)
		assert.Equal(t, 1, resp.Products)
		assert.Equal(t, map[string]string{"database": "ok"}, resp.Checks)
	})

	t.Run("load failure is degraded", func(t *testing.T) {
		repo := new(MockProductRepository)
		repo.On("List", mock.Anything, catalog.ProductFilter{}).Return(nil, errors.New("timeout"))
		store := setupProductStore(t, repo)
		require.Error(t, store.LoadProducts(context.Background(), false))

		code, resp := getHealth(t, NewSystemHandler("storefront", store))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Contains(t, resp.LoadError, "timeout")
		assert.Nil(t, resp.Checks)
	})

	t.Run("failing dependency is unhealthy", func(t *testing.T) {
		store := setupProductStore(t, new(MockProductRepository))
		redis := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}
		code, resp := getHealth(t, NewSystemHandler("storefront", store, ok, redis))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "ok", resp.Checks["database"])
		assert.Equal(t, "connection refused", resp.Checks["redis"])
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("storefront", setupProductStore(t, new(MockProductRepository)))
	router := setupTestRouter()
	router.GET("/system/info", h.GetSystemInfo)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/system/info", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp, data := decode(t, w)
	assert.True(t, resp.Success)

	var info SystemInfoResponse
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, "storefront", info.Name)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.NotEmpty(t, info.Uptime)
}
