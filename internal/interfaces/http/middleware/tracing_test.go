package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return tp, sr
}

func tracedRouter(tp trace.TracerProvider) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	router.Use(
		TracingWithConfig(TracingConfig{ServiceName: "storefront-test", Enabled: true, TracerProvider: tp}),
		SpanAttributes(),
	)
	return router
}

func attrValue(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingWithConfig_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, sr := setupTestTracer(t)

	router := gin.New()
	router.Use(TracingWithConfig(TracingConfig{ServiceName: "storefront-test"}), SpanAttributes())
	router.GET("/test", func(c *gin.Context) {
		assert.False(t, trace.SpanFromContext(c.Request.Context()).IsRecording())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestTracingWithConfig_ServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tp, sr := setupTestTracer(t)

	router := tracedRouter(tp)
	router.GET("/products/:id", func(c *gin.Context) {
		assert.True(t, trace.SpanContextFromContext(c.Request.Context()).IsValid())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/products/p1", nil)
	req.Header.Set(CartIDHeader, strings.Repeat("c", MaxTraceAttrLength+10))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	ended := sr.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Contains(t, span.Name(), "/products/:id")
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.NotEqual(t, codes.Error, span.Status().Code)

	id, ok := attrValue(span, "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-42", id.AsString())
	cart, ok := attrValue(span, "cart_id")
	require.True(t, ok)
	assert.Len(t, cart.AsString(), MaxTraceAttrLength)
}

func TestSpanAttributes_MarksErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		status  int
		wantErr bool
		wantMsg string
	}{
		{"ok", http.StatusOK, false, ""},
		{"not found", http.StatusNotFound, true, "Not Found"},
		{"rate limited", http.StatusTooManyRequests, true, "Too Many Requests"},
		{"conflict", http.StatusConflict, true, "Client Error"},
		{"server error", http.StatusBadGateway, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sr := setupTestTracer(t)
			router := tracedRouter(tp)
			router.GET("/x", func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

			ended := sr.Ended()
			require.Len(t, ended, 1)
			if !tt.wantErr {
				assert.NotEqual(t, codes.Error, ended[0].Status().Code)
				return
			}
			assert.Equal(t, codes.Error, ended[0].Status().Code)
			// otelgin sets its own description on 5xx after the chain returns
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, ended[0].Status().Description)
			}
		})
	}
}
