package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	catalogapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// healthCheckTimeout bounds every dependency check
const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency (database, redis, ...)
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SystemHandler handles health and system information
type SystemHandler struct {
	BaseHandler
	name      string
	store     *catalogapp.ProductStore
	checks    []HealthCheck
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name string, store *catalogapp.ProductStore, checks ...HealthCheck) *SystemHandler {
	return &SystemHandler{
		name:      name,
		store:     store,
		checks:    checks,
		startTime: time.Now(),
	}
}

// HealthResponse reports the service state
type HealthResponse struct {
	Status     string            `json:"status" example:"ok"`
	InstanceID string            `json:"instance_id"`
	Products   int               `json:"products"`
	LoadError  string            `json:"load_error,omitempty"`
	Checks     map[string]string `json:"checks,omitempty"`
	Uptime     string            `json:"uptime" example:"1h30m45s"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  503 when a dependency check fails. A product load failure reports status degraded with 200, since the storefront keeps serving.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:     "ok",
		InstanceID: h.store.InstanceID(),
		Products:   len(h.store.Products()),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
	if err := h.store.Err(); err != nil {
		resp.Status = "degraded"
		resp.LoadError = err.Error()
	}

	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()
		for _, check := range h.checks {
			if err := check.Check(ctx); err != nil {
				resp.Checks[check.Name] = err.Error()
				resp.Status = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
	}
	c.JSON(status, resp)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo returns the service name, Go version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(SystemInfoResponse{
		Name:      h.name,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}
