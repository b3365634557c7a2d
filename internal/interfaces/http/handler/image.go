package handler

import (
	imagingapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ImageHandler exposes image resolution and the refresh signals sent by
// storefront clients
type ImageHandler struct {
	BaseHandler
	cache       *imagingapp.ProxyCache
	coordinator *imagingapp.RefreshCoordinator
}

// NewImageHandler creates a new ImageHandler
func NewImageHandler(cache *imagingapp.ProxyCache, coordinator *imagingapp.RefreshCoordinator) *ImageHandler {
	return &ImageHandler{
		cache:       cache,
		coordinator: coordinator,
	}
}

// ResolveQuery is the query string of GET /images/resolve
type ResolveQuery struct {
	URL       string `form:"url"`
	Force     bool   `form:"force"`
	Quality   string `form:"quality" binding:"omitempty,oneof=auto high medium low"`
	Category  string `form:"category"`
	ProductID string `form:"product_id" binding:"omitempty,uuid"`
	Version   int64  `form:"version" binding:"gte=0"`
}

// Resolve godoc
// @Summary      Resolve a working image URL
// @Description  Tries the configured strategies in order and always answers with a usable URL. An empty url yields the placeholder chain.
// @Tags         images
// @Produce      json
// @Param        url        query string false "Original image URL"
// @Param        force      query bool   false "Bypass the cache"
// @Param        quality    query string false "auto, high, medium or low"
// @Param        category   query string false "Fallback category: product, electronics, components or default"
// @Param        product_id query string false "Track the image for refreshes of this product"
// @Success      200 {object} dto.Response{data=imaging.ResolvedImage}
// @Router       /images/resolve [get]
func (h *ImageHandler) Resolve(c *gin.Context) {
	var q ResolveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	req := imaging.NewRequest(q.URL)
	req.ForceRefresh = q.Force
	req.Quality = imaging.ParseQuality(q.Quality)
	req.FallbackCategory = imaging.ParseFallbackCategory(q.Category)
	req.Version = q.Version

	if q.ProductID == "" {
		resolved, err := h.cache.GetOrResolve(c.Request.Context(), req)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, resolved)
		return
	}

	productID, _ := uuid.Parse(q.ProductID)
	target := imagingapp.DisplayTarget{
		ProductID: productID,
		SourceURL: req.SourceURL,
		Category:  req.FallbackCategory,
		Quality:   req.Quality,
	}
	key := productID.String() + "|" + req.SourceURL + "|" + string(req.Quality)
	resolved, err := h.coordinator.Display(c.Request.Context(), key, target, q.Force)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resolved)
}

// ImageStatsResponse describes the proxy cache and the display registry
type ImageStatsResponse struct {
	imagingapp.CacheStats
	Tracked int  `json:"tracked"`
	Visible bool `json:"visible"`
}

// Stats returns cache and registry counters
func (h *ImageHandler) Stats(c *gin.Context) {
	h.Success(c, ImageStatsResponse{
		CacheStats: h.cache.Stats(),
		Tracked:    h.coordinator.Registry().Len(),
		Visible:    h.coordinator.Visible(),
	})
}

// ClearCache drops every cached resolution
func (h *ImageHandler) ClearCache(c *gin.Context) {
	h.cache.Clear()
	h.Success(c, h.cache.Stats())
}

// RefreshAll re-resolves every tracked image. A concurrent full refresh answers 409.
func (h *ImageHandler) RefreshAll(c *gin.Context) {
	if err := h.coordinator.RefreshAll(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"tracked": h.coordinator.Registry().Len()})
}

// NetworkChanged is sent by clients when connectivity changes
func (h *ImageHandler) NetworkChanged(c *gin.Context) {
	h.coordinator.NetworkChanged()
	h.Accepted(c, gin.H{"scheduled": true})
}

// VisibilityRequest reports whether the client app is in the foreground
type VisibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// VisibilityChanged is sent by clients when the app is shown or hidden
func (h *ImageHandler) VisibilityChanged(c *gin.Context) {
	var req VisibilityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.coordinator.VisibilityChanged(*req.Visible)
	h.Accepted(c, gin.H{"visible": *req.Visible})
}
