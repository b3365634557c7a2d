package handler

import (
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// Handlers groups every API handler for route registration
type Handlers struct {
	Products *ProductHandler
	Images   *ImageHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	System   *SystemHandler
}

// RouteOptions holds per-group middleware
type RouteOptions struct {
	// Admin guards the /admin routes
	Admin []gin.HandlerFunc
	// Pay limits payment initiations
	Pay []gin.HandlerFunc
}

// DomainGroups returns the route groups of the versioned API
func (h Handlers) DomainGroups(opts RouteOptions) []*router.DomainGroup {
	products := router.NewDomainGroup("products", "/products").
		GET("", h.Products.List).
		GET("/:id", h.Products.Get).
		POST("/reload", h.Products.Reload)

	categories := router.NewDomainGroup("categories", "/categories").
		GET("", h.Products.Categories)

	admin := router.NewDomainGroup("admin", "/admin").Use(opts.Admin...)
	admin.Group("admin-products", "/products").
		POST("", h.Products.Create).
		PUT("/:id", h.Products.Update).
		DELETE("/:id", h.Products.Delete).
		PUT("/:id/image", h.Products.UpdateImage).
		POST("/:id/toggle-stock", h.Products.ToggleStock)
	admin.Group("admin-images", "/images").
		POST("", h.Products.UploadImage).
		GET("", h.Products.ListImages).
		DELETE("/*path", h.Products.DeleteImage)

	images := router.NewDomainGroup("images", "/images").
		GET("/resolve", h.Images.Resolve).
		GET("/stats", h.Images.Stats).
		POST("/cache/clear", h.Images.ClearCache).
		POST("/refresh", h.Images.RefreshAll).
		POST("/signals/network", h.Images.NetworkChanged).
		POST("/signals/visibility", h.Images.VisibilityChanged)

	cart := router.NewDomainGroup("cart", "/cart").
		GET("", h.Cart.Get).
		POST("/items", h.Cart.AddItem).
		PUT("/items/:productId", h.Cart.SetQuantity).
		DELETE("/items/:productId", h.Cart.RemoveItem).
		DELETE("", h.Cart.Clear)

	pay := append(append([]gin.HandlerFunc{}, opts.Pay...), h.Checkout.Pay)
	checkout := router.NewDomainGroup("checkout", "/checkout").
		POST("", h.Checkout.Open).
		GET("/:id", h.Checkout.Get).
		POST("/:id/details", h.Checkout.SubmitDetails).
		POST("/:id/back", h.Checkout.Back).
		POST("/:id/pay", pay...).
		DELETE("/:id", h.Checkout.Cancel)

	system := router.NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	return []*router.DomainGroup{products, categories, admin, images, cart, checkout, system}
}
