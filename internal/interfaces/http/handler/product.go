package handler

import (
	"io"
	"net/http"
	"strconv"

	catalogapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// uploadFormField is the multipart field carrying an image upload
const uploadFormField = "file"

// ProductHandler serves the catalog from the product store and manages
// product images for the admin surface
type ProductHandler struct {
	BaseHandler
	store  *catalogapp.ProductStore
	images *catalogapp.ImageLibrary
}

// NewProductHandler creates a new ProductHandler. images may be nil when
// object storage is disabled; the image routes then answer 404.
func NewProductHandler(store *catalogapp.ProductStore, images *catalogapp.ImageLibrary) *ProductHandler {
	return &ProductHandler{
		store:  store,
		images: images,
	}
}

// List godoc
// @Summary      List products
// @Description  Lists cached products. meta.load_error is set when no source could be loaded.
// @Tags         products
// @Produce      json
// @Param        category        query string false "Category"
// @Param        in_stock        query bool   false "Only products in stock"
// @Param        include_hidden  query bool   false "Include hidden products"
// @Param        limit           query int    false "Maximum number of products"
// @Success      200 {object} dto.Response{data=[]catalogapp.ProductResponse}
// @Router       /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	filter := catalog.ProductFilter{
		Category:    c.Query("category"),
		InStockOnly: queryBool(c, "in_stock"),
		VisibleOnly: !queryBool(c, "include_hidden"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	products := h.store.Query(filter)
	loadError := ""
	if err := h.store.Err(); err != nil {
		loadError = err.Error()
	}
	c.JSON(http.StatusOK, dto.NewListResponse(catalogapp.ToProductResponses(products), len(products), loadError))
}

// Get godoc
// @Summary      Get product by ID
// @Tags         products
// @Produce      json
// @Param        id path string true "Product ID"
// @Success      200 {object} dto.Response{data=catalogapp.ProductResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.store.GetByID(id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, catalogapp.ToProductResponse(product))
}

// Categories returns the distinct product categories, sorted
func (h *ProductHandler) Categories(c *gin.Context) {
	h.Success(c, h.store.Categories())
}

// ReloadResponse reports the product count after a forced reload
type ReloadResponse struct {
	Count int `json:"count"`
}

// Reload forces a product load from the repository or the legacy source
func (h *ProductHandler) Reload(c *gin.Context) {
	if err := h.store.LoadProducts(c.Request.Context(), true); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ReloadResponse{Count: len(h.store.Products())})
}

// Create godoc
// @Summary      Create a product
// @Description  Writes the product to the product table first; the cache only changes when the write succeeds.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request body catalogapp.CreateProductRequest true "Product"
// @Success      201 {object} dto.Response{data=catalogapp.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      502 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	var req catalogapp.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	product, err := req.ToProduct()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	created, err := h.store.Add(c.Request.Context(), *product)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, catalogapp.ToProductResponse(created))
}

// Update applies a partial update
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req catalogapp.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	patch, err := req.ToPatch()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	updated, err := h.store.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, catalogapp.ToProductResponse(updated))
}

// Delete removes a product
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// UpdateImage godoc
// @Summary      Replace a product's main image
// @Description  Bumps the image version so displayed copies refresh, then reloads the catalog shortly after.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path string true "Product ID"
// @Param        request body catalogapp.UpdateImageRequest true "Image URL"
// @Success      200 {object} dto.Response{data=catalogapp.ProductResponse}
// @Router       /admin/products/{id}/image [put]
func (h *ProductHandler) UpdateImage(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req catalogapp.UpdateImageRequest
	if !h.BindJSON(c, &req) {
		return
	}
	updated, err := h.store.UpdateImage(c.Request.Context(), id, req.Image)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, catalogapp.ToProductResponse(updated))
}

// ToggleStock flips the in-stock flag
func (h *ProductHandler) ToggleStock(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	updated, err := h.store.ToggleStock(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, catalogapp.ToProductResponse(updated))
}

// UploadImage godoc
// @Summary      Upload a product image
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        file   formData file   true  "Image (JPEG, PNG, GIF or WebP)"
// @Param        folder formData string false "Folder, default products"
// @Success      201 {object} dto.Response{data=catalogapp.UploadResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      413 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /admin/images [post]
func (h *ProductHandler) UploadImage(c *gin.Context) {
	if !h.imagesEnabled(c) {
		return
	}
	fh, err := c.FormFile(uploadFormField)
	if err != nil {
		h.BadRequest(c, "An image file is required in the \""+uploadFormField+"\" field")
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.BadRequest(c, "Uploaded file could not be read")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.BadRequest(c, "Uploaded file could not be read")
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	result, err := h.images.Upload(c.Request.Context(), catalogapp.UploadImageInput{
		Filename:    fh.Filename,
		ContentType: contentType,
		Folder:      c.PostForm("folder"),
		Data:        data,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ListImages lists stored images under ?folder=
func (h *ProductHandler) ListImages(c *gin.Context) {
	if !h.imagesEnabled(c) {
		return
	}
	entries, err := h.images.List(c.Request.Context(), c.Query("folder"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(entries, len(entries), ""))
}

// DeleteImage removes a stored image; the path is the object key
func (h *ProductHandler) DeleteImage(c *gin.Context) {
	if !h.imagesEnabled(c) {
		return
	}
	if err := h.images.Delete(c.Request.Context(), c.Param("path")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

func (h *ProductHandler) imagesEnabled(c *gin.Context) bool {
	if h.images == nil {
		h.NotFound(c, "Image storage is not configured")
		return false
	}
	return true
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}
