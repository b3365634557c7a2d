package catalog

import "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"

var (
	// ErrWriteFailed wraps any failure of a remote product write
	ErrWriteFailed = shared.NewDomainError("WRITE_FAILED", "Product write was not accepted by the server")
	// ErrLoadFailed is reported when neither the repository nor the legacy source produced products
	ErrLoadFailed = shared.NewDomainError("LOAD_FAILED", "Products could not be loaded from any source")
	// ErrProductNotFound is returned for unknown product ids
	ErrProductNotFound = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found")
)
