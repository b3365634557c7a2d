package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/logger"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the client generated key of a retryable request
const IdempotencyKeyHeader = "Idempotency-Key"

// ClaimStore remembers request keys for a while
type ClaimStore interface {
	// Claim returns false when key is already held
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Idempotency rejects a second request carrying the same Idempotency-Key
// on the same path with 409. Requests without the header pass through.
// A key is released again when the request fails, so the client can retry
// after a rejected payment.
func Idempotency(store ClaimStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		key = c.Request.URL.Path + ":" + key

		ok, err := store.Claim(c.Request.Context(), key, ttl)
		if err != nil {
			// the store being down must not block payments
			logger.GetGinLogger(c).Warn("Idempotency claim failed", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponse(
				dto.ErrCodeDuplicateRequest,
				"This request was already submitted",
			))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := store.Release(context.WithoutCancel(c.Request.Context()), key); err != nil {
				logger.GetGinLogger(c).Warn("Idempotency release failed", zap.Error(err))
			}
		}
	}
}
