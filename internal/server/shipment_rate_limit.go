package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quotaledger/internal/observability/logger"
	"go.uber.org/zap"
)

// ShipmentRateLimit throttles shipment recording per holder. It is a no-op without redis.
func (s *Server) ShipmentRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.shipmentLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		holder := callerID(c)
		result, err := s.shipmentLimiter.AllowHolder(ctx, holder)
		if err != nil {
			logger.FromContext(ctx).Warn("shipment rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			logger.FromContext(ctx).Warn("shipment rate limit exceeded", zap.String("holder", holder))
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter.Seconds())))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func retryAfterSeconds(seconds float64) int {
	if seconds <= 1 {
		return 1
	}
	return int(math.Ceil(seconds))
}
