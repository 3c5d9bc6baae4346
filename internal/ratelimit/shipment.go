package ratelimit

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/quotaledger/internal/config"
)

const keyShipmentHolder = "quota:shipments:holder:"

// ShipmentLimiter throttles how fast one holder can record shipments.
type ShipmentLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewShipmentLimiter returns nil when redis or shipment limits are switched off.
func NewShipmentLimiter(client *redis.Client, cfg config.Config) (*ShipmentLimiter, error) {
	if client == nil || !cfg.Redis.ShipmentLimits {
		return nil, nil
	}
	if cfg.Redis.ShipmentRate <= 0 || cfg.Redis.ShipmentBurst <= 0 {
		return nil, errors.New("shipment rate limit must be positive")
	}
	return &ShipmentLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.Redis.ShipmentRate,
		burst:  cfg.Redis.ShipmentBurst,
	}, nil
}

func (l *ShipmentLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ShipmentLimiter) AllowHolder(ctx context.Context, holder string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyShipmentHolder+strings.TrimSpace(holder), l.rate, l.burst)
}
