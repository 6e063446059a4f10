package cache

import (
	"context"
	"time"
)

// Cache is the short-TTL read cache in front of hot polling paths,
// primarily the pipeline status projection.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
