// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"tutorlink/config"
)

// IdempotencyCacheClient is the Redis client used for session-action replay
// detection.
var IdempotencyCacheClient *redis.Client

// InitIdempotencyCache initializes the Redis client for idempotency-key
// tracking.
func InitIdempotencyCache() {
	IdempotencyCacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisIdempotencyDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := IdempotencyCacheClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (Idempotency): %v", err)
	}
}

// GetIdempotencyCacheClient returns the idempotency cache client.
func GetIdempotencyCacheClient() *redis.Client {
	if IdempotencyCacheClient == nil {
		InitIdempotencyCache()
	}
	return IdempotencyCacheClient
}
