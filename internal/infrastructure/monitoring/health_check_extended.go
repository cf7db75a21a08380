package monitoring

import (
	"context"
	"time"

	"liveclass/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// AddRoomStoreCheck adds a room store health check
func (h *HealthChecker) AddRoomStoreCheck(store ports.RoomStore, timeout time.Duration) {
	h.AddCheck("room_store", func(ctx context.Context) (bool, error) {
		// Listing active rooms exercises the full read path
		if _, err := store.ListActive(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}
