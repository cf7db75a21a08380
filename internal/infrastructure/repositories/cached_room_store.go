package repositories

import (
	"context"
	"fmt"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/cache"
)

// CachedRoomStore wraps a RoomStore with caching. Join requests hit the room
// record on every call, so reads are cached with a short TTL and writes
// invalidate.
type CachedRoomStore struct {
	baseStore ports.RoomStore
	cache     *cache.CacheWithFallback
	roomTTL   time.Duration
}

func NewCachedRoomStore(baseStore ports.RoomStore, roomTTL time.Duration) ports.RoomStore {
	return &CachedRoomStore{
		baseStore: baseStore,
		cache:     cache.NewCacheWithFallback(roomTTL),
		roomTTL:   roomTTL,
	}
}

func (s *CachedRoomStore) Create(ctx context.Context, room *domain.Room) error {
	if err := s.baseStore.Create(ctx, room); err != nil {
		return err
	}

	s.cache.Invalidate("rooms:list:")
	return nil
}

func (s *CachedRoomStore) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	cacheKey := fmt.Sprintf("room:%s", code)

	value, err := s.cache.GetOrSet(ctx, cacheKey, func(ctx context.Context) (interface{}, error) {
		return s.baseStore.Get(ctx, code)
	}, s.roomTTL)

	if err != nil {
		return nil, err
	}

	return value.(*domain.Room), nil
}

func (s *CachedRoomStore) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	if err := s.baseStore.SetActive(ctx, code, active); err != nil {
		return err
	}

	s.cache.Invalidate(fmt.Sprintf("room:%s", code))
	s.cache.Invalidate("rooms:list:")
	return nil
}

func (s *CachedRoomStore) ListActive(ctx context.Context) ([]*domain.Room, error) {
	cacheKey := "rooms:list:active"

	value, err := s.cache.GetOrSet(ctx, cacheKey, func(ctx context.Context) (interface{}, error) {
		return s.baseStore.ListActive(ctx)
	}, s.roomTTL)

	if err != nil {
		return nil, err
	}

	return value.([]*domain.Room), nil
}
