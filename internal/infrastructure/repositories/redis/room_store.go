package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisRoomStore persists room records so rooms survive a relay restart and
// multiple relay nodes can share them.
type RedisRoomStore struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomStore(client *redis.Client) ports.RoomStore {
	return &RedisRoomStore{
		client: client,
		prefix: "liveclass:room:",
	}
}

func (r *RedisRoomStore) roomKey(code domain.RoomCode) string {
	return r.prefix + string(code)
}

func (r *RedisRoomStore) activeRoomsKey() string {
	return r.prefix + "active"
}

func (r *RedisRoomStore) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	key := r.roomKey(room.Code)
	created, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("room code %s already exists", room.Code)
	}

	if room.Active {
		if err := r.client.SAdd(ctx, r.activeRoomsKey(), string(room.Code)).Err(); err != nil {
			return fmt.Errorf("failed to add room to active set: %w", err)
		}
	}
	return nil
}

func (r *RedisRoomStore) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	data, err := r.client.Get(ctx, r.roomKey(code)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomStore) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	room, err := r.Get(ctx, code)
	if err != nil {
		return err
	}
	room.Active = active

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	if err := r.client.Set(ctx, r.roomKey(code), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}

	if active {
		err = r.client.SAdd(ctx, r.activeRoomsKey(), string(code)).Err()
	} else {
		err = r.client.SRem(ctx, r.activeRoomsKey(), string(code)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update active set: %w", err)
	}
	return nil
}

func (r *RedisRoomStore) ListActive(ctx context.Context) ([]*domain.Room, error) {
	codes, err := r.client.SMembers(ctx, r.activeRoomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(codes))
	for _, code := range codes {
		room, err := r.Get(ctx, domain.RoomCode(code))
		if err == domain.ErrRoomNotFound {
			// stale set member
			r.client.SRem(ctx, r.activeRoomsKey(), code)
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
