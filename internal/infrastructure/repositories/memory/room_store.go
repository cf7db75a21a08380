package memory

import (
	"context"
	"fmt"
	"sync"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
)

type RoomStore struct {
	rooms map[domain.RoomCode]*domain.Room
	mu    sync.RWMutex
}

func NewRoomStore() ports.RoomStore {
	return &RoomStore{
		rooms: make(map[domain.RoomCode]*domain.Room),
	}
}

func (s *RoomStore) Create(ctx context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[room.Code]; exists {
		return fmt.Errorf("room code %s already exists", room.Code)
	}
	copied := *room
	s.rooms[room.Code] = &copied
	return nil
}

func (s *RoomStore) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, exists := s.rooms[code]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (s *RoomStore) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[code]
	if !exists {
		return domain.ErrRoomNotFound
	}
	room.Active = active
	return nil
}

func (s *RoomStore) ListActive(ctx context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*domain.Room
	for _, room := range s.rooms {
		if room.Active {
			copied := *room
			active = append(active, &copied)
		}
	}
	return active, nil
}
