package memory

import (
	"context"
	"testing"
	"time"

	"liveclass/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func testRoom(code domain.RoomCode) *domain.Room {
	return &domain.Room{
		ID:        "id-" + string(code),
		Code:      code,
		Title:     "Algebra II",
		Teacher:   "prof",
		Active:    true,
		CreatedAt: time.Now(),
	}
}

func TestRoomStore_CreateAndGet(t *testing.T) {
	store := NewRoomStore()
	ctx := context.Background()

	assert.NoError(t, store.Create(ctx, testRoom("ABC123")))

	room, err := store.Get(ctx, "ABC123")
	assert.NoError(t, err)
	assert.Equal(t, domain.Username("prof"), room.Teacher)
	assert.True(t, room.Active)
}

func TestRoomStore_CreateDuplicateCode(t *testing.T) {
	store := NewRoomStore()
	ctx := context.Background()

	assert.NoError(t, store.Create(ctx, testRoom("ABC123")))
	assert.Error(t, store.Create(ctx, testRoom("ABC123")))
}

func TestRoomStore_GetMissing(t *testing.T) {
	store := NewRoomStore()

	_, err := store.Get(context.Background(), "NOPE42")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomStore_SetActive(t *testing.T) {
	store := NewRoomStore()
	ctx := context.Background()

	assert.NoError(t, store.Create(ctx, testRoom("ABC123")))
	assert.NoError(t, store.SetActive(ctx, "ABC123", false))

	room, err := store.Get(ctx, "ABC123")
	assert.NoError(t, err)
	assert.False(t, room.Active)

	assert.ErrorIs(t, store.SetActive(ctx, "NOPE42", false), domain.ErrRoomNotFound)
}

func TestRoomStore_ListActive(t *testing.T) {
	store := NewRoomStore()
	ctx := context.Background()

	assert.NoError(t, store.Create(ctx, testRoom("AAA111")))
	assert.NoError(t, store.Create(ctx, testRoom("BBB222")))
	assert.NoError(t, store.SetActive(ctx, "BBB222", false))

	active, err := store.ListActive(ctx)
	assert.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, domain.RoomCode("AAA111"), active[0].Code)
}

func TestRoomStore_GetReturnsCopy(t *testing.T) {
	store := NewRoomStore()
	ctx := context.Background()

	assert.NoError(t, store.Create(ctx, testRoom("ABC123")))

	room, err := store.Get(ctx, "ABC123")
	assert.NoError(t, err)
	room.Title = "mutated"

	again, err := store.Get(ctx, "ABC123")
	assert.NoError(t, err)
	assert.Equal(t, "Algebra II", again.Title)
}
