package ports

import (
	"context"

	"liveclass/internal/core/domain"
)

// ParticipantRegistry is the authoritative roster of one room as seen by a
// client orchestrator. All mutation happens on the orchestrator's event loop.
type ParticipantRegistry interface {
	Upsert(p domain.Participant)
	Get(username domain.Username) (domain.Participant, bool)
	Remove(username domain.Username)
	List() []domain.Participant
	// Teacher returns the room's teacher entry, if known.
	Teacher() (domain.Participant, bool)
	SetPermission(username domain.Username, perm domain.Permission, status bool) error
	// ReplaceStudents applies a full roster snapshot, keeping the teacher entry.
	ReplaceStudents(students []domain.Participant)
}

// RoomStore persists relay-side room records.
type RoomStore interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error)
	SetActive(ctx context.Context, code domain.RoomCode, active bool) error
	ListActive(ctx context.Context) ([]*domain.Room, error)
}
