package memory

import (
	"fmt"
	"sort"
	"sync"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
)

// ParticipantRegistry is the in-memory roster for one room. The orchestrator
// mutates it from its event loop; the lock keeps reads from the UI layer safe.
type ParticipantRegistry struct {
	participants map[domain.Username]domain.Participant
	mu           sync.RWMutex
}

func NewParticipantRegistry() ports.ParticipantRegistry {
	return &ParticipantRegistry{
		participants: make(map[domain.Username]domain.Participant),
	}
}

func (r *ParticipantRegistry) Upsert(p domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[p.Username] = p
}

func (r *ParticipantRegistry) Get(username domain.Username) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[username]
	return p, ok
}

func (r *ParticipantRegistry) Remove(username domain.Username) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, username)
}

func (r *ParticipantRegistry) List() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		// teacher first, then students by name
		if list[i].Role != list[j].Role {
			return list[i].Role == domain.RoleTeacher
		}
		return list[i].Username < list[j].Username
	})
	return list
}

func (r *ParticipantRegistry) Teacher() (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.participants {
		if p.Role == domain.RoleTeacher {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (r *ParticipantRegistry) SetPermission(username domain.Username, perm domain.Permission, status bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[username]
	if !ok {
		return fmt.Errorf("set permission for %s: %w", username, domain.ErrUnknownParticipant)
	}
	p.Permissions.Set(perm, status)
	r.participants[username] = p
	return nil
}

func (r *ParticipantRegistry) ReplaceStudents(students []domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for username, p := range r.participants {
		if p.Role == domain.RoleStudent {
			delete(r.participants, username)
		}
	}
	for _, p := range students {
		p.Role = domain.RoleStudent
		r.participants[p.Username] = p
	}
}
