package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/pkg/circuitbreaker"
	"liveclass/pkg/retry"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var errBackend = errors.New("backend unavailable")

// flakyStore fails the first failures calls of every operation, then
// delegates to a fixed in-memory answer.
type flakyStore struct {
	failures int
	calls    int
	room     *domain.Room
}

func (s *flakyStore) attempt() error {
	s.calls++
	if s.calls <= s.failures {
		return errBackend
	}
	return nil
}

func (s *flakyStore) Create(ctx context.Context, room *domain.Room) error {
	return s.attempt()
}

func (s *flakyStore) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	if err := s.attempt(); err != nil {
		return nil, err
	}
	if s.room == nil || s.room.Code != code {
		return nil, domain.ErrRoomNotFound
	}
	return s.room, nil
}

func (s *flakyStore) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	if err := s.attempt(); err != nil {
		return err
	}
	if s.room == nil || s.room.Code != code {
		return domain.ErrRoomNotFound
	}
	s.room.Active = active
	return nil
}

func (s *flakyStore) ListActive(ctx context.Context) ([]*domain.Room, error) {
	if err := s.attempt(); err != nil {
		return nil, err
	}
	if s.room != nil && s.room.Active {
		return []*domain.Room{s.room}, nil
	}
	return nil, nil
}

func fastRetry() retry.Config {
	return retry.Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func fastBreaker() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    1,
		Timeout:             20 * time.Millisecond,
		MaxRequestsHalfOpen: 1,
	}
}

func newWrapper(store *flakyStore) *RoomStoreWrapper {
	return NewRoomStoreWrapper(store, fastRetry(), fastBreaker(), zap.NewNop().Sugar())
}

func TestRoomStoreWrapper_RetriesTransientFailure(t *testing.T) {
	store := &flakyStore{
		failures: 2,
		room:     &domain.Room{Code: "ABC123", Active: true},
	}
	wrapper := newWrapper(store)

	room, err := wrapper.Get(context.Background(), "ABC123")
	assert.NoError(t, err)
	assert.Equal(t, domain.RoomCode("ABC123"), room.Code)
	assert.Equal(t, 3, store.calls)
}

func TestRoomStoreWrapper_GivesUpAfterMaxAttempts(t *testing.T) {
	store := &flakyStore{failures: 100}
	wrapper := newWrapper(store)

	err := wrapper.Create(context.Background(), &domain.Room{Code: "ABC123"})
	assert.Error(t, err)
	// MaxAttempts retries on top of the initial call
	assert.Equal(t, 3, store.calls)
}

func TestRoomStoreWrapper_NotFoundPassesThroughUntouched(t *testing.T) {
	store := &flakyStore{room: &domain.Room{Code: "ABC123", Active: true}}
	wrapper := newWrapper(store)

	_, err := wrapper.Get(context.Background(), "ZZZZ99")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	// a miss is an answer, not a failure worth retrying
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, circuitbreaker.StateClosed, wrapper.GetCircuitBreakerStats().State)

	err = wrapper.SetActive(context.Background(), "ZZZZ99", false)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomStoreWrapper_BreakerOpensUnderSustainedFailure(t *testing.T) {
	store := &flakyStore{failures: 100}
	wrapper := newWrapper(store)

	for i := 0; i < 2; i++ {
		_, err := wrapper.ListActive(context.Background())
		assert.Error(t, err)
	}

	assert.Equal(t, circuitbreaker.StateOpen, wrapper.GetCircuitBreakerStats().State)
	callsWhenOpen := store.calls

	// requests are rejected without reaching the backend while open
	_, err := wrapper.ListActive(context.Background())
	assert.Error(t, err)
	assert.Equal(t, callsWhenOpen, store.calls)
}

func TestRoomStoreWrapper_BreakerRecovers(t *testing.T) {
	store := &flakyStore{failures: 100, room: &domain.Room{Code: "ABC123", Active: true}}
	wrapper := newWrapper(store)

	for i := 0; i < 2; i++ {
		_, _ = wrapper.ListActive(context.Background())
	}
	assert.Equal(t, circuitbreaker.StateOpen, wrapper.GetCircuitBreakerStats().State)

	store.failures = 0
	store.calls = 0
	time.Sleep(30 * time.Millisecond)

	rooms, err := wrapper.ListActive(context.Background())
	assert.NoError(t, err)
	assert.Len(t, rooms, 1)
	assert.Equal(t, circuitbreaker.StateClosed, wrapper.GetCircuitBreakerStats().State)
}

func TestRoomStoreWrapper_RetryDisabledDelegates(t *testing.T) {
	store := &flakyStore{failures: 1}
	wrapper := NewRoomStoreWrapper(store, retry.Config{Enabled: false}, fastBreaker(), zap.NewNop().Sugar())

	err := wrapper.Create(context.Background(), &domain.Room{Code: "ABC123"})
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, store.calls)
}
