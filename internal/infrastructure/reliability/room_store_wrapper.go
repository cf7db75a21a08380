package reliability

import (
	"context"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/pkg/circuitbreaker"
	"liveclass/pkg/retry"

	"go.uber.org/zap"
)

// RoomStoreWrapper wraps a RoomStore with retry logic and a circuit breaker,
// shielding the HTTP layer from a flapping Redis backend.
type RoomStoreWrapper struct {
	store  ports.RoomStore
	logger *zap.SugaredLogger

	retryConfig    retry.Config
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewRoomStoreWrapper(
	store ports.RoomStore,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *RoomStoreWrapper {
	wrapper := &RoomStoreWrapper{
		store:          store,
		logger:         logger,
		retryConfig:    retryConfig,
		circuitBreaker: circuitbreaker.New(cbConfig),
	}

	wrapper.circuitBreaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("room store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

func (w *RoomStoreWrapper) Create(ctx context.Context, room *domain.Room) error {
	if !w.retryConfig.Enabled {
		return w.store.Create(ctx, room)
	}

	return retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			return w.store.Create(ctx, room)
		})
	})
}

func (w *RoomStoreWrapper) Get(ctx context.Context, code domain.RoomCode) (*domain.Room, error) {
	if !w.retryConfig.Enabled {
		return w.store.Get(ctx, code)
	}

	// A miss is an answer, not a backend failure; it must neither trip the
	// breaker nor burn retry attempts.
	var notFound bool
	room, err := retry.RetryWithResult(ctx, w.retryConfig, func() (*domain.Room, error) {
		res, err := w.circuitBreaker.ExecuteWithResult(ctx, func() (interface{}, error) {
			room, err := w.store.Get(ctx, code)
			if err == domain.ErrRoomNotFound {
				notFound = true
				return (*domain.Room)(nil), nil
			}
			return room, err
		})
		if err != nil {
			return nil, err
		}
		return res.(*domain.Room), nil
	})
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (w *RoomStoreWrapper) SetActive(ctx context.Context, code domain.RoomCode, active bool) error {
	if !w.retryConfig.Enabled {
		return w.store.SetActive(ctx, code, active)
	}

	var notFound bool
	err := retry.Retry(ctx, w.retryConfig, func() error {
		return w.circuitBreaker.Execute(ctx, func() error {
			err := w.store.SetActive(ctx, code, active)
			if err == domain.ErrRoomNotFound {
				notFound = true
				return nil
			}
			return err
		})
	})
	if err != nil {
		return err
	}
	if notFound {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (w *RoomStoreWrapper) ListActive(ctx context.Context) ([]*domain.Room, error) {
	if !w.retryConfig.Enabled {
		return w.store.ListActive(ctx)
	}

	return retry.RetryWithResult(ctx, w.retryConfig, func() ([]*domain.Room, error) {
		res, err := w.circuitBreaker.ExecuteWithResult(ctx, func() (interface{}, error) {
			return w.store.ListActive(ctx)
		})
		if err != nil {
			return nil, err
		}
		return res.([]*domain.Room), nil
	})
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (w *RoomStoreWrapper) GetCircuitBreakerStats() circuitbreaker.Stats {
	return w.circuitBreaker.GetStats()
}
