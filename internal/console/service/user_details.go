package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/metrics"
	"go.uber.org/zap"
)

// IdentityCache - кэш личностей (Redis). Промах - (nil, nil).
type IdentityCache interface {
	Get(ctx context.Context, subject string) (*domain.Identity, error)
	Set(ctx context.Context, ident *domain.Identity) error
}

// IdentityService - поиск личности по subject для Request Gate.
// Кэш необязателен и стоит за Circuit Breaker: Redis лег - идем в Postgres.
type IdentityService struct {
	users  UserRepository
	cache  IdentityCache
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

func NewIdentityService(users UserRepository, cache IdentityCache, m *metrics.Metrics, logger *zap.Logger) *IdentityService {
	if m == nil {
		m = metrics.New(nil)
	}
	logger = logger.Named("identity-service")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "identity-cache",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if to == gobreaker.StateOpen {
				m.CacheBreakerState.Set(1)
			} else {
				m.CacheBreakerState.Set(0)
			}
		},
	})

	return &IdentityService{users: users, cache: cache, cb: cb, logger: logger}
}

// LoadIdentity: кэш -> Postgres -> прогрев кэша. Отсутствие пользователя не кэшируется.
func (s *IdentityService) LoadIdentity(ctx context.Context, subject string) (*domain.Identity, error) {
	if ident := s.cached(ctx, subject); ident != nil {
		return ident, nil
	}

	user, err := s.users.FindByEmail(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("service.LoadIdentity: %w", err)
	}
	ident := user.Identity()

	if s.cache != nil {
		_, cerr := s.cb.Execute(func() (interface{}, error) {
			return nil, s.cache.Set(ctx, ident)
		})
		if cerr != nil {
			s.logger.Debug("identity cache write skipped", zap.Error(cerr))
		}
	}
	return ident, nil
}

func (s *IdentityService) cached(ctx context.Context, subject string) *domain.Identity {
	if s.cache == nil {
		return nil
	}
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.cache.Get(ctx, subject)
	})
	if err != nil {
		s.logger.Debug("identity cache read failed, falling back to repository", zap.Error(err))
		return nil
	}
	ident, _ := res.(*domain.Identity)
	return ident
}
