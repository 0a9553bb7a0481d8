package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/taskmanager-auth/internal/audit"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/metrics"
	"go.uber.org/zap"
)

// TokenIssuer - то, что AuthService требует от auth.TokenCodec
type TokenIssuer interface {
	Issue(subject string, roles []string, now time.Time) (string, error)
	TTL() time.Duration
}

// AuthService координирует регистрацию и вход и выдает токены.
type AuthService struct {
	users   UserRepository
	hasher  PasswordHasher
	authn   *Authenticator
	tokens  TokenIssuer
	auditor audit.Auditor
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

func NewAuthService(
	users UserRepository,
	hasher PasswordHasher,
	authn *Authenticator,
	tokens TokenIssuer,
	auditor audit.Auditor,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AuthService {
	if m == nil {
		m = metrics.New(nil)
	}
	return &AuthService{
		users:   users,
		hasher:  hasher,
		authn:   authn,
		tokens:  tokens,
		auditor: auditor,
		metrics: m,
		now:     time.Now,
		logger:  logger.Named("auth-service"),
	}
}

// Register создает учетную запись и сразу выдает токен.
// Повторный email -> ErrDuplicateIdentity, первая запись остается нетронутой.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error) {
	const op = "service.Register"

	req.Email = normalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		s.metrics.RegisterTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.metrics.RegisterTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	user, err := s.users.Save(ctx, &domain.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			s.metrics.RegisterTotal.WithLabelValues(metrics.ResultConflict).Inc()
			s.record(ctx, audit.EventRegisterConflict, req.Email, "duplicate identity")
			return nil, fmt.Errorf("%s: %w", op, domain.ErrDuplicateIdentity)
		}
		s.metrics.RegisterTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.issue(user.Identity(), now)
	if err != nil {
		s.metrics.RegisterTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.RegisterTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.record(ctx, audit.EventRegistered, user.Email, "")
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return resp, nil
}

// Login проверяет учетные данные и выдает токен.
// Неизвестный email и неверный пароль снаружи неразличимы: оба ErrBadCredentials.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error) {
	const op = "service.Login"

	req.Email = normalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		s.metrics.LoginTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ident, err := s.authn.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrBadCredentials) {
			s.metrics.LoginTotal.WithLabelValues(metrics.ResultFailure).Inc()
			s.record(ctx, audit.EventLoginFailure, req.Email, "bad credentials")
			return nil, fmt.Errorf("%s: %w", op, domain.ErrBadCredentials)
		}
		s.metrics.LoginTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.issue(ident, s.now())
	if err != nil {
		s.metrics.LoginTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.LoginTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	s.record(ctx, audit.EventLoginSuccess, ident.Subject, "")
	return resp, nil
}

func (s *AuthService) issue(ident *domain.Identity, now time.Time) (*domain.TokenResponse, error) {
	token, err := s.tokens.Issue(ident.Subject, ident.Authorities, now)
	if err != nil {
		return nil, err
	}
	return &domain.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	}, nil
}

func (s *AuthService) record(ctx context.Context, typ audit.EventType, subject, reason string) {
	if s.auditor == nil {
		return
	}
	src := audit.SourceFrom(ctx)
	s.auditor.Log(audit.AuthEvent{
		Type:      typ,
		Subject:   subject,
		ClientIP:  src.ClientIP,
		RequestID: src.RequestID,
		Reason:    reason,
	})
}
