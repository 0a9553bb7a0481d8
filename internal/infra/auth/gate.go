package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"go.uber.org/zap"
)

// BearerPrefix - ожидаемый префикс заголовка Authorization
const BearerPrefix = "Bearer "

// TokenVerifier - то, что Gate требует от TokenCodec
type TokenVerifier interface {
	Subject(token string) (string, error)
	IsValid(token, expectedSubject string) (bool, error)
}

// IdentityProvider - внешний поиск пользователя по subject (email)
type IdentityProvider interface {
	LoadIdentity(ctx context.Context, subject string) (*domain.Identity, error)
}

// Outcome - итог прохождения запроса через Gate (метка для логов и метрик)
type Outcome string

const (
	OutcomeNoHeader             Outcome = "no_header"
	OutcomeEmptyToken           Outcome = "empty_token"
	OutcomeBadToken             Outcome = "bad_token"
	OutcomeAlreadyAuthenticated Outcome = "already_authenticated"
	OutcomeUserNotFound         Outcome = "user_not_found"
	OutcomeLookupFailed         Outcome = "lookup_failed"
	OutcomeInvalid              Outcome = "invalid"
	OutcomeAuthenticated        Outcome = "authenticated"
)

type gateState int

const (
	stateNoHeader gateState = iota
	stateTokenPresent
	stateSubjectExtraction
	stateAlreadyAuthenticated
	stateLookup
	stateValidate
	stateDone
)

// Gate устанавливает личность запроса по bearer-токену.
// Gate только добавляет личность: отказ (401/403) - дело RouteEnforcer.
// Не зависит от транспорта: используется и HTTP middleware, и gRPC interceptor.
type Gate struct {
	tokens  TokenVerifier
	users   IdentityProvider
	logger  *zap.Logger
	observe func(Outcome)
}

// GateOption настраивает Gate
type GateOption func(*Gate)

// WithOutcomeObserver подключает наблюдателя исходов (метрики)
func WithOutcomeObserver(fn func(Outcome)) GateOption {
	return func(g *Gate) { g.observe = fn }
}

func NewGate(tokens TokenVerifier, users IdentityProvider, logger *zap.Logger, opts ...GateOption) *Gate {
	g := &Gate{
		tokens:  tokens,
		users:   users,
		logger:  logger.Named("gate"),
		observe: func(Outcome) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve проходит конечную последовательность состояний и возвращает личность
// (или nil) вместе с исходом. Ошибки разбора и поиска не пробрасываются.
func (g *Gate) Resolve(ctx context.Context, authHeader string) (*domain.Identity, Outcome) {
	var (
		state   = stateNoHeader
		outcome Outcome
		token   string
		subject string
		ident   *domain.Identity
	)

	for state != stateDone {
		switch state {
		case stateNoHeader:
			if !strings.HasPrefix(authHeader, BearerPrefix) {
				state, outcome = stateDone, OutcomeNoHeader
				break
			}
			state = stateTokenPresent

		case stateTokenPresent:
			token = strings.TrimSpace(authHeader[len(BearerPrefix):])
			if token == "" {
				state, outcome = stateDone, OutcomeEmptyToken
				break
			}
			state = stateSubjectExtraction

		case stateSubjectExtraction:
			s, err := g.tokens.Subject(token)
			if err != nil {
				g.logger.Debug("token rejected", zap.Error(err))
				state, outcome = stateDone, OutcomeBadToken
				break
			}
			subject, state = s, stateAlreadyAuthenticated

		case stateAlreadyAuthenticated:
			if existing := IdentityFrom(ctx); existing != nil {
				ident = existing
				state, outcome = stateDone, OutcomeAlreadyAuthenticated
				break
			}
			state = stateLookup

		case stateLookup:
			found, err := g.users.LoadIdentity(ctx, subject)
			switch {
			case errors.Is(err, domain.ErrUserNotFound) || (err == nil && found == nil):
				state, outcome = stateDone, OutcomeUserNotFound
			case err != nil:
				g.logger.Warn("identity lookup failed", zap.String("subject", subject), zap.Error(err))
				state, outcome = stateDone, OutcomeLookupFailed
			default:
				ident, state = found, stateValidate
			}

		case stateValidate:
			ok, err := g.tokens.IsValid(token, ident.Subject)
			if err != nil || !ok {
				ident = nil
				state, outcome = stateDone, OutcomeInvalid
				break
			}
			state, outcome = stateDone, OutcomeAuthenticated
		}
	}

	g.observe(outcome)
	return ident, outcome
}
