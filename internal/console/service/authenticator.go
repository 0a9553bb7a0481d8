package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/taskmanager-auth/internal/domain"
)

// UserRepository описывает требования к хранилищу учетных записей
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Save(ctx context.Context, u *domain.User) (*domain.User, error)
}

// Authenticator проверяет пару email/пароль по сохраненной учетной записи.
type Authenticator struct {
	users  UserRepository
	hasher PasswordHasher

	// dummyHash сравнивается, когда пользователя нет: время ответа
	// не должно выдавать существование аккаунта
	dummyHash string
}

func NewAuthenticator(users UserRepository, hasher PasswordHasher) (*Authenticator, error) {
	dummy, err := hasher.Hash("taskmanager-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("service.NewAuthenticator: %w", err)
	}
	return &Authenticator{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Authenticate: нет пользователя -> ErrUserNotFound, пароль не подошел -> ErrBadCredentials.
// Различие видно только внутри сервиса, наружу AuthService отдает одну ошибку.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	const op = "service.Authenticate"

	user, err := a.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			a.hasher.Verify(password, a.dummyHash)
			return nil, fmt.Errorf("%s: %w", op, domain.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Verify(password, user.PasswordHash) {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrBadCredentials)
	}
	return user.Identity(), nil
}
