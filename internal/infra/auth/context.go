package auth

import (
	"context"

	"github.com/xela07ax/taskmanager-auth/internal/domain"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey struct{}

var identityKey ctxKey

// WithIdentity кладет аутентифицированную личность в контекст запроса
func WithIdentity(ctx context.Context, ident *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom достает личность из контекста. nil - запрос не аутентифицирован.
func IdentityFrom(ctx context.Context) *domain.Identity {
	ident, _ := ctx.Value(identityKey).(*domain.Identity)
	return ident
}
