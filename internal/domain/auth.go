package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleUser - роль по умолчанию для новых учетных записей
const RoleUser = "USER"

// TokenClaims - полезная нагрузка JWT: sub (email), iat, exp + роли
type TokenClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Identity - аутентифицированная личность в рамках одного запроса.
// Создается Request Gate, живет в context.Context, никогда не сохраняется.
type Identity struct {
	Subject     string   `json:"subject"` // email, он же sub в токене
	UserID      string   `json:"user_id"`
	Authorities []string `json:"authorities"`
}

// HasAuthority проверяет наличие роли у личности
func (i *Identity) HasAuthority(role string) bool {
	if i == nil {
		return false
	}
	for _, a := range i.Authorities {
		if a == role {
			return true
		}
	}
	return false
}

// User - учетная запись (Credential Record). Email уникален.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"` // Никогда не отправляем на фронт
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity строит личность запроса из учетной записи
func (u *User) Identity() *Identity {
	role := u.Role
	if role == "" {
		role = RoleUser
	}
	return &Identity{
		Subject:     u.Email,
		UserID:      u.ID,
		Authorities: []string{role},
	}
}

// LoginRequest - тело POST /api/v1/auth/authenticate
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// RegisterRequest - тело POST /api/v1/auth/register.
// Пароль ограничен 72 байтами: дальше bcrypt его не учитывает.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=1,maxbytes=72"`
	Username  string `json:"username" validate:"omitempty,max=64"`
	FirstName string `json:"firstname" validate:"omitempty,max=128"`
	LastName  string `json:"lastname" validate:"omitempty,max=128"`
}

// TokenResponse - то, что получает клиент после входа или регистрации
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn int64  `json:"expires_in"`
}
