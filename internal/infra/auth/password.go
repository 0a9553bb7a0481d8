package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher - односторонний адаптивный хэш паролей (bcrypt).
// Без состояния, безопасен для конкурентного использования.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher создает хэшер. Cost вне допустимого диапазона bcrypt
// заменяется на bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost возвращает фактический cost factor
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash возвращает bcrypt-хэш пароля (соль внутри хэша).
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth.password.Hash: %w", err)
	}
	return string(b), nil
}

// Verify сравнивает пароль с хэшем. Битый хэш - это просто «не совпало».
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
