package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/infra"
)

// IdentityCache - read-through кэш личностей для Request Gate.
// Хранит только Identity (email, id, роли), хэш пароля сюда не попадает.
type IdentityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdentityCache(rdb *redis.Client, ttl time.Duration) *IdentityCache {
	return &IdentityCache{rdb: rdb, ttl: ttl}
}

// Get возвращает (nil, nil) при промахе
func (c *IdentityCache) Get(ctx context.Context, subject string) (*domain.Identity, error) {
	raw, err := c.rdb.Get(ctx, infra.IdentityKey(subject)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache.Get: %w", err)
	}

	var ident domain.Identity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return nil, fmt.Errorf("cache.Get: corrupted entry: %w", err)
	}
	return &ident, nil
}

// Set кладет личность на ttl. Устаревание ограничено ttl: отзыва ролей раньше не будет.
func (c *IdentityCache) Set(ctx context.Context, ident *domain.Identity) error {
	raw, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	if err := c.rdb.Set(ctx, infra.IdentityKey(ident.Subject), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache.Set: %w", err)
	}
	return nil
}
