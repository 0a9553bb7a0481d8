package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
)

// UserRepo - хранилище учетных записей. Уникальность email обеспечивает
// UNIQUE-ограничение (CITEXT), а не проверка "select, потом insert".
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// FindByEmail ищет учетную запись. Нет записи -> domain.ErrUserNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "repository.postgres.FindByEmail"

	query := `
		SELECT id, email, username, first_name, last_name, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// Save вставляет новую запись. Существующая никогда не перезаписывается:
// конфликт по email -> domain.ErrDuplicateIdentity.
func (r *UserRepo) Save(ctx context.Context, u *domain.User) (*domain.User, error) {
	const op = "repository.postgres.Save"

	query := `
		INSERT INTO users (id, email, username, first_name, last_name, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	saved := *u
	err := r.pool.QueryRow(ctx, query,
		u.ID, u.Email, u.Username, u.FirstName, u.LastName,
		u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
	).Scan(&saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, domain.ErrDuplicateIdentity)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &saved, nil
}
