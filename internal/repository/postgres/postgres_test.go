package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xela07ax/taskmanager-auth/internal/audit"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/infra"
	"go.uber.org/zap/zaptest"
)

// Интеграционные тесты: реальный PostgreSQL через testcontainers-go + миграции из ./migrations.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/repository/postgres -v -count=1

// internal/repository/postgres -> корень репозитория
func repoRoot() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", ".."))
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, infra.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port()),
		PingAttempts: 10,
		PingDelay:    500 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	for _, name := range []string{"1_init_users.up.sql", "2_init_auth_audit.up.sql"} {
		b, err := os.ReadFile(filepath.Join(repoRoot(), "migrations", name))
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(b))
		require.NoError(t, err, name)
	}
	return pool
}

func newUser(email, hash string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     "alice",
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestIntegration_UserRepo_SaveAndFind(t *testing.T) {
	repo := NewUserRepo(startPostgres(t))
	ctx := context.Background()

	saved, err := repo.Save(ctx, newUser("alice@example.com", "hash-1"))
	require.NoError(t, err)

	got, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, saved.ID, got.ID)
	require.Equal(t, "hash-1", got.PasswordHash)
	require.Equal(t, domain.RoleUser, got.Role)
	require.WithinDuration(t, saved.CreatedAt, got.CreatedAt, time.Second)

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestIntegration_UserRepo_DuplicateNeverOverwrites(t *testing.T) {
	repo := NewUserRepo(startPostgres(t))
	ctx := context.Background()

	first, err := repo.Save(ctx, newUser("alice@example.com", "hash-1"))
	require.NoError(t, err)

	// CITEXT: регистр email не важен
	_, err = repo.Save(ctx, newUser("ALICE@example.com", "hash-2"))
	require.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	got, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, "hash-1", got.PasswordHash)
}

func TestIntegration_AuditRepo_WriteBatch(t *testing.T) {
	pool := startPostgres(t)
	repo := NewAuditRepo(pool)
	ctx := context.Background()

	events := []audit.AuthEvent{
		{ID: uuid.NewString(), Type: audit.EventRegistered, Subject: "alice@example.com", Timestamp: time.Now().UTC()},
		{ID: uuid.NewString(), Type: audit.EventLoginFailure, Subject: "alice@example.com", Reason: "bad credentials", Timestamp: time.Now().UTC()},
	}
	require.NoError(t, repo.WriteBatch(ctx, events))
	require.NoError(t, repo.WriteBatch(ctx, nil))

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM auth_audit_logs WHERE subject = $1", "alice@example.com").Scan(&n))
	require.Equal(t, 2, n)
}
