package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/taskmanager-auth/internal/audit"
)

// Количество колонок в таблице auth_audit_logs
const auditFields = 7

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// WriteBatch - один INSERT на всю пачку
func (r *AuditRepo) WriteBatch(ctx context.Context, events []audit.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	vals := make([]interface{}, 0, len(events)*auditFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		p := i * auditFields
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)", p+1, p+2, p+3, p+4, p+5, p+6, p+7)

		vals = append(vals, e.ID, string(e.Type), e.Subject, e.ClientIP, e.RequestID, e.Reason, e.Timestamp)
	}

	query := "INSERT INTO auth_audit_logs (id, event_type, subject, client_ip, request_id, reason, created_at) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"

	if _, err := r.pool.Exec(ctx, query, vals...); err != nil {
		return fmt.Errorf("repository.postgres.WriteBatch: %w", err)
	}
	return nil
}
