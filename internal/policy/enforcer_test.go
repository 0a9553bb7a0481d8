package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
)

func TestRouteEnforcer_Decide(t *testing.T) {
	e := NewRouteEnforcer(append([]Rule{
		{Pattern: "/api/v1/admin/**", Roles: []string{"ADMIN"}},
		{Pattern: "/api/v1/reports/*", Roles: []string{"ADMIN", "AUDITOR"}},
	}, DefaultRules()...)...)

	user := &domain.Identity{Subject: "alice@example.com", Authorities: []string{domain.RoleUser}}
	admin := &domain.Identity{Subject: "root@example.com", Authorities: []string{"ADMIN"}}

	tests := []struct {
		name   string
		ident  *domain.Identity
		target string
		want   Decision
	}{
		{"register is public", nil, "/api/v1/auth/register", Allow},
		{"login is public", nil, "/api/v1/auth/authenticate", Allow},
		{"auth prefix itself", nil, "/api/v1/auth", Allow},
		{"health is public", nil, "/health", Allow},
		{"grpc health is public", nil, "/grpc.health.v1.Health/Check", Allow},
		{"me needs identity", nil, "/api/v1/users/me", Unauthenticated},
		{"me with identity", user, "/api/v1/users/me", Allow},
		{"unknown route is default deny", nil, "/api/v1/tasks", Unauthenticated},
		{"dot-dot escape is cleaned", nil, "/api/v1/auth/../users/me", Unauthenticated},
		{"prefix does not leak to sibling", nil, "/api/v1/authx/register", Unauthenticated},
		{"admin route forbids user", user, "/api/v1/admin/users", Forbidden},
		{"admin route allows admin", admin, "/api/v1/admin/users", Allow},
		{"admin route without identity", nil, "/api/v1/admin/users", Unauthenticated},
		{"glob pattern", admin, "/api/v1/reports/daily", Allow},
		{"glob does not cross segments", user, "/api/v1/reports/daily/x", Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, e.Decide(tt.ident, tt.target))
		})
	}
}

func TestRouteEnforcer_SetRules(t *testing.T) {
	e := NewRouteEnforcer()
	require.Equal(t, Unauthenticated, e.Decide(nil, "/health"))

	e.SetRules(DefaultRules())
	require.Equal(t, Allow, e.Decide(nil, "/health"))
}

func TestDecision_String(t *testing.T) {
	require.Equal(t, "allow", Allow.String())
	require.Equal(t, "unauthenticated", Unauthenticated.String())
	require.Equal(t, "forbidden", Forbidden.String())
}
