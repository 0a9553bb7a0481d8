package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/policy"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeIdentities struct {
	mu    sync.Mutex
	users map[string]*domain.Identity
	err   error
	calls int
}

func (f *fakeIdentities) LoadIdentity(_ context.Context, subject string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ident, ok := f.users[subject]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return ident, nil
}

type gateFixture struct {
	clock    *fakeClock
	codec    *TokenCodec
	users    *fakeIdentities
	gate     *Gate
	outcomes []Outcome
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{clock: &fakeClock{now: t0}}
	f.codec = newTestCodec(t, f.clock)
	f.users = &fakeIdentities{users: map[string]*domain.Identity{
		alice: {Subject: alice, UserID: "u-1", Authorities: []string{domain.RoleUser}},
	}}
	f.gate = NewGate(f.codec, f.users, zaptest.NewLogger(t), WithOutcomeObserver(func(o Outcome) {
		f.outcomes = append(f.outcomes, o)
	}))
	return f
}

func (f *gateFixture) bearer(t *testing.T, subject string) string {
	t.Helper()
	token, err := f.codec.Issue(subject, []string{domain.RoleUser}, f.clock.now)
	require.NoError(t, err)
	return BearerPrefix + token
}

func TestGate_Resolve(t *testing.T) {
	f := newGateFixture(t)
	valid := f.bearer(t, alice)
	ghost := f.bearer(t, "ghost@example.com")

	tests := []struct {
		name    string
		header  string
		want    Outcome
		hasUser bool
	}{
		{"no header", "", OutcomeNoHeader, false},
		{"basic scheme", "Basic YWxpY2U6cGFzcw==", OutcomeNoHeader, false},
		{"lowercase prefix", "bearer " + valid[len(BearerPrefix):], OutcomeNoHeader, false},
		{"empty token", "Bearer    ", OutcomeEmptyToken, false},
		{"garbage token", "Bearer not.a.jwt", OutcomeBadToken, false},
		{"deleted account", ghost, OutcomeUserNotFound, false},
		{"valid", valid, OutcomeAuthenticated, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ident, outcome := f.gate.Resolve(context.Background(), tt.header)
			require.Equal(t, tt.want, outcome)
			if tt.hasUser {
				require.NotNil(t, ident)
				require.Equal(t, alice, ident.Subject)
			} else {
				require.Nil(t, ident)
			}
		})
	}
	require.Len(t, f.outcomes, len(tests))
}

func TestGate_ExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	header := f.bearer(t, alice)

	f.clock.now = t0.Add(25 * time.Hour)
	ident, outcome := f.gate.Resolve(context.Background(), header)
	require.Nil(t, ident)
	require.Equal(t, OutcomeInvalid, outcome)
}

func TestGate_AlreadyAuthenticatedSkipsLookup(t *testing.T) {
	f := newGateFixture(t)
	existing := &domain.Identity{Subject: alice, UserID: "u-1"}
	ctx := WithIdentity(context.Background(), existing)

	ident, outcome := f.gate.Resolve(ctx, f.bearer(t, alice))
	require.Equal(t, OutcomeAlreadyAuthenticated, outcome)
	require.Same(t, existing, ident)
	require.Zero(t, f.users.calls)
}

func TestGate_LookupFailureIsSwallowed(t *testing.T) {
	f := newGateFixture(t)
	f.users.err = errors.New("connection refused")

	ident, outcome := f.gate.Resolve(context.Background(), f.bearer(t, alice))
	require.Nil(t, ident)
	require.Equal(t, OutcomeLookupFailed, outcome)
}

func TestMiddleware_AddsIdentityAndNeverRejects(t *testing.T) {
	f := newGateFixture(t)
	mw := NewMiddleware(f.gate, zaptest.NewLogger(t))

	var seen *domain.Identity
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, header := range []string{"", "Bearer junk", f.bearer(t, "ghost@example.com")} {
		seen = nil
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Nil(t, seen)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", f.bearer(t, alice))
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, alice, seen.Subject)
}

func TestRequireAuthorization(t *testing.T) {
	enforcer := policy.NewRouteEnforcer(append([]policy.Rule{
		{Pattern: "/api/v1/admin/**", Roles: []string{"ADMIN"}},
	}, policy.DefaultRules()...)...)
	h := RequireAuthorization(enforcer, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	user := &domain.Identity{Subject: alice, Authorities: []string{domain.RoleUser}}

	tests := []struct {
		name  string
		path  string
		ident *domain.Identity
		want  int
	}{
		{"public without identity", "/api/v1/auth/register", nil, http.StatusOK},
		{"protected without identity", "/api/v1/users/me", nil, http.StatusUnauthorized},
		{"protected with identity", "/api/v1/users/me", user, http.StatusOK},
		{"missing role", "/api/v1/admin/stats", user, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.ident != nil {
				req = req.WithContext(WithIdentity(req.Context(), tt.ident))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.want, rec.Code)
			if tt.want >= 400 {
				require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				require.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestUnaryGateInterceptor(t *testing.T) {
	f := newGateFixture(t)
	interceptor := UnaryGateInterceptor(f.gate, policy.NewRouteEnforcer(policy.DefaultRules()...), zaptest.NewLogger(t))

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		if ident := IdentityFrom(ctx); ident != nil {
			return ident.Subject, nil
		}
		return "anonymous", nil
	}
	call := func(ctx context.Context, method string) (interface{}, error) {
		return interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	}

	resp, err := call(context.Background(), "/grpc.health.v1.Health/Check")
	require.NoError(t, err)
	require.Equal(t, "anonymous", resp)

	_, err = call(context.Background(), "/taskmanager.v1.Tasks/List")
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", f.bearer(t, alice)))
	resp, err = call(ctx, "/taskmanager.v1.Tasks/List")
	require.NoError(t, err)
	require.Equal(t, alice, resp)
}

func TestLoginThrottle(t *testing.T) {
	throttle := NewLoginThrottle(1, 2, zaptest.NewLogger(t))
	now := t0
	throttle.now = func() time.Time { return now }

	require.True(t, throttle.Allow("10.0.0.1"))
	require.True(t, throttle.Allow("10.0.0.1"))
	require.False(t, throttle.Allow("10.0.0.1"))
	require.True(t, throttle.Allow("10.0.0.2"), "clients have separate buckets")

	now = now.Add(time.Second)
	require.True(t, throttle.Allow("10.0.0.1"))

	// Простаивающие клиенты вычищаются
	now = now.Add(idleLimiterTTL + time.Second)
	require.True(t, throttle.Allow("10.0.0.3"))
	require.Len(t, throttle.clients, 1)
}

func TestLoginThrottle_Middleware(t *testing.T) {
	throttle := NewLoginThrottle(0.001, 1, zaptest.NewLogger(t))
	h := throttle.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/authenticate", nil)
		req.RemoteAddr = "192.0.2.7:51000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
}
