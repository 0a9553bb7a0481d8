package policy

import (
	"path"
	"strings"
	"sync"

	"github.com/xela07ax/taskmanager-auth/internal/domain"
)

// Decision - итог проверки доступа к маршруту
type Decision int

const (
	Allow           Decision = iota
	Unauthenticated          // нет личности -> 401
	Forbidden                // личность есть, роли нет -> 403
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "forbidden"
	}
}

// Rule - правило доступа к маршруту.
// Pattern: точный путь, "/prefix/**" (любая глубина) или path.Match-шаблон ("/users/*").
type Rule struct {
	Pattern string
	Public  bool
	Roles   []string // пусто - достаточно любой аутентифицированной личности
}

// RouteEnforcer решает, пускать ли запрос к маршруту.
// Правила проверяются по порядку, побеждает первое совпавшее.
// Маршрут без правила требует аутентификации (Default Deny).
type RouteEnforcer struct {
	mu    sync.RWMutex
	rules []Rule
}

func NewRouteEnforcer(rules ...Rule) *RouteEnforcer {
	e := &RouteEnforcer{}
	e.SetRules(rules)
	return e
}

// DefaultRules - публичны только вход, регистрация и health
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/api/v1/auth/**", Public: true},
		{Pattern: "/health", Public: true},
		{Pattern: "/grpc.health.v1.Health/**", Public: true},
	}
}

// SetRules атомарно подменяет набор правил
func (e *RouteEnforcer) SetRules(rules []Rule) {
	cp := make([]Rule, len(rules))
	copy(cp, rules)

	e.mu.Lock()
	e.rules = cp
	e.mu.Unlock()
}

// Decide - горячий путь, работает только с памятью
func (e *RouteEnforcer) Decide(ident *domain.Identity, target string) Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.rules {
		if !matchRoute(r.Pattern, target) {
			continue
		}
		if r.Public {
			return Allow
		}
		return requireIdentity(ident, r.Roles)
	}
	return requireIdentity(ident, nil)
}

func requireIdentity(ident *domain.Identity, roles []string) Decision {
	if ident == nil {
		return Unauthenticated
	}
	if len(roles) == 0 {
		return Allow
	}
	for _, role := range roles {
		if ident.HasAuthority(role) {
			return Allow
		}
	}
	return Forbidden
}

// matchRoute сравнивает очищенный путь с шаблоном
func matchRoute(pattern, target string) bool {
	target = path.Clean("/" + target)

	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return target == prefix || strings.HasPrefix(target, prefix+"/")
	}
	if pattern == target {
		return true
	}
	ok, err := path.Match(pattern, target)
	return err == nil && ok
}
