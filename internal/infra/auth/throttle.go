package auth

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/xela07ax/taskmanager-auth/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// idleLimiterTTL - через сколько простоя лимитер клиента выбрасывается
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginThrottle - token bucket на каждый IP для входа и регистрации.
// Защищает bcrypt от перебора паролей.
type LoginThrottle struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
	logger    *zap.Logger
}

func NewLoginThrottle(rps float64, burst int, logger *zap.Logger) *LoginThrottle {
	return &LoginThrottle{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		logger:  logger.Named("throttle"),
	}
}

// Allow расходует один токен клиента key
func (t *LoginThrottle) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if now.Sub(t.lastSweep) > idleLimiterTTL {
		for k, c := range t.clients {
			if now.Sub(c.lastSeen) > idleLimiterTTL {
				delete(t.clients, k)
			}
		}
		t.lastSweep = now
	}

	c, ok := t.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Middleware отвечает 429, когда клиент исчерпал бюджет
func (t *LoginThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !t.Allow(ip) {
			t.logger.Info("login throttled", zap.String("client_ip", ip), zap.String("path", r.URL.Path))
			w.Header().Set("Retry-After", "1")
			infra.WriteError(w, r, http.StatusTooManyRequests, "too_many_requests", "too many attempts, try later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP - хост из RemoteAddr. Заголовки прокси сюда попадают, только если
// сервер настроен доверять этому прокси.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
