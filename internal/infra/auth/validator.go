package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
)

const (
	// MinSecretBytes - минимум 256 бит для HS256
	MinSecretBytes = 32
	// minDistinctBytes отсекает секреты вида "aaaa...a"
	minDistinctBytes = 8
)

// TokenCodec выпускает и проверяет JWT, подписанные HS256.
// Проверка подписи (DecodeAndVerify) и срока жизни (IsValid) разнесены:
// политику срока можно менять, не трогая примитив подписи.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time

	parser *jwt.Parser
}

// CodecOption настраивает TokenCodec
type CodecOption func(*TokenCodec)

// WithClock подменяет источник времени (для тестов TTL)
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// WithIssuer задает iss. Пустой issuer не проверяется.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) { c.issuer = issuer }
}

// NewTokenCodec создает кодек. Слабый секрет - ошибка конструктора, а не запроса.
func NewTokenCodec(secret []byte, ttl time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth.NewTokenCodec: ttl must be positive, got %s", ttl)
	}

	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
		// Claims проверяем сами в IsValid; строгий base64 не дает
		// "хвостовым" битам подписи проходить проверку
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func checkSecret(secret []byte) error {
	if len(secret) < MinSecretBytes {
		return fmt.Errorf("%w: need at least %d bytes, got %d", domain.ErrWeakSecret, MinSecretBytes, len(secret))
	}
	seen := make(map[byte]struct{}, minDistinctBytes)
	for _, b := range secret {
		seen[b] = struct{}{}
		if len(seen) >= minDistinctBytes {
			return nil
		}
	}
	return fmt.Errorf("%w: not enough distinct bytes", domain.ErrWeakSecret)
}

// TTL - срок жизни выпускаемых токенов
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue выпускает токен: iat = now, exp = now + TTL.
func (c *TokenCodec) Issue(subject string, roles []string, now time.Time) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("auth.Issue: empty subject: %w", domain.ErrInvalidInput)
	}

	claims := &domain.TokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth.Issue: failed to sign token: %w", err)
	}
	return signed, nil
}

// DecodeAndVerify разбирает токен и проверяет подпись. Срок жизни не проверяется.
// Структурные ошибки -> ErrTokenMalformed, все остальные -> ErrTokenInvalid.
func (c *TokenCodec) DecodeAndVerify(tokenStr string) (*domain.TokenClaims, error) {
	// Сначала структура: три сегмента, читаемые header и payload
	if _, _, err := c.parser.ParseUnverified(tokenStr, &domain.TokenClaims{}); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims := &domain.TokenClaims{}
	token, err := c.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	return claims, nil
}

// Subject возвращает sub проверенного токена
func (c *TokenCodec) Subject(tokenStr string) (string, error) {
	claims, err := c.DecodeAndVerify(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: empty subject", domain.ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// IsValid: подпись верна, sub совпадает с expectedSubject, now < exp.
// Истекший, чужой или поддельный токен - (false, nil). Ошибка только для битой структуры.
func (c *TokenCodec) IsValid(tokenStr, expectedSubject string) (bool, error) {
	claims, err := c.DecodeAndVerify(tokenStr)
	if err != nil {
		if errors.Is(err, domain.ErrTokenMalformed) {
			return false, err
		}
		return false, nil
	}

	if claims.Subject == "" || claims.Subject != expectedSubject {
		return false, nil
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return false, nil
	}
	if claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time) {
		return false, nil
	}
	return true, nil
}
