package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "taskmanager"
)

// Ключи кэша
const (
	// RedisKeyIdentityPrefix - кэш личностей для Request Gate: taskmanager:identity:{email}
	RedisKeyIdentityPrefix = RedisNamespace + ":identity:"
)

// IdentityKey Генератор ключа кэша личности
func IdentityKey(subject string) string {
	return RedisKeyIdentityPrefix + subject
}
