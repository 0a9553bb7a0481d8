package domain

import "errors"

var (
	// ErrBadCredentials - неверный пароль или неизвестный email.
	// Наружу всегда один ответ (HTTP 401), чтобы не раскрывать наличие аккаунта.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrDuplicateIdentity - email уже зарегистрирован (HTTP 409).
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrTokenMalformed - структура токена не разбирается (сегменты, base64, JSON).
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenInvalid - подпись не сошлась, чужой алгоритм, subject не совпал или токен истек.
	// Все случаи неразличимы снаружи.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrUserNotFound - учетной записи нет (в т.ч. токен пережил аккаунт).
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidInput - тело запроса не прошло минимальную проверку (HTTP 400).
	ErrInvalidInput = errors.New("invalid input")

	// ErrWeakSecret - секрет подписи пустой, короткий или с низкой энтропией.
	// Старт сервиса с таким секретом запрещен.
	ErrWeakSecret = errors.New("signing secret is too weak")
)
