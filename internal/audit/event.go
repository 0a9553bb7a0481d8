package audit

import "time"

// EventType - вид события аутентификации
type EventType string

const (
	EventRegistered       EventType = "REGISTERED"
	EventRegisterConflict EventType = "REGISTER_CONFLICT"
	EventLoginSuccess     EventType = "LOGIN_SUCCESS"
	EventLoginFailure     EventType = "LOGIN_FAILURE"
)

// AuthEvent - запись журнала. Пароли и токены сюда не попадают никогда.
type AuthEvent struct {
	ID        string    `json:"id"`         // UUID события
	Type      EventType `json:"type"`       // Что произошло
	Subject   string    `json:"subject"`    // Email, как его прислал клиент (нормализованный)
	ClientIP  string    `json:"client_ip"`  // Откуда
	RequestID string    `json:"request_id"` // Сквозной ID запроса
	Reason    string    `json:"reason"`     // Причина отказа, если был
	Timestamp time.Time `json:"timestamp"`
}
