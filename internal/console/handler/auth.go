package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/taskmanager-auth/internal/audit"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/infra"
	"github.com/xela07ax/taskmanager-auth/internal/infra/auth"
	"go.uber.org/zap"
)

// Тело запроса на вход/регистрацию заведомо маленькое
const maxBodyBytes = 1 << 16

// AuthUseCase - то, что хендлер требует от service.AuthService
type AuthUseCase interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenResponse, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.TokenResponse, error)
}

type AuthHandler struct {
	service AuthUseCase
	logger  *zap.Logger
}

func NewAuthHandler(s AuthUseCase, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: s, logger: logger.Named("auth-handler")}
}

// Register - POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(withSource(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	infra.WriteJSON(w, http.StatusCreated, resp)
}

// Authenticate - POST /api/v1/auth/authenticate (и /login)
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(withSource(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	infra.WriteJSON(w, http.StatusOK, resp)
}

// Me - GET /api/v1/users/me, личность берется из контекста (ее положил Gate)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFrom(r.Context())
	if ident == nil {
		infra.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	infra.WriteJSON(w, http.StatusOK, ident)
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		infra.WriteError(w, r, http.StatusBadRequest, "bad_request", "malformed request body")
		return false
	}
	return true
}

// fail переводит доменную ошибку в HTTP. Детали - только в лог.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBadCredentials):
		// не уточняем, что именно неверно (логин или пароль) для защиты от перебора
		infra.WriteError(w, r, http.StatusUnauthorized, "bad_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrDuplicateIdentity):
		infra.WriteError(w, r, http.StatusConflict, "duplicate_identity", "account already exists")
	case errors.Is(err, domain.ErrInvalidInput):
		infra.WriteError(w, r, http.StatusBadRequest, "invalid_input", inputMessage(err))
	default:
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		infra.WriteError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

// inputMessage отрезает служебный префикс "service.Register: ..." от текста валидации
func inputMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrInvalidInput.Error()); i >= 0 {
		return msg[i:]
	}
	return domain.ErrInvalidInput.Error()
}

func withSource(r *http.Request) context.Context {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return audit.WithSource(r.Context(), audit.Source{
		ClientIP:  ip,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
