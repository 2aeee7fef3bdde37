package handlers

import (
	"net/http"

	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/services"
)

// AuthHandler обрабатывает HTTP-запросы, связанные с аутентификацией.
type AuthHandler struct {
	service services.AuthService // Зависимость от интерфейса, а не конкретной реализации
	log     *logger.Logger
}

// NewAuthHandler создает новый экземпляр AuthHandler.
func NewAuthHandler(s services.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{service: s, log: log.Module("handlers.auth")}
}

// Register обрабатывает запрос на регистрацию нового пользователя.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.Debug("ошибка декодирования запроса регистрации", "err", err)
		writeError(w, h.log, err)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, h.log, http.StatusBadRequest, models.ErrorResponse{
			Code:    CodeInvalidRequest,
			Message: "Имя пользователя и пароль не могут быть пустыми",
		})
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusCreated, models.RegisterResponse{Username: user.Username, Address: user.Address})
}

// Login обрабатывает запрос на вход пользователя.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log.Debug("ошибка декодирования запроса входа", "err", err)
		writeError(w, h.log, err)
		return
	}

	if req.Username == "" || req.Password == "" {
		writeJSON(w, h.log, http.StatusBadRequest, models.ErrorResponse{
			Code:    CodeInvalidRequest,
			Message: "Имя пользователя и пароль не могут быть пустыми",
		})
		return
	}

	token, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, models.LoginResponse{Token: token, Address: user.Address})
}
