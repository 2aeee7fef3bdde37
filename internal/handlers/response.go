package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/services"
	"github.com/maynagashev/tokenvault/internal/vault"
)

// Коды ошибок уровня HTTP и сервисов. Коды ошибок хранилища берутся из vault.Code.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUsernameTaken      = "username_taken"
	CodeMintNotFound       = "mint_not_found"
	CodeMintExists         = "mint_exists"
	CodeInvalidMintParams  = "invalid_mint_params"
	CodeForbidden          = "forbidden"
	CodeStatementNotFound  = "statement_not_found"
)

// errBadRequest - ошибка разбора запроса.
var errBadRequest = errors.New("неверный формат запроса")

// serviceErrors сопоставляет ошибки сервисов кодам и статусам.
var serviceErrors = []struct {
	err    error
	code   string
	status int
}{
	{errBadRequest, CodeInvalidRequest, http.StatusBadRequest},
	{services.ErrInvalidCredentials, CodeInvalidCredentials, http.StatusUnauthorized},
	{services.ErrUsernameTaken, CodeUsernameTaken, http.StatusConflict},
	{services.ErrMintNotFound, CodeMintNotFound, http.StatusNotFound},
	{services.ErrMintExists, CodeMintExists, http.StatusConflict},
	{services.ErrInvalidMintParams, CodeInvalidMintParams, http.StatusBadRequest},
	{services.ErrForbidden, CodeForbidden, http.StatusForbidden},
	{services.ErrStatementNotFound, CodeStatementNotFound, http.StatusNotFound},
}

// vaultStatuses - HTTP-статусы ошибок хранилища по их кодам.
var vaultStatuses = map[string]int{
	"already_initialized":        http.StatusConflict,
	"unauthorized":               http.StatusForbidden,
	"invalid_lock_time":          http.StatusUnprocessableEntity,
	"still_locked":               http.StatusLocked,
	"insufficient_funds":         http.StatusUnprocessableEntity,
	"insufficient_vault_balance": http.StatusUnprocessableEntity,
	"invalid_amount":             http.StatusBadRequest,
	"invalid_account":            http.StatusBadRequest,
	"vault_not_found":            http.StatusNotFound,
}

// ErrorStatus возвращает HTTP-статус и код ответа для ошибки.
func ErrorStatus(err error) (int, string) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			return se.status, se.code
		}
	}
	code := vault.Code(err)
	if status, ok := vaultStatuses[code]; ok {
		return status, code
	}
	return http.StatusInternalServerError, vault.CodeInternal
}

// writeError отправляет ошибку в виде JSON. Текст внутренних ошибок не раскрывается.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, code := ErrorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("внутренняя ошибка сервера", "err", err)
		message = "Внутренняя ошибка сервера"
	}
	writeJSON(w, log, status, models.ErrorResponse{Code: code, Message: message})
}

// writeJSON отправляет v в виде JSON со статусом status.
func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Клиент уже получил статус, сложно что-то изменить
		log.Warn("ошибка кодирования ответа", "err", err)
	}
}

// decodeJSON разбирает тело запроса в v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
