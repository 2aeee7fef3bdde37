package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/middleware"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/services"
)

// VaultHandler обрабатывает HTTP-запросы, связанные с хранилищем.
type VaultHandler struct {
	vaultService     services.VaultService
	statementService services.StatementService
	log              *logger.Logger
}

// NewVaultHandler создает новый экземпляр VaultHandler.
func NewVaultHandler(vs services.VaultService, ss services.StatementService, log *logger.Logger) *VaultHandler {
	return &VaultHandler{vaultService: vs, statementService: ss, log: log.Module("handlers.vault")}
}

// caller извлекает адрес аутентифицированного пользователя. Если адреса нет,
// отвечает ошибкой и возвращает false.
func (h *VaultHandler) caller(w http.ResponseWriter, r *http.Request) (address.Address, bool) {
	addr, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		h.log.Error("не удалось получить адрес пользователя из контекста", "path", r.URL.Path)
		writeError(w, h.log, errors.New("адрес пользователя не найден в контексте"))
		return address.Zero, false
	}
	return addr, true
}

// Initialize обрабатывает POST запрос на создание хранилища.
func (h *VaultHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.InitializeVaultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	v, err := h.vaultService.Initialize(r.Context(), caller, req.Mint)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, v)
}

// Status обрабатывает GET запрос на получение состояния хранилища.
func (h *VaultHandler) Status(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	status, err := h.vaultService.Status(r.Context(), caller)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, status)
}

// Deposit обрабатывает POST запрос на пополнение хранилища.
func (h *VaultHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	transfer, err := h.vaultService.Deposit(r.Context(), caller, req.Source, req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, transfer)
}

// Lock обрабатывает POST запрос на блокировку хранилища.
func (h *VaultHandler) Lock(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.LockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	v, err := h.vaultService.Lock(r.Context(), caller, req.UnlockTimestamp)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, v)
}

// Unlock обрабатывает POST запрос на снятие блокировки.
func (h *VaultHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	v, err := h.vaultService.Unlock(r.Context(), caller)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, v)
}

// Withdraw обрабатывает POST запрос на вывод средств.
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.WithdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	transfer, err := h.vaultService.Withdraw(r.Context(), caller, req.Destination, req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, transfer)
}

// History обрабатывает GET запрос на получение журнала движений.
// Некорректные limit и offset заменяются значениями по умолчанию.
func (h *VaultHandler) History(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.vaultService.History(r.Context(), caller, limit, offset)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, page)
}

// CreateStatement обрабатывает POST запрос на архивирование выписки.
func (h *VaultHandler) CreateStatement(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	resp, err := h.statementService.Create(r.Context(), caller)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusCreated, resp)
}

// GetStatement обрабатывает GET запрос на скачивание выписки.
func (h *VaultHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, services.ErrStatementNotFound)
		return
	}

	reader, err := h.statementService.Get(r.Context(), caller, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			h.log.Warn("ошибка закрытия выписки", "err", closeErr)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err = io.Copy(w, reader); err != nil {
		h.log.Warn("ошибка отправки выписки", "id", id, "err", err)
	}
}
