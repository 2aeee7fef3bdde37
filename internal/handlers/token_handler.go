package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/middleware"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/services"
)

// TokenHandler обрабатывает HTTP-запросы к выпускам и личным счетам.
type TokenHandler struct {
	tokenService services.TokenService
	log          *logger.Logger
}

// NewTokenHandler создает новый экземпляр TokenHandler.
func NewTokenHandler(ts services.TokenService, log *logger.Logger) *TokenHandler {
	return &TokenHandler{tokenService: ts, log: log.Module("handlers.tokens")}
}

// mintParam разбирает адрес выпуска из пути запроса.
func mintParam(r *http.Request) (address.Address, error) {
	mint, err := address.Parse(chi.URLParam(r, "mint"))
	if err != nil {
		return address.Zero, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return mint, nil
}

// GetMint обрабатывает GET запрос на получение выпуска.
func (h *TokenHandler) GetMint(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	m, err := h.tokenService.GetMint(r.Context(), mint)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, m)
}

// Balance обрабатывает GET запрос на получение баланса личного счета вызывающего.
func (h *TokenHandler) Balance(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		writeError(w, h.log, errors.New("адрес пользователя не найден в контексте"))
		return
	}
	mint, err := mintParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	balance, err := h.tokenService.Balance(r.Context(), owner, mint)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, balance)
}

// CreateMint обрабатывает POST запрос на создание выпуска. Только для администраторов.
func (h *TokenHandler) CreateMint(w http.ResponseWriter, r *http.Request) {
	authority, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		writeError(w, h.log, services.ErrForbidden)
		return
	}

	var req models.CreateMintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	m, err := h.tokenService.CreateMint(r.Context(), authority, req.Symbol, req.Decimals)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.log.Info("создан выпуск", "symbol", m.Symbol, "mint", m.Address)
	writeJSON(w, h.log, http.StatusCreated, m)
}

// MintTo обрабатывает POST запрос на выпуск единиц. Только для authority выпуска.
func (h *TokenHandler) MintTo(w http.ResponseWriter, r *http.Request) {
	authority, ok := middleware.GetAddressFromContext(r.Context())
	if !ok {
		writeError(w, h.log, services.ErrForbidden)
		return
	}
	mint, err := mintParam(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req models.MintToRequest
	if err = decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	transfer, err := h.tokenService.MintTo(r.Context(), authority, mint, req.Owner, req.Amount)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, http.StatusOK, transfer)
}
