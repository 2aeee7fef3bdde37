package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/tokenvault/internal/address"
)

// InitializeVaultRequest - тело запроса на создание хранилища.
type InitializeVaultRequest struct {
	Mint address.Address `json:"mint"`
}

// DepositRequest - тело запроса на пополнение. Source необязателен:
// по умолчанию используется личный счет вызывающего для выпуска хранилища.
type DepositRequest struct {
	Amount int64            `json:"amount"`
	Source *address.Address `json:"source,omitempty"`
}

// WithdrawRequest - тело запроса на вывод. Destination необязателен.
type WithdrawRequest struct {
	Amount      int64            `json:"amount"`
	Destination *address.Address `json:"destination,omitempty"`
}

// LockRequest - тело запроса на блокировку.
type LockRequest struct {
	UnlockTimestamp int64 `json:"unlock_timestamp"`
}

// VaultStatusResponse - состояние хранилища вместе с балансом.
type VaultStatusResponse struct {
	Vault        Vault  `json:"vault"`
	State        string `json:"state"`
	Balance      uint64 `json:"balance"`
	UIBalance    string `json:"ui_balance"`
	Symbol       string `json:"symbol"`
	Decimals     uint8  `json:"decimals"`
	Withdrawable bool   `json:"withdrawable"`
	CheckedAt    int64  `json:"checked_at"`
}

// TransferListResponse - страница журнала движений.
type TransferListResponse struct {
	Transfers []Transfer `json:"transfers"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
}

// CreateMintRequest - тело запроса на создание выпуска.
type CreateMintRequest struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// MintToRequest - тело запроса на выпуск единиц на личный счет владельца.
type MintToRequest struct {
	Owner  address.Address `json:"owner"`
	Amount int64           `json:"amount"`
}

// BalanceResponse - баланс счета.
type BalanceResponse struct {
	Account  address.Address `json:"account"`
	Mint     address.Address `json:"mint"`
	Owner    address.Address `json:"owner"`
	Amount   uint64          `json:"amount"`
	UIAmount string          `json:"ui_amount"`
}

// Statement - выписка по хранилищу, архивируемая в объектное хранилище.
type Statement struct {
	Status      VaultStatusResponse `json:"status"`
	Transfers   []Transfer          `json:"transfers"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// StatementResponse - ссылка на архивированную выписку.
type StatementResponse struct {
	ID  uuid.UUID `json:"id"`
	Key string    `json:"key"`
}

// ErrorResponse - тело ответа с ошибкой.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
