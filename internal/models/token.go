package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/tokenvault/internal/address"
)

// Mint описывает выпуск взаимозаменяемого токена.
type Mint struct {
	Address   address.Address `db:"address" json:"address"`
	Symbol    string          `db:"symbol" json:"symbol"`
	Decimals  uint8           `db:"decimals" json:"decimals"`
	Authority address.Address `db:"authority" json:"authority"` // кто может выпускать новые единицы
	Supply    uint64          `db:"supply" json:"supply"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TokenAccount - счет в единицах одного выпуска. Списывать с него может только Owner.
type TokenAccount struct {
	Address   address.Address `db:"address" json:"address"`
	Mint      address.Address `db:"mint" json:"mint"`
	Owner     address.Address `db:"owner" json:"owner"`
	Amount    uint64          `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TransferKind - вид движения средств в журнале.
type TransferKind string

// Виды движений.
const (
	TransferDeposit  TransferKind = "deposit"
	TransferWithdraw TransferKind = "withdraw"
	TransferMint     TransferKind = "mint"
	TransferPlain    TransferKind = "transfer"
)

// Transfer - запись журнала движений. Журнал только дополняется.
// Для выпуска From содержит адрес выпуска.
type Transfer struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Kind       TransferKind    `db:"kind" json:"kind"`
	From       address.Address `db:"from_account" json:"from"`
	To         address.Address `db:"to_account" json:"to"`
	Mint       address.Address `db:"mint" json:"mint"`
	Amount     uint64          `db:"amount" json:"amount"`
	Authorizer address.Address `db:"authorizer" json:"authorizer"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
