package models

import (
	"time"

	"github.com/maynagashev/tokenvault/internal/address"
)

// Vault представляет запись хранилища одного владельца.
// Баланс в записи не хранится: он читается с кастодиального счета TokenAccount.
// UnlockTimestamp имеет смысл только при IsLocked == true.
type Vault struct {
	Address         address.Address `db:"address" json:"address"`
	Authority       address.Address `db:"authority" json:"authority"`
	TokenAccount    address.Address `db:"token_account" json:"token_account"`
	Mint            address.Address `db:"mint" json:"mint"`
	Bump            uint8           `db:"bump" json:"bump"`                     // соль деривации адреса хранилища
	AuthorityBump   uint8           `db:"authority_bump" json:"authority_bump"` // соль деривации полномочия
	IsLocked        bool            `db:"is_locked" json:"is_locked"`
	UnlockTimestamp int64           `db:"unlock_timestamp" json:"unlock_timestamp"` // секунды Unix
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
