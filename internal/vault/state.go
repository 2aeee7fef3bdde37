package vault

import (
	"time"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/models"
)

// State - состояние блокировки хранилища.
type State uint8

// Состояния хранилища.
const (
	StateUnlocked State = iota
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateUnlocked:
		return "unlocked"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// StateOf возвращает состояние записи хранилища.
func StateOf(v *models.Vault) State {
	if v.IsLocked {
		return StateLocked
	}
	return StateUnlocked
}

// Handle указывает хранилище и аутентифицированного вызывающего.
// Подлинность Caller гарантирует вызывающая сторона (JWT, CLI-ключ).
type Handle struct {
	Vault  address.Address
	Caller address.Address
}

// NewHandle создает Handle.
func NewHandle(vault, caller address.Address) Handle {
	return Handle{Vault: vault, Caller: caller}
}

// Status - снимок хранилища на момент CheckedAt.
type Status struct {
	Vault   models.Vault
	State   State
	Balance uint64
	Mint    models.Mint
	// Withdrawable сообщает, разрешил бы Withdraw вывод в момент CheckedAt.
	Withdrawable bool
	CheckedAt    time.Time
}

// withdrawable - правило вывода: блокировки нет или ее срок наступил.
func withdrawable(v *models.Vault, now int64) bool {
	return !v.IsLocked || now >= v.UnlockTimestamp
}
