package repository

import (
	"context"
	"errors"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/models"
)

// Tx - набор операций над записями внутри одной единицы работы.
// Все изменения, сделанные через Tx, применяются атомарно или не применяются вовсе.
// Чтения в Tx блокируют запись до конца единицы работы (SELECT ... FOR UPDATE).
type Tx interface {
	GetVault(ctx context.Context, addr address.Address) (*models.Vault, error)
	CreateVault(ctx context.Context, vault *models.Vault) error
	UpdateVaultLock(ctx context.Context, addr address.Address, isLocked bool, unlockTimestamp int64) error

	GetMint(ctx context.Context, addr address.Address) (*models.Mint, error)
	CreateMint(ctx context.Context, mint *models.Mint) error
	UpdateMintSupply(ctx context.Context, addr address.Address, supply uint64) error

	GetTokenAccount(ctx context.Context, addr address.Address) (*models.TokenAccount, error)
	CreateTokenAccount(ctx context.Context, account *models.TokenAccount) error
	UpdateTokenAccountAmount(ctx context.Context, addr address.Address, amount uint64) error

	AppendTransfer(ctx context.Context, transfer *models.Transfer) error
}

// Store выполняет единицы работы и отдает журнал движений на чтение.
type Store interface {
	// WithinTx выполняет fn в одной транзакции. Если fn вернула ошибку,
	// ни одно изменение не применяется.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// ListTransfersByAccount возвращает движения по счету, сначала новые.
	ListTransfersByAccount(ctx context.Context, account address.Address, limit, offset int) ([]models.Transfer, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// Кастомные ошибки репозитория.
var (
	ErrVaultNotFound        = errors.New("хранилище не найдено")
	ErrVaultExists          = errors.New("хранилище уже существует")
	ErrMintNotFound         = errors.New("выпуск не найден")
	ErrMintExists           = errors.New("выпуск уже существует")
	ErrTokenAccountNotFound = errors.New("счет не найден")
	ErrTokenAccountExists   = errors.New("счет уже существует")
)
