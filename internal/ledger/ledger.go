// Package ledger реализует учет взаимозаменяемых токенов: выпуски, счета и
// атомарный перевод единиц между счетами. Все функции работают внутри единицы
// работы репозитория и ничего не меняют, если вернули ошибку.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
)

// MaxAmount - верхняя граница баланса и эмиссии: значения хранятся в BIGINT.
const MaxAmount uint64 = math.MaxInt64

// Ошибки учета.
var (
	ErrInvalidAmount     = errors.New("сумма должна быть положительной")
	ErrInsufficientFunds = errors.New("недостаточно средств на счете")
	ErrAmountOverflow    = errors.New("превышен максимальный баланс")
	ErrAccountNotFound   = errors.New("счет не найден")
	ErrAccountExists     = errors.New("счет уже существует")
	ErrMintNotFound      = errors.New("выпуск не найден")
	ErrMintExists        = errors.New("выпуск уже существует")
	ErrOwnerMismatch     = errors.New("подписант не владеет счетом")
	ErrMintMismatch      = errors.New("счета относятся к разным выпускам")
	ErrMintAuthority     = errors.New("подписант не может выпускать этот токен")
	ErrSelfTransfer      = errors.New("перевод на тот же счет")
	ErrInvalidDecimals   = errors.New("недопустимое количество знаков после запятой")
)

// MaxDecimals - максимальная точность выпуска.
const MaxDecimals = 18

// Signer - тот, кто разрешает списание. Вызывающая сторона отвечает за то,
// что подписант действительно аутентифицирован.
type Signer interface {
	SignerAddress() address.Address
}

// Identity - подписант-личность (аутентифицированный пользователь).
type Identity address.Address

// SignerAddress реализует Signer.
func (i Identity) SignerAddress() address.Address {
	return address.Address(i)
}

// CreateMint регистрирует новый выпуск с нулевой эмиссией.
func CreateMint(ctx context.Context, tx repository.Tx, mint *models.Mint) error {
	if mint.Decimals > MaxDecimals {
		return ErrInvalidDecimals
	}
	mint.Supply = 0
	if err := tx.CreateMint(ctx, mint); err != nil {
		if errors.Is(err, repository.ErrMintExists) {
			return ErrMintExists
		}
		return fmt.Errorf("ошибка создания выпуска: %w", err)
	}
	return nil
}

// InitializeAccount открывает пустой счет addr в выпуске mint, владелец owner.
func InitializeAccount(
	ctx context.Context,
	tx repository.Tx,
	addr, mint, owner address.Address,
) (*models.TokenAccount, error) {
	if _, err := getMint(ctx, tx, mint); err != nil {
		return nil, err
	}

	account := &models.TokenAccount{Address: addr, Mint: mint, Owner: owner}
	if err := tx.CreateTokenAccount(ctx, account); err != nil {
		if errors.Is(err, repository.ErrTokenAccountExists) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("ошибка открытия счета: %w", err)
	}
	return account, nil
}

// GetAccount возвращает счет по адресу.
func GetAccount(ctx context.Context, tx repository.Tx, addr address.Address) (*models.TokenAccount, error) {
	account, err := tx.GetTokenAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrTokenAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("ошибка чтения счета: %w", err)
	}
	return account, nil
}

// GetMint возвращает выпуск по адресу.
func GetMint(ctx context.Context, tx repository.Tx, addr address.Address) (*models.Mint, error) {
	return getMint(ctx, tx, addr)
}

// Transfer переводит amount единиц со счета from на счет to.
// Подписант должен владеть счетом from; оба счета должны быть одного выпуска.
func Transfer(
	ctx context.Context,
	tx repository.Tx,
	kind models.TransferKind,
	from, to address.Address,
	amount uint64,
	signer Signer,
) (*models.Transfer, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSelfTransfer
	}

	source, err := GetAccount(ctx, tx, from)
	if err != nil {
		return nil, err
	}
	destination, err := GetAccount(ctx, tx, to)
	if err != nil {
		return nil, err
	}
	if source.Owner != signer.SignerAddress() {
		return nil, ErrOwnerMismatch
	}
	if source.Mint != destination.Mint {
		return nil, ErrMintMismatch
	}
	if source.Amount < amount {
		return nil, ErrInsufficientFunds
	}
	if destination.Amount > MaxAmount-amount {
		return nil, ErrAmountOverflow
	}

	if err = tx.UpdateTokenAccountAmount(ctx, from, source.Amount-amount); err != nil {
		return nil, fmt.Errorf("ошибка списания: %w", err)
	}
	if err = tx.UpdateTokenAccountAmount(ctx, to, destination.Amount+amount); err != nil {
		return nil, fmt.Errorf("ошибка зачисления: %w", err)
	}

	return appendTransfer(ctx, tx, &models.Transfer{
		Kind:       kind,
		From:       from,
		To:         to,
		Mint:       source.Mint,
		Amount:     amount,
		Authorizer: signer.SignerAddress(),
	})
}

// MintTo выпускает amount новых единиц на счет to. Подписант должен быть
// authority выпуска.
func MintTo(
	ctx context.Context,
	tx repository.Tx,
	mintAddr, to address.Address,
	amount uint64,
	signer Signer,
) (*models.Transfer, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	mint, err := getMint(ctx, tx, mintAddr)
	if err != nil {
		return nil, err
	}
	if mint.Authority != signer.SignerAddress() {
		return nil, ErrMintAuthority
	}
	destination, err := GetAccount(ctx, tx, to)
	if err != nil {
		return nil, err
	}
	if destination.Mint != mintAddr {
		return nil, ErrMintMismatch
	}
	if mint.Supply > MaxAmount-amount || destination.Amount > MaxAmount-amount {
		return nil, ErrAmountOverflow
	}

	if err = tx.UpdateMintSupply(ctx, mintAddr, mint.Supply+amount); err != nil {
		return nil, fmt.Errorf("ошибка обновления эмиссии: %w", err)
	}
	if err = tx.UpdateTokenAccountAmount(ctx, to, destination.Amount+amount); err != nil {
		return nil, fmt.Errorf("ошибка зачисления: %w", err)
	}

	return appendTransfer(ctx, tx, &models.Transfer{
		Kind:       models.TransferMint,
		From:       mintAddr,
		To:         to,
		Mint:       mintAddr,
		Amount:     amount,
		Authorizer: signer.SignerAddress(),
	})
}

func getMint(ctx context.Context, tx repository.Tx, addr address.Address) (*models.Mint, error) {
	mint, err := tx.GetMint(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrMintNotFound) {
			return nil, ErrMintNotFound
		}
		return nil, fmt.Errorf("ошибка чтения выпуска: %w", err)
	}
	return mint, nil
}

func appendTransfer(ctx context.Context, tx repository.Tx, t *models.Transfer) (*models.Transfer, error) {
	t.ID = uuid.New()
	if err := tx.AppendTransfer(ctx, t); err != nil {
		return nil, fmt.Errorf("ошибка записи в журнал: %w", err)
	}
	return t, nil
}
