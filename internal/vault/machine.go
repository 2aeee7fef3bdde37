package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/clock"
	"github.com/maynagashev/tokenvault/internal/ledger"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/metrics"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
)

// Ограничения выборки журнала.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Названия операций для журнала и метрик.
const (
	opInitialize = "initialize"
	opDeposit    = "deposit"
	opLock       = "lock"
	opUnlock     = "unlock"
	opWithdraw   = "withdraw"
	opStatus     = "status"
	opHistory    = "history"
)

// Machine выполняет операции над хранилищами.
type Machine struct {
	store   repository.Store
	deriver *address.Deriver
	clock   clock.Clock
	log     *logger.Logger
	metrics *metrics.VaultMetrics
}

// NewMachine создает машину состояний. metrics может быть nil.
func NewMachine(
	store repository.Store,
	deriver *address.Deriver,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.VaultMetrics,
) *Machine {
	return &Machine{
		store:   store,
		deriver: deriver,
		clock:   clk,
		log:     log.Module("vault"),
		metrics: m,
	}
}

// VaultAddress возвращает адрес хранилища владельца authority.
func (m *Machine) VaultAddress(authority address.Address) (address.Address, error) {
	der, err := m.deriver.Vault(authority)
	if err != nil {
		return address.Zero, fmt.Errorf("ошибка деривации адреса хранилища: %w", err)
	}
	return der.Address, nil
}

// InitializeVault создает хранилище владельца authority для выпуска mint:
// выводит адреса, открывает кастодиальный счет на производное полномочие и
// сохраняет запись в состоянии Unlocked с нулевым балансом.
func (m *Machine) InitializeVault(
	ctx context.Context,
	authority, mint address.Address,
) (*models.Vault, error) {
	if authority.IsZero() || mint.IsZero() {
		return nil, m.record(opInitialize, ErrInvalidAccount)
	}

	vaultDer, err := m.deriver.Vault(authority)
	if err != nil {
		return nil, m.record(opInitialize, fmt.Errorf("ошибка деривации адреса хранилища: %w", err))
	}
	authorityDer, err := m.deriver.VaultAuthority(vaultDer.Address)
	if err != nil {
		return nil, m.record(opInitialize, fmt.Errorf("ошибка деривации полномочия: %w", err))
	}
	custodyDer, err := m.deriver.Custody(vaultDer.Address)
	if err != nil {
		return nil, m.record(opInitialize, fmt.Errorf("ошибка деривации кастодиального счета: %w", err))
	}

	vault := &models.Vault{
		Address:       vaultDer.Address,
		Authority:     authority,
		TokenAccount:  custodyDer.Address,
		Mint:          mint,
		Bump:          vaultDer.Bump,
		AuthorityBump: authorityDer.Bump,
	}

	err = m.run(ctx, opInitialize, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.GetVault(ctx, vault.Address)
		switch {
		case err == nil:
			return ErrAlreadyInitialized
		case !errors.Is(err, repository.ErrVaultNotFound):
			return fmt.Errorf("ошибка чтения хранилища: %w", err)
		}

		if _, err = ledger.InitializeAccount(ctx, tx, custodyDer.Address, mint, authorityDer.Address); err != nil {
			switch {
			case errors.Is(err, ledger.ErrMintNotFound):
				return ErrInvalidAccount
			case errors.Is(err, ledger.ErrAccountExists):
				return ErrAlreadyInitialized
			default:
				return fmt.Errorf("ошибка открытия кастодиального счета: %w", err)
			}
		}

		if err = tx.CreateVault(ctx, vault); err != nil {
			if errors.Is(err, repository.ErrVaultExists) {
				return ErrAlreadyInitialized
			}
			return fmt.Errorf("ошибка создания хранилища: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("хранилище создано",
		"vault", vault.Address, "authority", authority, "mint", mint, "custody", vault.TokenAccount)
	return vault, nil
}

// Deposit переводит amount единиц со счета source вызывающего в хранилище.
// Нулевой source означает личный счет вызывающего для выпуска хранилища.
// Пополнение разрешено и в заблокированном состоянии.
func (m *Machine) Deposit(
	ctx context.Context,
	h Handle,
	source address.Address,
	amount uint64,
) (*models.Transfer, error) {
	var journal *models.Transfer
	err := m.run(ctx, opDeposit, func(ctx context.Context, tx repository.Tx) error {
		vault, err := m.requireHandle(ctx, tx, h)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		if source.IsZero() {
			if source, err = m.personalAccount(h.Caller, vault.Mint); err != nil {
				return err
			}
		}

		journal, err = ledger.Transfer(ctx, tx, models.TransferDeposit,
			source, vault.TokenAccount, amount, ledger.Identity(h.Caller))
		return mapLedgerError(err, ErrInsufficientFunds)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("хранилище пополнено", "vault", h.Vault, "source", source, "amount", amount)
	return journal, nil
}

// LockVault блокирует хранилище до unlockTimestamp (секунды Unix).
// Срок должен быть строго в будущем. Повторная блокировка заменяет срок.
func (m *Machine) LockVault(ctx context.Context, h Handle, unlockTimestamp int64) (*models.Vault, error) {
	now := m.clock.Now().Unix()

	var vault *models.Vault
	err := m.run(ctx, opLock, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if vault, err = m.requireHandle(ctx, tx, h); err != nil {
			return err
		}
		if unlockTimestamp <= now {
			return ErrInvalidLockTime
		}
		if err = tx.UpdateVaultLock(ctx, vault.Address, true, unlockTimestamp); err != nil {
			return fmt.Errorf("ошибка сохранения блокировки: %w", err)
		}
		vault.IsLocked = true
		vault.UnlockTimestamp = unlockTimestamp
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("хранилище заблокировано", "vault", h.Vault, "unlock_timestamp", unlockTimestamp)
	return vault, nil
}

// UnlockVault снимает блокировку, если ее срок наступил, и сбрасывает срок в 0.
// Для незаблокированного хранилища ничего не меняет.
func (m *Machine) UnlockVault(ctx context.Context, h Handle) (*models.Vault, error) {
	now := m.clock.Now().Unix()

	var (
		vault   *models.Vault
		changed bool
	)
	err := m.run(ctx, opUnlock, func(ctx context.Context, tx repository.Tx) error {
		var err error
		if vault, err = m.requireHandle(ctx, tx, h); err != nil {
			return err
		}
		if !vault.IsLocked {
			return nil
		}
		if now < vault.UnlockTimestamp {
			return ErrStillLocked
		}
		if err = tx.UpdateVaultLock(ctx, vault.Address, false, 0); err != nil {
			return fmt.Errorf("ошибка снятия блокировки: %w", err)
		}
		vault.IsLocked = false
		vault.UnlockTimestamp = 0
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		m.log.Info("хранилище разблокировано", "vault", h.Vault)
	}
	return vault, nil
}

// Withdraw переводит amount единиц из хранилища на счет destination.
// Нулевой destination означает личный счет вызывающего. Перевод подписывает
// производное полномочие хранилища. Флаг блокировки не меняется.
func (m *Machine) Withdraw(
	ctx context.Context,
	h Handle,
	destination address.Address,
	amount uint64,
) (*models.Transfer, error) {
	now := m.clock.Now().Unix()

	var journal *models.Transfer
	err := m.run(ctx, opWithdraw, func(ctx context.Context, tx repository.Tx) error {
		vault, err := m.requireHandle(ctx, tx, h)
		if err != nil {
			return err
		}
		if !withdrawable(vault, now) {
			return ErrStillLocked
		}
		if amount == 0 {
			return ErrInvalidAmount
		}
		if destination.IsZero() {
			if destination, err = m.personalAccount(h.Caller, vault.Mint); err != nil {
				return err
			}
		}

		custody, err := ledger.GetAccount(ctx, tx, vault.TokenAccount)
		if err != nil {
			return mapLedgerError(err, ErrInsufficientVaultBalance)
		}
		if custody.Amount < amount {
			return ErrInsufficientVaultBalance
		}

		signer, err := m.vaultAuthority(vault)
		if err != nil {
			return err
		}
		journal, err = ledger.Transfer(ctx, tx, models.TransferWithdraw,
			vault.TokenAccount, destination, amount, signer)
		return mapLedgerError(err, ErrInsufficientVaultBalance)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("средства выведены", "vault", h.Vault, "destination", destination, "amount", amount)
	return journal, nil
}

// Status возвращает снимок хранилища: запись, состояние, баланс и признак
// того, что вывод сейчас разрешен.
func (m *Machine) Status(ctx context.Context, h Handle) (*Status, error) {
	now := m.clock.Now()

	var status *Status
	err := m.run(ctx, opStatus, func(ctx context.Context, tx repository.Tx) error {
		vault, err := m.requireHandle(ctx, tx, h)
		if err != nil {
			return err
		}
		custody, err := ledger.GetAccount(ctx, tx, vault.TokenAccount)
		if err != nil {
			return fmt.Errorf("ошибка чтения кастодиального счета: %w", err)
		}
		mint, err := ledger.GetMint(ctx, tx, vault.Mint)
		if err != nil {
			return fmt.Errorf("ошибка чтения выпуска: %w", err)
		}

		status = &Status{
			Vault:        *vault,
			State:        StateOf(vault),
			Balance:      custody.Amount,
			Mint:         *mint,
			Withdrawable: withdrawable(vault, now.Unix()),
			CheckedAt:    now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// History возвращает движения по кастодиальному счету, сначала новые.
// limit <= 0 заменяется на DefaultHistoryLimit, сверху ограничен MaxHistoryLimit.
func (m *Machine) History(ctx context.Context, h Handle, limit, offset int) ([]models.Transfer, error) {
	limit, offset = NormalizePage(limit, offset)

	var custody address.Address
	err := m.run(ctx, opHistory, func(ctx context.Context, tx repository.Tx) error {
		vault, err := m.requireHandle(ctx, tx, h)
		if err != nil {
			return err
		}
		custody = vault.TokenAccount
		return nil
	})
	if err != nil {
		return nil, err
	}

	transfers, err := m.store.ListTransfersByAccount(ctx, custody, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала: %w", err)
	}
	return transfers, nil
}

// NormalizePage приводит параметры выборки журнала к допустимым значениям.
func NormalizePage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// requireHandle загружает хранилище и проверяет, что запись подлинная и
// вызывающий - ее владелец.
func (m *Machine) requireHandle(ctx context.Context, tx repository.Tx, h Handle) (*models.Vault, error) {
	vault, err := tx.GetVault(ctx, h.Vault)
	if err != nil {
		if errors.Is(err, repository.ErrVaultNotFound) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("ошибка чтения хранилища: %w", err)
	}

	if !m.deriver.Verify(vault.Address, vault.Bump, address.KindVault, vault.Authority.Bytes()) {
		return nil, ErrInvalidAccount
	}
	custody, err := m.deriver.Custody(vault.Address)
	if err != nil || custody.Address != vault.TokenAccount {
		return nil, ErrInvalidAccount
	}

	if h.Caller != vault.Authority {
		return nil, ErrUnauthorized
	}
	return vault, nil
}

func (m *Machine) personalAccount(owner, mint address.Address) (address.Address, error) {
	der, err := m.deriver.TokenAccount(owner, mint)
	if err != nil {
		return address.Zero, fmt.Errorf("ошибка деривации личного счета: %w", err)
	}
	return der.Address, nil
}

// run выполняет fn единицей работы, учитывая длительность и результат.
func (m *Machine) run(ctx context.Context, op string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.metrics != nil {
		defer m.metrics.Timer(op).ObserveDuration()
	}
	start := time.Now()
	err := m.store.WithinTx(ctx, fn)
	m.log.Debug("операция выполнена", "op", op, "took", time.Since(start), "code", Code(err))
	return m.record(op, err)
}

// record учитывает результат операции и возвращает err без изменений.
func (m *Machine) record(op string, err error) error {
	result := "ok"
	if err != nil {
		result = Code(err)
		if result == CodeInternal {
			m.log.Error("ошибка операции", "op", op, "err", err)
		}
	}
	if m.metrics != nil {
		m.metrics.Operation(op, result).Inc()
	}
	return err
}

// mapLedgerError переводит ошибки учета в ошибки хранилища. insufficient -
// ошибка, которой отвечать на нехватку средств на счете списания.
func mapLedgerError(err, insufficient error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return insufficient
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrAmountOverflow):
		return ErrInvalidAmount
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrOwnerMismatch),
		errors.Is(err, ledger.ErrMintMismatch),
		errors.Is(err, ledger.ErrSelfTransfer):
		return ErrInvalidAccount
	default:
		return fmt.Errorf("ошибка перевода: %w", err)
	}
}
