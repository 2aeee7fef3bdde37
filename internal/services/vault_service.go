package services

import (
	"context"
	"fmt"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/ledger"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/vault"
)

// VaultService определяет интерфейс для сервиса работы с хранилищами.
// Каждый пользователь владеет не более чем одним хранилищем, его адрес
// выводится из адреса пользователя. Ошибки бизнес-правил возвращаются как
// ошибки пакета vault.
type VaultService interface {
	Initialize(ctx context.Context, caller, mint address.Address) (*models.Vault, error)
	// Deposit пополняет хранилище. source == nil - личный счет вызывающего.
	Deposit(ctx context.Context, caller address.Address, source *address.Address, amount int64) (*models.Transfer, error)
	Lock(ctx context.Context, caller address.Address, unlockTimestamp int64) (*models.Vault, error)
	Unlock(ctx context.Context, caller address.Address) (*models.Vault, error)
	// Withdraw выводит средства. destination == nil - личный счет вызывающего.
	Withdraw(
		ctx context.Context,
		caller address.Address,
		destination *address.Address,
		amount int64,
	) (*models.Transfer, error)
	Status(ctx context.Context, caller address.Address) (*models.VaultStatusResponse, error)
	History(ctx context.Context, caller address.Address, limit, offset int) (*models.TransferListResponse, error)
}

var _ VaultService = (*vaultService)(nil) // Проверка соответствия интерфейсу

type vaultService struct {
	machine *vault.Machine
	log     *logger.Logger
}

// NewVaultService создает новый экземпляр сервиса хранилищ.
func NewVaultService(machine *vault.Machine, log *logger.Logger) VaultService {
	return &vaultService{machine: machine, log: log.Module("services.vault")}
}

// Initialize создает хранилище вызывающего для выпуска mint.
func (s *vaultService) Initialize(ctx context.Context, caller, mint address.Address) (*models.Vault, error) {
	return s.machine.InitializeVault(ctx, caller, mint)
}

// Deposit реализует VaultService.
func (s *vaultService) Deposit(
	ctx context.Context,
	caller address.Address,
	source *address.Address,
	amount int64,
) (*models.Transfer, error) {
	h, err := s.handle(caller)
	if err != nil {
		return nil, err
	}
	return s.machine.Deposit(ctx, h, optional(source), toUnits(amount))
}

// Lock реализует VaultService.
func (s *vaultService) Lock(
	ctx context.Context,
	caller address.Address,
	unlockTimestamp int64,
) (*models.Vault, error) {
	h, err := s.handle(caller)
	if err != nil {
		return nil, err
	}
	return s.machine.LockVault(ctx, h, unlockTimestamp)
}

// Unlock реализует VaultService.
func (s *vaultService) Unlock(ctx context.Context, caller address.Address) (*models.Vault, error) {
	h, err := s.handle(caller)
	if err != nil {
		return nil, err
	}
	return s.machine.UnlockVault(ctx, h)
}

// Withdraw реализует VaultService.
func (s *vaultService) Withdraw(
	ctx context.Context,
	caller address.Address,
	destination *address.Address,
	amount int64,
) (*models.Transfer, error) {
	h, err := s.handle(caller)
	if err != nil {
		return nil, err
	}
	return s.machine.Withdraw(ctx, h, optional(destination), toUnits(amount))
}

// Status реализует VaultService.
func (s *vaultService) Status(ctx context.Context, caller address.Address) (*models.VaultStatusResponse, error) {
	h, err := s.handle(caller)
	if err != nil {
		return nil, err
	}
	status, err := s.machine.Status(ctx, h)
	if err != nil {
		return nil, err
	}
	resp := statusResponse(status)
	return &resp, nil
}

// History реализует VaultService.
func (s *vaultService) History(
	ctx context.Context,
	caller address.Address,
	limit, offset int,
) (*models.TransferListResponse, error) {
	h, err := s.handle(caller)
	if err != nil {
		return nil, err
	}
	limit, offset = vault.NormalizePage(limit, offset)
	transfers, err := s.machine.History(ctx, h, limit, offset)
	if err != nil {
		return nil, err
	}
	s.log.Debug("получен журнал", "vault", h.Vault, "count", len(transfers))
	return &models.TransferListResponse{Transfers: transfers, Limit: limit, Offset: offset}, nil
}

// handle строит Handle хранилища, принадлежащего caller.
func (s *vaultService) handle(caller address.Address) (vault.Handle, error) {
	if caller.IsZero() {
		return vault.Handle{}, vault.ErrUnauthorized
	}
	vaultAddr, err := s.machine.VaultAddress(caller)
	if err != nil {
		return vault.Handle{}, fmt.Errorf("ошибка вычисления адреса хранилища: %w", err)
	}
	return vault.NewHandle(vaultAddr, caller), nil
}

// toUnits переводит сумму из внешнего запроса в единицы. Неположительная
// сумма становится нулем, ее отклоняет машина после проверки хранилища и блокировки.
func toUnits(amount int64) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(amount)
}

func optional(a *address.Address) address.Address {
	if a == nil {
		return address.Zero
	}
	return *a
}

func statusResponse(status *vault.Status) models.VaultStatusResponse {
	return models.VaultStatusResponse{
		Vault:        status.Vault,
		State:        status.State.String(),
		Balance:      status.Balance,
		UIBalance:    ledger.FormatAmount(status.Balance, status.Mint.Decimals),
		Symbol:       status.Mint.Symbol,
		Decimals:     status.Mint.Decimals,
		Withdrawable: status.Withdrawable,
		CheckedAt:    status.CheckedAt.Unix(),
	}
}
