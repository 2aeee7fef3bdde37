package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/ledger"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
	"github.com/maynagashev/tokenvault/internal/vault"
)

// TokenService управляет выпусками и личными счетами пользователей.
type TokenService interface {
	// CreateMint создает выпуск symbol, authority получает право эмиссии.
	CreateMint(ctx context.Context, authority address.Address, symbol string, decimals uint8) (*models.Mint, error)
	GetMint(ctx context.Context, mint address.Address) (*models.Mint, error)
	// MintTo выпускает amount единиц на личный счет owner, открывая его при необходимости.
	MintTo(ctx context.Context, authority, mint, owner address.Address, amount int64) (*models.Transfer, error)
	// Balance возвращает баланс личного счета owner. Неоткрытый счет имеет нулевой баланс.
	Balance(ctx context.Context, owner, mint address.Address) (*models.BalanceResponse, error)
}

// Ошибки сервиса токенов.
var (
	ErrMintNotFound      = errors.New("выпуск не найден")
	ErrMintExists        = errors.New("выпуск уже существует")
	ErrInvalidMintParams = errors.New("некорректные параметры выпуска")
	ErrForbidden         = errors.New("недостаточно прав")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

var _ TokenService = (*tokenService)(nil) // Проверка соответствия интерфейсу

type tokenService struct {
	store   repository.Store
	deriver *address.Deriver
	log     *logger.Logger
}

// NewTokenService создает сервис токенов.
func NewTokenService(store repository.Store, deriver *address.Deriver, log *logger.Logger) TokenService {
	return &tokenService{store: store, deriver: deriver, log: log.Module("services.tokens")}
}

// CreateMint реализует TokenService.
func (s *tokenService) CreateMint(
	ctx context.Context,
	authority address.Address,
	symbol string,
	decimals uint8,
) (*models.Mint, error) {
	if !symbolPattern.MatchString(symbol) || decimals > ledger.MaxDecimals {
		return nil, ErrInvalidMintParams
	}
	if authority.IsZero() {
		return nil, ErrForbidden
	}

	der, err := s.deriver.Mint(symbol)
	if err != nil {
		return nil, fmt.Errorf("ошибка деривации адреса выпуска: %w", err)
	}
	mint := &models.Mint{Address: der.Address, Symbol: symbol, Decimals: decimals, Authority: authority}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return ledger.CreateMint(ctx, tx, mint)
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.log.Info("выпуск создан", "mint", mint.Address, "symbol", symbol, "decimals", decimals)
	return mint, nil
}

// GetMint реализует TokenService.
func (s *tokenService) GetMint(ctx context.Context, addr address.Address) (*models.Mint, error) {
	var mint *models.Mint
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		mint, err = ledger.GetMint(ctx, tx, addr)
		return err
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return mint, nil
}

// MintTo реализует TokenService.
func (s *tokenService) MintTo(
	ctx context.Context,
	authority, mint, owner address.Address,
	amount int64,
) (*models.Transfer, error) {
	if amount <= 0 {
		return nil, vault.ErrInvalidAmount
	}
	units := toUnits(amount)
	if owner.IsZero() {
		return nil, vault.ErrInvalidAccount
	}
	account, err := s.deriver.TokenAccount(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("ошибка деривации личного счета: %w", err)
	}

	var journal *models.Transfer
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := ledger.GetAccount(ctx, tx, account.Address); err != nil {
			if !errors.Is(err, ledger.ErrAccountNotFound) {
				return err
			}
			if _, err = ledger.InitializeAccount(ctx, tx, account.Address, mint, owner); err != nil {
				return err
			}
		}
		var err error
		journal, err = ledger.MintTo(ctx, tx, mint, account.Address, units, ledger.Identity(authority))
		return err
	})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.log.Info("токены выпущены", "mint", mint, "owner", owner, "amount", units)
	return journal, nil
}

// Balance реализует TokenService.
func (s *tokenService) Balance(ctx context.Context, owner, mint address.Address) (*models.BalanceResponse, error) {
	account, err := s.deriver.TokenAccount(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("ошибка деривации личного счета: %w", err)
	}

	resp := &models.BalanceResponse{Account: account.Address, Mint: mint, Owner: owner}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		m, err := ledger.GetMint(ctx, tx, mint)
		if err != nil {
			return err
		}
		acc, err := ledger.GetAccount(ctx, tx, account.Address)
		switch {
		case err == nil:
			resp.Amount = acc.Amount
		case !errors.Is(err, ledger.ErrAccountNotFound):
			return err
		}
		resp.UIAmount = ledger.FormatAmount(resp.Amount, m.Decimals)
		return nil
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// mapError переводит ошибки учета в ошибки сервиса.
func (s *tokenService) mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrMintNotFound):
		return ErrMintNotFound
	case errors.Is(err, ledger.ErrMintExists):
		return ErrMintExists
	case errors.Is(err, ledger.ErrInvalidDecimals):
		return ErrInvalidMintParams
	case errors.Is(err, ledger.ErrMintAuthority):
		return ErrForbidden
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrAmountOverflow):
		return vault.ErrInvalidAmount
	case errors.Is(err, ledger.ErrMintMismatch), errors.Is(err, ledger.ErrAccountExists):
		return vault.ErrInvalidAccount
	default:
		s.log.Error("ошибка операции с токенами", "err", err)
		return fmt.Errorf("внутренняя ошибка сервиса токенов: %w", err)
	}
}
