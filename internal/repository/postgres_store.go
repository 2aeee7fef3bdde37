package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
)

// PostgresStore реализует Store для PostgreSQL. Каждая единица работы - одна
// SQL-транзакция, читаемые строки блокируются через FOR UPDATE.
type PostgresStore struct {
	db  *sqlx.DB
	log *logger.Logger
}

var _ Store = (*PostgresStore)(nil) // Проверка соответствия интерфейсу

// NewPostgresStore создает хранилище поверх подключения db.
func NewPostgresStore(db *sqlx.DB, log *logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log.Module("repository")}
}

// WithinTx реализует Store.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Error("ошибка отката транзакции", "err", rbErr)
		}
	}()

	if err = fn(ctx, &postgresTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	committed = true
	return nil
}

// ListTransfersByAccount реализует Store.
func (s *PostgresStore) ListTransfersByAccount(
	ctx context.Context,
	account address.Address,
	limit, offset int,
) ([]models.Transfer, error) {
	// Сначала новые, id разрешает совпадения времени внутри одной транзакции.
	query := `SELECT id, kind, from_account, to_account, mint, amount, authorizer, created_at
	          FROM transfers
	          WHERE from_account=$1 OR to_account=$1
	          ORDER BY created_at DESC, id
	          LIMIT $2 OFFSET $3`

	transfers := make([]models.Transfer, 0, limit)
	if err := s.db.SelectContext(ctx, &transfers, query, account, limit, offset); err != nil {
		s.log.Error("ошибка получения журнала", "account", account, "err", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение журнала: %w", err)
	}

	s.log.Debug("получен журнал", "account", account, "count", len(transfers), "limit", limit, "offset", offset)
	return transfers, nil
}

// Ping реализует Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// postgresTx реализует Tx поверх *sqlx.Tx.
type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) GetVault(ctx context.Context, addr address.Address) (*models.Vault, error) {
	query := `SELECT address, authority, token_account, mint, bump, authority_bump,
	                 is_locked, unlock_timestamp, created_at, updated_at
	          FROM vaults WHERE address=$1 FOR UPDATE`
	var vault models.Vault
	if err := t.tx.GetContext(ctx, &vault, query, addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение хранилища: %w", err)
	}
	return &vault, nil
}

func (t *postgresTx) CreateVault(ctx context.Context, vault *models.Vault) error {
	query := `INSERT INTO vaults (address, authority, token_account, mint, bump, authority_bump,
	                              is_locked, unlock_timestamp)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	err := t.tx.QueryRowxContext(ctx, query,
		vault.Address, vault.Authority, vault.TokenAccount, vault.Mint,
		vault.Bump, vault.AuthorityBump, vault.IsLocked, vault.UnlockTimestamp,
	).Scan(&vault.CreatedAt, &vault.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrVaultExists
		}
		return fmt.Errorf("ошибка выполнения запроса на создание хранилища: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateVaultLock(
	ctx context.Context,
	addr address.Address,
	isLocked bool,
	unlockTimestamp int64,
) error {
	query := `UPDATE vaults SET is_locked=$2, unlock_timestamp=$3, updated_at=now() WHERE address=$1`
	return t.execOne(ctx, ErrVaultNotFound, query, addr, isLocked, unlockTimestamp)
}

func (t *postgresTx) GetMint(ctx context.Context, addr address.Address) (*models.Mint, error) {
	query := `SELECT address, symbol, decimals, authority, supply, created_at
	          FROM mints WHERE address=$1 FOR UPDATE`
	var mint models.Mint
	if err := t.tx.GetContext(ctx, &mint, query, addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMintNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение выпуска: %w", err)
	}
	return &mint, nil
}

func (t *postgresTx) CreateMint(ctx context.Context, mint *models.Mint) error {
	query := `INSERT INTO mints (address, symbol, decimals, authority, supply)
	          VALUES ($1, $2, $3, $4, $5) RETURNING created_at`
	err := t.tx.QueryRowxContext(ctx, query,
		mint.Address, mint.Symbol, mint.Decimals, mint.Authority, mint.Supply,
	).Scan(&mint.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrMintExists
		}
		return fmt.Errorf("ошибка выполнения запроса на создание выпуска: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateMintSupply(ctx context.Context, addr address.Address, supply uint64) error {
	query := `UPDATE mints SET supply=$2 WHERE address=$1`
	return t.execOne(ctx, ErrMintNotFound, query, addr, supply)
}

func (t *postgresTx) GetTokenAccount(ctx context.Context, addr address.Address) (*models.TokenAccount, error) {
	query := `SELECT address, mint, owner, amount, created_at, updated_at
	          FROM token_accounts WHERE address=$1 FOR UPDATE`
	var account models.TokenAccount
	if err := t.tx.GetContext(ctx, &account, query, addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenAccountNotFound
		}
		return nil, fmt.Errorf("ошибка выполнения запроса на получение счета: %w", err)
	}
	return &account, nil
}

func (t *postgresTx) CreateTokenAccount(ctx context.Context, account *models.TokenAccount) error {
	query := `INSERT INTO token_accounts (address, mint, owner, amount)
	          VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	err := t.tx.QueryRowxContext(ctx, query,
		account.Address, account.Mint, account.Owner, account.Amount,
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTokenAccountExists
		}
		return fmt.Errorf("ошибка выполнения запроса на открытие счета: %w", err)
	}
	return nil
}

func (t *postgresTx) UpdateTokenAccountAmount(ctx context.Context, addr address.Address, amount uint64) error {
	query := `UPDATE token_accounts SET amount=$2, updated_at=now() WHERE address=$1`
	return t.execOne(ctx, ErrTokenAccountNotFound, query, addr, amount)
}

func (t *postgresTx) AppendTransfer(ctx context.Context, transfer *models.Transfer) error {
	query := `INSERT INTO transfers (id, kind, from_account, to_account, mint, amount, authorizer)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`
	err := t.tx.QueryRowxContext(ctx, query,
		transfer.ID, transfer.Kind, transfer.From, transfer.To,
		transfer.Mint, transfer.Amount, transfer.Authorizer,
	).Scan(&transfer.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса на запись в журнал: %w", err)
	}
	return nil
}

// execOne выполняет изменяющий запрос и ожидает ровно одну затронутую строку.
func (t *postgresTx) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа измененных строк: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}
