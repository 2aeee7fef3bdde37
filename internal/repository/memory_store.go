package repository

import (
	"context"
	"sync"
	"time"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/models"
)

// MemoryStore - хранилище в памяти процесса. Единицы работы выполняются
// последовательно: изменения копятся в транзакции и применяются только после
// успешного завершения fn.
type MemoryStore struct {
	mu        sync.Mutex
	vaults    map[address.Address]models.Vault
	mints     map[address.Address]models.Mint
	accounts  map[address.Address]models.TokenAccount
	transfers []models.Transfer
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil) // Проверка соответствия интерфейсу

// NewMemoryStore создает пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vaults:   make(map[address.Address]models.Vault),
		mints:    make(map[address.Address]models.Mint),
		accounts: make(map[address.Address]models.TokenAccount),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx реализует Store.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		now:      s.now(),
		vaults:   make(map[address.Address]models.Vault),
		mints:    make(map[address.Address]models.Mint),
		accounts: make(map[address.Address]models.TokenAccount),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// ListTransfersByAccount реализует Store.
func (s *MemoryStore) ListTransfersByAccount(
	_ context.Context,
	account address.Address,
	limit, offset int,
) ([]models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Transfer, 0, limit)
	skipped := 0
	for i := len(s.transfers) - 1; i >= 0 && len(result) < limit; i-- {
		t := s.transfers[i]
		if t.From != account && t.To != account {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

// Ping реализует Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// memoryTx копит изменения поверх состояния MemoryStore.
type memoryTx struct {
	store     *MemoryStore
	now       time.Time
	vaults    map[address.Address]models.Vault
	mints     map[address.Address]models.Mint
	accounts  map[address.Address]models.TokenAccount
	transfers []models.Transfer
}

func (t *memoryTx) commit() {
	for k, v := range t.vaults {
		t.store.vaults[k] = v
	}
	for k, v := range t.mints {
		t.store.mints[k] = v
	}
	for k, v := range t.accounts {
		t.store.accounts[k] = v
	}
	t.store.transfers = append(t.store.transfers, t.transfers...)
}

func (t *memoryTx) vault(addr address.Address) (models.Vault, bool) {
	if v, ok := t.vaults[addr]; ok {
		return v, true
	}
	v, ok := t.store.vaults[addr]
	return v, ok
}

func (t *memoryTx) mint(addr address.Address) (models.Mint, bool) {
	if m, ok := t.mints[addr]; ok {
		return m, true
	}
	m, ok := t.store.mints[addr]
	return m, ok
}

func (t *memoryTx) account(addr address.Address) (models.TokenAccount, bool) {
	if a, ok := t.accounts[addr]; ok {
		return a, true
	}
	a, ok := t.store.accounts[addr]
	return a, ok
}

func (t *memoryTx) GetVault(_ context.Context, addr address.Address) (*models.Vault, error) {
	v, ok := t.vault(addr)
	if !ok {
		return nil, ErrVaultNotFound
	}
	return &v, nil
}

func (t *memoryTx) CreateVault(_ context.Context, vault *models.Vault) error {
	if _, ok := t.vault(vault.Address); ok {
		return ErrVaultExists
	}
	vault.CreatedAt = t.now
	vault.UpdatedAt = t.now
	t.vaults[vault.Address] = *vault
	return nil
}

func (t *memoryTx) UpdateVaultLock(
	_ context.Context,
	addr address.Address,
	isLocked bool,
	unlockTimestamp int64,
) error {
	v, ok := t.vault(addr)
	if !ok {
		return ErrVaultNotFound
	}
	v.IsLocked = isLocked
	v.UnlockTimestamp = unlockTimestamp
	v.UpdatedAt = t.now
	t.vaults[addr] = v
	return nil
}

func (t *memoryTx) GetMint(_ context.Context, addr address.Address) (*models.Mint, error) {
	m, ok := t.mint(addr)
	if !ok {
		return nil, ErrMintNotFound
	}
	return &m, nil
}

func (t *memoryTx) CreateMint(_ context.Context, mint *models.Mint) error {
	if _, ok := t.mint(mint.Address); ok {
		return ErrMintExists
	}
	mint.CreatedAt = t.now
	t.mints[mint.Address] = *mint
	return nil
}

func (t *memoryTx) UpdateMintSupply(_ context.Context, addr address.Address, supply uint64) error {
	m, ok := t.mint(addr)
	if !ok {
		return ErrMintNotFound
	}
	m.Supply = supply
	t.mints[addr] = m
	return nil
}

func (t *memoryTx) GetTokenAccount(_ context.Context, addr address.Address) (*models.TokenAccount, error) {
	a, ok := t.account(addr)
	if !ok {
		return nil, ErrTokenAccountNotFound
	}
	return &a, nil
}

func (t *memoryTx) CreateTokenAccount(_ context.Context, account *models.TokenAccount) error {
	if _, ok := t.account(account.Address); ok {
		return ErrTokenAccountExists
	}
	account.CreatedAt = t.now
	account.UpdatedAt = t.now
	t.accounts[account.Address] = *account
	return nil
}

func (t *memoryTx) UpdateTokenAccountAmount(_ context.Context, addr address.Address, amount uint64) error {
	a, ok := t.account(addr)
	if !ok {
		return ErrTokenAccountNotFound
	}
	a.Amount = amount
	a.UpdatedAt = t.now
	t.accounts[addr] = a
	return nil
}

func (t *memoryTx) AppendTransfer(_ context.Context, transfer *models.Transfer) error {
	transfer.CreatedAt = t.now
	t.transfers = append(t.transfers, *transfer)
	return nil
}
