package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
)

func seedMemoryStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateMint(ctx, &models.Mint{Address: mintAddr, Symbol: "GLD", Authority: authorityAddr}); err != nil {
			return err
		}
		return tx.CreateTokenAccount(ctx, &models.TokenAccount{
			Address: userAccount, Mint: mintAddr, Owner: authorityAddr, Amount: 100,
		})
	})
	require.NoError(t, err)
	return store
}

func TestMemoryStore_RollbackDiscardsChanges(t *testing.T) {
	store := seedMemoryStore(t)
	fnErr := errors.New("отказ")

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		if err := tx.UpdateTokenAccountAmount(ctx, userAccount, 0); err != nil {
			return err
		}
		if err := tx.CreateVault(ctx, &models.Vault{Address: vaultAddr, Authority: authorityAddr}); err != nil {
			return err
		}
		if err := tx.AppendTransfer(ctx, &models.Transfer{ID: uuid.New(), From: userAccount, To: custodyAddr}); err != nil {
			return err
		}
		return fnErr
	})
	require.ErrorIs(t, err, fnErr)

	err = store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		account, err := tx.GetTokenAccount(ctx, userAccount)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), account.Amount)

		_, err = tx.GetVault(ctx, vaultAddr)
		assert.ErrorIs(t, err, repository.ErrVaultNotFound)
		return nil
	})
	require.NoError(t, err)

	transfers, err := store.ListTransfersByAccount(context.Background(), userAccount, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestMemoryStore_ReadsOwnWrites(t *testing.T) {
	store := seedMemoryStore(t)

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.UpdateTokenAccountAmount(ctx, userAccount, 40))
		account, err := tx.GetTokenAccount(ctx, userAccount)
		require.NoError(t, err)
		assert.Equal(t, uint64(40), account.Amount)

		require.NoError(t, tx.CreateVault(ctx, &models.Vault{Address: vaultAddr, Authority: authorityAddr}))
		assert.ErrorIs(t, tx.CreateVault(ctx, &models.Vault{Address: vaultAddr}), repository.ErrVaultExists)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_CancelledContextDiscardsChanges(t *testing.T) {
	store := seedMemoryStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cancel()
		return tx.UpdateTokenAccountAmount(ctx, userAccount, 1)
	})
	require.ErrorIs(t, err, context.Canceled)

	_ = store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		account, err := tx.GetTokenAccount(ctx, userAccount)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), account.Amount)
		return nil
	})
}

func TestMemoryStore_NotFound(t *testing.T) {
	store := repository.NewMemoryStore()

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.GetMint(ctx, mintAddr)
		assert.ErrorIs(t, err, repository.ErrMintNotFound)
		assert.ErrorIs(t, tx.UpdateMintSupply(ctx, mintAddr, 1), repository.ErrMintNotFound)
		assert.ErrorIs(t, tx.UpdateVaultLock(ctx, vaultAddr, true, 1), repository.ErrVaultNotFound)
		_, err = tx.GetTokenAccount(ctx, userAccount)
		assert.ErrorIs(t, err, repository.ErrTokenAccountNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStore_ListTransfersByAccount(t *testing.T) {
	store := seedMemoryStore(t)
	other := custodyAddr

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		id := uuid.New()
		ids = append(ids, id)
		err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
			from, to := userAccount, other
			if i%2 == 1 {
				from, to = other, userAccount
			}
			return tx.AppendTransfer(ctx, &models.Transfer{ID: id, From: from, To: to, Mint: mintAddr, Amount: uint64(i + 1)})
		})
		require.NoError(t, err)
	}
	// Чужое движение не попадает в выборку.
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.AppendTransfer(ctx, &models.Transfer{ID: uuid.New(), From: vaultAddr, To: other, Amount: 9})
	}))

	t.Run("Сначала новые", func(t *testing.T) {
		transfers, err := store.ListTransfersByAccount(context.Background(), userAccount, 10, 0)
		require.NoError(t, err)
		require.Len(t, transfers, 5)
		assert.Equal(t, ids[4], transfers[0].ID)
		assert.Equal(t, ids[0], transfers[4].ID)
	})

	t.Run("Страница", func(t *testing.T) {
		transfers, err := store.ListTransfersByAccount(context.Background(), userAccount, 2, 1)
		require.NoError(t, err)
		require.Len(t, transfers, 2)
		assert.Equal(t, ids[3], transfers[0].ID)
		assert.Equal(t, ids[2], transfers[1].ID)
	})

	t.Run("За пределами журнала", func(t *testing.T) {
		transfers, err := store.ListTransfersByAccount(context.Background(), userAccount, 10, 10)
		require.NoError(t, err)
		assert.Empty(t, transfers)
	})
}
