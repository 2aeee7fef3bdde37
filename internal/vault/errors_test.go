package vault_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maynagashev/tokenvault/internal/vault"
)

func TestCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{vault.ErrAlreadyInitialized, "already_initialized"},
		{vault.ErrUnauthorized, "unauthorized"},
		{vault.ErrInvalidLockTime, "invalid_lock_time"},
		{vault.ErrStillLocked, "still_locked"},
		{vault.ErrInsufficientFunds, "insufficient_funds"},
		{vault.ErrInsufficientVaultBalance, "insufficient_vault_balance"},
		{vault.ErrInvalidAmount, "invalid_amount"},
		{vault.ErrInvalidAccount, "invalid_account"},
		{vault.ErrVaultNotFound, "vault_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.code, vault.Code(tt.err))
			assert.Equal(t, tt.code, vault.Code(fmt.Errorf("обертка: %w", tt.err)))
			assert.ErrorIs(t, vault.FromCode(tt.code), tt.err)
		})
	}

	assert.Equal(t, "", vault.Code(nil))
	assert.Equal(t, vault.CodeInternal, vault.Code(errors.New("сбой диска")))
	assert.NoError(t, vault.FromCode("no_such_code"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unlocked", vault.StateUnlocked.String())
	assert.Equal(t, "locked", vault.StateLocked.String())
	assert.Equal(t, "unknown", vault.State(9).String())
}
