package address_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/tokenvault/internal/address"
)

func newDeriver(t *testing.T) *address.Deriver {
	t.Helper()
	d, err := address.NewDeriver(address.ProgramID, 16)
	require.NoError(t, err)
	return d
}

func TestDeriver_VaultChain(t *testing.T) {
	d := newDeriver(t)
	authority, err := address.NewIdentity()
	require.NoError(t, err)

	vault, err := d.Vault(authority)
	require.NoError(t, err)
	vaultAuthority, err := d.VaultAuthority(vault.Address)
	require.NoError(t, err)
	custody, err := d.Custody(vault.Address)
	require.NoError(t, err)

	assert.NotEqual(t, vault.Address, vaultAuthority.Address)
	assert.NotEqual(t, vault.Address, custody.Address)
	assert.NotEqual(t, authority, vaultAuthority.Address, "полномочие хранилища отличается от ключа владельца")

	assert.True(t, d.Verify(vault.Address, vault.Bump, address.KindVault, authority[:]))
	assert.True(t, d.Verify(vaultAuthority.Address, vaultAuthority.Bump, address.KindAuthority, vault.Address[:]))
	assert.False(t, d.Verify(vault.Address, vault.Bump, address.KindAuthority, authority[:]))

	other, err := address.NewIdentity()
	require.NoError(t, err)
	assert.False(t, d.Verify(vault.Address, vault.Bump, address.KindVault, other[:]))
}

func TestDeriver_CacheIsTransparent(t *testing.T) {
	cached := newDeriver(t)
	fresh := newDeriver(t)
	owner, err := address.NewIdentity()
	require.NoError(t, err)
	mint, err := cached.Mint("usdc")
	require.NoError(t, err)

	first, err := cached.TokenAccount(owner, mint.Address)
	require.NoError(t, err)
	second, err := cached.TokenAccount(owner, mint.Address)
	require.NoError(t, err)
	independent, err := fresh.TokenAccount(owner, mint.Address)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, independent)
}

func TestDeriver_MintSymbolCaseInsensitive(t *testing.T) {
	d := newDeriver(t)
	lower, err := d.Mint("usdc")
	require.NoError(t, err)
	upper, err := d.Mint("USDC")
	require.NoError(t, err)
	assert.Equal(t, lower, upper)

	_, err = d.Mint(strings.Repeat("A", 40))
	require.ErrorIs(t, err, address.ErrSeedTooLong)
}
