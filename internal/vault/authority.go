package vault

import (
	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/ledger"
	"github.com/maynagashev/tokenvault/internal/models"
)

// vaultAuthority - право подписи производного полномочия хранилища.
// Создается только в этом пакете и только из проверенной записи хранилища.
type vaultAuthority struct {
	addr address.Address
}

// SignerAddress реализует ledger.Signer.
func (a vaultAuthority) SignerAddress() address.Address {
	return a.addr
}

// vaultAuthority восстанавливает полномочие хранилища из сидов
// ["authority", vault] и сохраненного bump.
func (m *Machine) vaultAuthority(vault *models.Vault) (ledger.Signer, error) {
	der, err := m.deriver.VaultAuthority(vault.Address)
	if err != nil {
		return nil, ErrInvalidAccount
	}
	if der.Bump != vault.AuthorityBump ||
		!m.deriver.Verify(der.Address, vault.AuthorityBump, address.KindAuthority, vault.Address.Bytes()) {
		return nil, ErrInvalidAccount
	}
	return vaultAuthority{addr: der.Address}, nil
}
