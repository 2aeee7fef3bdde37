package address

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// Kind - префикс деривации, первый сид любого производного адреса.
type Kind string

// Виды производных адресов.
const (
	KindVault     Kind = "vault"     // запись хранилища: ["vault", authority]
	KindAuthority Kind = "authority" // полномочие хранилища: ["authority", vault]
	KindCustody   Kind = "custody"   // кастодиальный счет: ["custody", vault]
	KindToken     Kind = "token"     // личный счет: ["token", owner, mint]
	KindMint      Kind = "mint"      // выпуск токена: ["mint", symbol]
)

const defaultCacheSize = 4096

// Derivation - производный адрес и bump, при котором он был найден.
type Derivation struct {
	Address Address
	Bump    uint8
}

// Deriver вычисляет производные адреса для одной программы.
// Результаты кешируются: деривация чистая, кеш влияет только на скорость.
type Deriver struct {
	programID Address
	cache     *lru.Cache
}

// NewDeriver создает Deriver. cacheSize <= 0 означает размер по умолчанию.
func NewDeriver(programID Address, cacheSize int) (*Deriver, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания кеша адресов: %w", err)
	}
	return &Deriver{programID: programID, cache: cache}, nil
}

// ProgramID возвращает идентификатор программы.
func (d *Deriver) ProgramID() Address {
	return d.programID
}

// Derive находит производный адрес для вида kind и сидов parts.
func (d *Deriver) Derive(kind Kind, parts ...[]byte) (Derivation, error) {
	key := cacheKey(kind, parts)
	if cached, ok := d.cache.Get(key); ok {
		return cached.(Derivation), nil //nolint:errcheck // в кеше лежат только Derivation
	}

	addr, bump, err := FindProgramAddress(seedsFor(kind, parts), d.programID)
	if err != nil {
		return Derivation{}, fmt.Errorf("деривация %s: %w", kind, err)
	}
	der := Derivation{Address: addr, Bump: bump}
	d.cache.Add(key, der)
	return der, nil
}

// Verify проверяет, что адрес воспроизводится из сидов с сохраненным bump.
func (d *Deriver) Verify(expected Address, bump uint8, kind Kind, parts ...[]byte) bool {
	seeds := append(seedsFor(kind, parts), []byte{bump})
	addr, err := CreateProgramAddress(seeds, d.programID)
	return err == nil && addr == expected
}

// Vault возвращает адрес записи хранилища для authority.
func (d *Deriver) Vault(authority Address) (Derivation, error) {
	return d.Derive(KindVault, authority[:])
}

// VaultAuthority возвращает производное полномочие хранилища.
func (d *Deriver) VaultAuthority(vault Address) (Derivation, error) {
	return d.Derive(KindAuthority, vault[:])
}

// Custody возвращает адрес кастодиального счета хранилища.
func (d *Deriver) Custody(vault Address) (Derivation, error) {
	return d.Derive(KindCustody, vault[:])
}

// TokenAccount возвращает адрес личного счета owner для выпуска mint.
func (d *Deriver) TokenAccount(owner, mint Address) (Derivation, error) {
	return d.Derive(KindToken, owner[:], mint[:])
}

// Mint возвращает адрес выпуска по его символу.
func (d *Deriver) Mint(symbol string) (Derivation, error) {
	return d.Derive(KindMint, []byte(strings.ToUpper(symbol)))
}

func seedsFor(kind Kind, parts [][]byte) [][]byte {
	seeds := make([][]byte, 0, len(parts)+1)
	seeds = append(seeds, []byte(kind))
	return append(seeds, parts...)
}

func cacheKey(kind Kind, parts [][]byte) string {
	var b strings.Builder
	b.WriteString(string(kind))
	for _, p := range parts {
		b.WriteByte('/')
		b.Write(p)
	}
	return b.String()
}
