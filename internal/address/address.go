// Package address вычисляет детерминированные адреса записей хранилищ,
// кастодиальных счетов и производных полномочий.
//
// Производный адрес получается хешированием набора сидов вместе с
// идентификатором программы и обязан лежать вне кривой ed25519: для такого
// адреса не существует закрытого ключа, поэтому подписывать от его имени может
// только логика сервиса.
package address

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"database/sql/driver"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// Size - длина адреса в байтах.
	Size = 32
	// MaxSeedLength - максимальная длина одного сида.
	MaxSeedLength = 32
	// MaxSeeds - максимальное количество сидов (включая bump).
	MaxSeeds = 16

	pdaMarker = "ProgramDerivedAddress"
)

// Address - 32-байтовый адрес, в текстовом виде кодируется base58.
type Address [Size]byte

// Zero - пустой адрес.
var Zero Address

// ProgramID - идентификатор программы хранилища, входит в каждую деривацию.
var ProgramID = Address(sha256.Sum256([]byte("tokenvault:program:v1")))

// Ошибки пакета.
var (
	ErrInvalidAddress = errors.New("некорректный адрес")
	ErrSeedTooLong    = errors.New("длина сида превышает допустимую")
	ErrTooManySeeds   = errors.New("слишком много сидов")
	ErrOnCurve        = errors.New("производный адрес лежит на кривой")
	ErrNoViableBump   = errors.New("не удалось подобрать bump для адреса")
)

// Parse разбирает адрес из base58-строки.
func Parse(s string) (Address, error) {
	if s == "" {
		return Zero, fmt.Errorf("%w: пустая строка", ErrInvalidAddress)
	}
	return FromBytes(base58.Decode(s))
}

// MustParse как Parse, но паникует при ошибке. Для констант и тестов.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes создает адрес из среза длиной ровно Size байт.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("%w: длина %d байт, ожидается %d", ErrInvalidAddress, len(b), Size)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// NewIdentity создает адрес новой личности. Это открытый ключ ed25519, он
// всегда лежит на кривой и поэтому не может совпасть с производным адресом.
func NewIdentity() (Address, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Zero, fmt.Errorf("ошибка генерации ключа личности: %w", err)
	}
	return FromBytes(pub)
}

// String возвращает base58-представление адреса.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes возвращает копию байтов адреса.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

// IsZero сообщает, является ли адрес пустым.
func (a Address) IsZero() bool {
	return a == Zero
}

// MarshalText реализует encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value реализует driver.Valuer: в БД адрес хранится base58-строкой.
func (a Address) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan реализует sql.Scanner.
func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("%w: неподдерживаемый тип %T", ErrInvalidAddress, src)
	}
}

// IsOnCurve сообщает, является ли адрес корректной точкой ed25519.
func IsOnCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// CreateProgramAddress вычисляет производный адрес для полного набора сидов
// (последним сидом обычно идет bump). Возвращает ErrOnCurve, если результат
// оказался на кривой.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrTooManySeeds
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var a Address
	copy(a[:], h.Sum(nil))
	if IsOnCurve(a) {
		return Zero, ErrOnCurve
	}
	return a, nil
}

// FindProgramAddress перебирает bump от 255 вниз и возвращает первый
// производный адрес вне кривой вместе с найденным bump.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, ErrTooManySeeds
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		a, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return a, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}
