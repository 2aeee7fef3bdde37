package ledger

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount переводит целые единицы в десятичную запись с учетом точности
// выпуска: 1500000 при decimals=6 дает "1.5".
func FormatAmount(units uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals)).String()
}

// ParseAmount переводит десятичную запись в целые единицы выпуска.
// Дробная часть длиннее decimals считается ошибкой, а не округляется.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("некорректная сумма %q: %w", s, err)
	}
	if d.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("сумма %q точнее %d знаков после запятой", s, decimals)
	}
	if units.GreaterThan(decimal.NewFromBigInt(new(big.Int).SetUint64(MaxAmount), 0)) {
		return 0, ErrAmountOverflow
	}
	return units.BigInt().Uint64(), nil
}
