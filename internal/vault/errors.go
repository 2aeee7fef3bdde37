package vault

import "errors"

// Ошибки машины состояний.
var (
	ErrAlreadyInitialized       = errors.New("хранилище уже инициализировано")
	ErrUnauthorized             = errors.New("вызывающий не является владельцем хранилища")
	ErrInvalidLockTime          = errors.New("время разблокировки должно быть в будущем")
	ErrStillLocked              = errors.New("хранилище заблокировано")
	ErrInsufficientFunds        = errors.New("недостаточно средств на счете вызывающего")
	ErrInsufficientVaultBalance = errors.New("недостаточно средств в хранилище")
	ErrInvalidAmount            = errors.New("сумма должна быть положительной")
	ErrInvalidAccount           = errors.New("некорректный счет")
	ErrVaultNotFound            = errors.New("хранилище не найдено")
)

// CodeInternal - код для ошибок, не относящихся к бизнес-правилам.
const CodeInternal = "internal"

// Стабильные коды ошибок для внешних интерфейсов. Порядок важен только для
// Code: ошибка сопоставляется с первым подходящим значением.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInitialized, "already_initialized"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidLockTime, "invalid_lock_time"},
	{ErrStillLocked, "still_locked"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrInsufficientVaultBalance, "insufficient_vault_balance"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidAccount, "invalid_account"},
	{ErrVaultNotFound, "vault_not_found"},
}

// Code возвращает стабильный код ошибки. Для nil возвращает пустую строку,
// для неизвестных ошибок - CodeInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// FromCode возвращает ошибку по ее коду или nil, если код неизвестен.
func FromCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	return nil
}
