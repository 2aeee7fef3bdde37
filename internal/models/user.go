package models

import (
	"time"

	"github.com/maynagashev/tokenvault/internal/address"
)

// User представляет пользователя системы.
// Address - адрес личности пользователя, он же authority его хранилища.
type User struct {
	ID           int64           `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	PasswordHash string          `db:"password_hash" json:"-"` // Не отправляем хеш пароля в JSON
	Address      address.Address `db:"address" json:"address"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// RegisterRequest представляет тело запроса на регистрацию.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse возвращается после успешной регистрации.
type RegisterResponse struct {
	Username string          `json:"username"`
	Address  address.Address `json:"address"`
}

// LoginRequest представляет тело запроса на вход.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse представляет тело ответа при успешном входе.
type LoginResponse struct {
	Token   string          `json:"token"`
	Address address.Address `json:"address"`
}
