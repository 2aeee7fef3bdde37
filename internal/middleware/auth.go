package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/services"
)

// Тип для ключа контекста.
type contextKey string

// Ключ для хранения claims пользователя в контексте.
const ClaimsKey contextKey = "claims"

// Коды ошибок аутентификации.
const (
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
)

// TokenParser проверяет токен и возвращает claims.
type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

// Authenticator проверяет JWT токен аутентификации и кладет claims в контекст.
func Authenticator(parser TokenParser, log *logger.Logger) func(http.Handler) http.Handler {
	log = log.Module("middleware.auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Debug("заголовок Authorization отсутствует", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Требуется аутентификация")
				return
			}

			// Проверяем формат "Bearer token"
			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" || headerParts[1] == "" {
				log.Debug("неверный формат заголовка Authorization")
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Неверный формат токена")
				return
			}

			claims, err := parser.ParseToken(headerParts[1])
			if err != nil {
				log.Info("токен отклонен", "err", err)
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "Невалидный токен")
				return
			}

			log.Debug("пользователь аутентифицирован", "user_id", claims.UserID, "address", claims.Address)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin пропускает только администраторов. Ставится после Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaimsFromContext(r.Context())
		if !ok || !claims.Admin {
			writeError(w, http.StatusForbidden, CodeForbidden, "Операция доступна только администратору")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithClaims возвращает контекст с claims пользователя.
func WithClaims(ctx context.Context, claims *services.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaimsFromContext извлекает claims из контекста запроса.
func GetClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*services.Claims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext извлекает UserID из контекста запроса.
// Возвращает ID пользователя и true, если ID найден, иначе 0 и false.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

// GetAddressFromContext извлекает адрес пользователя из контекста запроса.
func GetAddressFromContext(ctx context.Context) (address.Address, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok || claims.Address.IsZero() {
		return address.Zero, false
	}
	return claims.Address, true
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Code: code, Message: message})
}
