package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/clock"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
)

// AuthService определяет интерфейс для сервиса аутентификации.
type AuthService interface {
	// Register создает пользователя и выдает ему адрес личности.
	Register(ctx context.Context, username, password string) (*models.User, error)
	// Login возвращает JWT токен и пользователя.
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	// ParseToken проверяет подпись и срок токена и возвращает его claims.
	ParseToken(token string) (*Claims, error)
}

// AuthConfig - параметры выдачи токенов.
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
	// IsAdmin решает, получает ли пользователь права администратора. Может быть nil.
	IsAdmin func(username string) bool
}

const tokenIssuer = "tokenvault-server"

// Claims - пользовательские данные в JWT.
type Claims struct {
	UserID   int64           `json:"user_id"`
	Username string          `json:"username"`
	Address  address.Address `json:"address"`
	Admin    bool            `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Кастомные ошибки сервиса.
var (
	ErrInvalidCredentials = errors.New("неверное имя пользователя или пароль")
	ErrUsernameTaken      = errors.New("имя пользователя уже занято")
	ErrInvalidToken       = errors.New("невалидный токен")
)

// Убедимся, что authService удовлетворяет интерфейсу AuthService.
var _ AuthService = (*authService)(nil)

type authService struct {
	userRepo repository.UserRepository
	cfg      AuthConfig
	clock    clock.Clock
	log      *logger.Logger
}

// NewAuthService создает новый экземпляр сервиса аутентификации.
func NewAuthService(
	userRepo repository.UserRepository,
	cfg AuthConfig,
	clk clock.Clock,
	log *logger.Logger,
) AuthService {
	return &authService{userRepo: userRepo, cfg: cfg, clock: clk, log: log.Module("services.auth")}
}

// Register регистрирует нового пользователя.
func (s *authService) Register(ctx context.Context, username, password string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("ошибка хеширования пароля", "username", username, "err", err)
		return nil, errors.New("внутренняя ошибка сервера при хешировании пароля")
	}

	identity, err := address.NewIdentity()
	if err != nil {
		s.log.Error("ошибка генерации адреса", "username", username, "err", err)
		return nil, errors.New("внутренняя ошибка сервера при генерации адреса")
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		Address:      identity,
	}

	user.ID, err = s.userRepo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			s.log.Info("попытка регистрации с занятым именем", "username", username)
			return nil, ErrUsernameTaken
		}
		s.log.Error("ошибка репозитория при регистрации", "username", username, "err", err)
		return nil, errors.New("внутренняя ошибка сервера при создании пользователя")
	}

	s.log.Info("пользователь зарегистрирован", "username", username, "address", user.Address)
	return user, nil
}

// Login аутентифицирует пользователя и возвращает JWT токен.
func (s *authService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.Info("попытка входа несуществующего пользователя", "username", username)
			return "", nil, ErrInvalidCredentials // Общая ошибка для несуществующего пользователя и неверного пароля
		}
		s.log.Error("ошибка репозитория при поиске пользователя", "username", username, "err", err)
		return "", nil, errors.New("внутренняя ошибка сервера при поиске пользователя")
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("неверный пароль", "username", username)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateJWT(user)
	if err != nil {
		s.log.Error("ошибка генерации JWT", "username", username, "err", err)
		return "", nil, errors.New("внутренняя ошибка сервера при генерации токена")
	}

	s.log.Info("пользователь аутентифицирован", "username", username)
	return token, user, nil
}

// ParseToken реализует AuthService.
func (s *authService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// generateJWT создает и подписывает JWT токен для пользователя.
func (s *authService) generateJWT(user *models.User) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Address:  user.Address,
		Admin:    s.cfg.IsAdmin != nil && s.cfg.IsAdmin(user.Username),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи JWT: %w", err)
	}
	return signedToken, nil
}
