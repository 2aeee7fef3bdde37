package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
)

const (
	insertUserQuery = `INSERT INTO users (username, password_hash, address) VALUES ($1, $2, $3) RETURNING id`
	selectUserQuery = `SELECT id, username, password_hash, address, created_at, updated_at FROM users WHERE username=$1`
)

func TestNewPostgresUserRepository(t *testing.T) {
	db, _, _ := sqlmock.New()
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewPostgresUserRepository(sqlxDB, logger.Nop())
	assert.NotNil(t, repo)
}

// Вспомогательная функция для создания мока БД и репозитория.
func setupUserRepoMock(t *testing.T) (repository.UserRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := repository.NewPostgresUserRepository(sqlxDB, logger.Nop())
	return repo, mock
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name        string
		user        *models.User
		mockSetup   func(mock sqlmock.Sqlmock, user *models.User)
		expectedID  int64
		expectedErr error
	}{
		{
			name: "Успешное создание",
			user: &models.User{Username: "newuser", PasswordHash: "hash123", Address: authorityAddr},
			mockSetup: func(mock sqlmock.Sqlmock, user *models.User) {
				rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(1))
				mock.ExpectQuery(regexp.QuoteMeta(insertUserQuery)).
					WithArgs(user.Username, user.PasswordHash, user.Address).
					WillReturnRows(rows)
			},
			expectedID:  1,
			expectedErr: nil,
		},
		{
			name: "Имя пользователя занято",
			user: &models.User{Username: "existinguser", PasswordHash: "hash456", Address: authorityAddr},
			mockSetup: func(mock sqlmock.Sqlmock, user *models.User) {
				pqErr := &pq.Error{Code: "23505"}
				mock.ExpectQuery(regexp.QuoteMeta(insertUserQuery)).
					WithArgs(user.Username, user.PasswordHash, user.Address).
					WillReturnError(pqErr)
			},
			expectedID:  0,
			expectedErr: repository.ErrUsernameTaken,
		},
		{
			name: "Ошибка базы данных",
			user: &models.User{Username: "erroruser", PasswordHash: "hash789", Address: authorityAddr},
			mockSetup: func(mock sqlmock.Sqlmock, user *models.User) {
				mock.ExpectQuery(regexp.QuoteMeta(insertUserQuery)).
					WithArgs(user.Username, user.PasswordHash, user.Address).
					WillReturnError(errors.New("database error"))
			},
			expectedID:  0,
			expectedErr: errors.New("ошибка выполнения запроса"), // Ожидаем обернутую ошибку
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupUserRepoMock(t)
			tt.mockSetup(mock, tt.user)

			userID, err := repo.CreateUser(context.Background(), tt.user)

			assert.Equal(t, tt.expectedID, userID)
			if tt.expectedErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				if errors.Is(tt.expectedErr, repository.ErrUsernameTaken) {
					assert.ErrorIs(t, err, repository.ErrUsernameTaken)
				} else {
					assert.Contains(t, err.Error(), "ошибка выполнения запроса")
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "Не все ожидания мока были выполнены")
		})
	}
}

func TestGetUserByUsername(t *testing.T) {
	now := time.Now()
	testUser := &models.User{
		ID:           1,
		Username:     "testuser",
		PasswordHash: "hash123",
		Address:      authorityAddr,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tests := []struct {
		name         string
		username     string
		mockSetup    func(mock sqlmock.Sqlmock, username string)
		expectedUser *models.User
		expectedErr  error
	}{
		{
			name:     "Успешный поиск",
			username: "testuser",
			mockSetup: func(mock sqlmock.Sqlmock, username string) {
				rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "address", "created_at", "updated_at"}).
					AddRow(testUser.ID, testUser.Username, testUser.PasswordHash, testUser.Address.String(),
						testUser.CreatedAt, testUser.UpdatedAt)
				mock.ExpectQuery(regexp.QuoteMeta(selectUserQuery)).WithArgs(username).WillReturnRows(rows)
			},
			expectedUser: testUser,
		},
		{
			name:     "Пользователь не найден",
			username: "notfounduser",
			mockSetup: func(mock sqlmock.Sqlmock, username string) {
				mock.ExpectQuery(regexp.QuoteMeta(selectUserQuery)).WithArgs(username).WillReturnError(sql.ErrNoRows)
			},
			expectedErr: repository.ErrUserNotFound,
		},
		{
			name:     "Ошибка базы данных",
			username: "erroruser",
			mockSetup: func(mock sqlmock.Sqlmock, username string) {
				mock.ExpectQuery(regexp.QuoteMeta(selectUserQuery)).WithArgs(username).
					WillReturnError(errors.New("database error"))
			},
			expectedErr: errors.New("ошибка выполнения запроса"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupUserRepoMock(t)
			tt.mockSetup(mock, tt.username)

			user, err := repo.GetUserByUsername(context.Background(), tt.username)

			assert.Equal(t, tt.expectedUser, user)
			if tt.expectedErr == nil {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				if errors.Is(tt.expectedErr, repository.ErrUserNotFound) {
					assert.ErrorIs(t, err, repository.ErrUserNotFound)
				} else {
					assert.Contains(t, err.Error(), "ошибка выполнения запроса")
				}
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "Не все ожидания мока были выполнены")
		})
	}
}

func TestMemoryUserRepository(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	ctx := context.Background()

	id, err := repo.CreateUser(ctx, &models.User{Username: "alice", PasswordHash: "h", Address: authorityAddr})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	t.Run("Имя занято", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, &models.User{Username: "alice", Address: vaultAddr})
		assert.ErrorIs(t, err, repository.ErrUsernameTaken)
	})

	t.Run("Адрес занят", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, &models.User{Username: "bob", Address: authorityAddr})
		assert.ErrorIs(t, err, repository.ErrUsernameTaken)
	})

	t.Run("Поиск", func(t *testing.T) {
		user, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, authorityAddr, user.Address)
		assert.False(t, user.CreatedAt.IsZero())

		_, err = repo.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, repository.ErrUserNotFound)
	})
}
