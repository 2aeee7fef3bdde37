package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/clock"
	"github.com/maynagashev/tokenvault/internal/handlers"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/middleware"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/repository"
	"github.com/maynagashev/tokenvault/internal/services"
	"github.com/maynagashev/tokenvault/internal/storage"
	"github.com/maynagashev/tokenvault/internal/vault"
)

// MockVaultService is a mock implementation of VaultService interface.
type MockVaultService struct {
	mock.Mock
}

func (m *MockVaultService) Initialize(_ context.Context, caller, mint address.Address) (*models.Vault, error) {
	args := m.Called(caller, mint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockVaultService) Deposit(
	_ context.Context,
	caller address.Address,
	source *address.Address,
	amount int64,
) (*models.Transfer, error) {
	args := m.Called(caller, source, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transfer), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockVaultService) Lock(_ context.Context, caller address.Address, ts int64) (*models.Vault, error) {
	args := m.Called(caller, ts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockVaultService) Unlock(_ context.Context, caller address.Address) (*models.Vault, error) {
	args := m.Called(caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vault), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockVaultService) Withdraw(
	_ context.Context,
	caller address.Address,
	destination *address.Address,
	amount int64,
) (*models.Transfer, error) {
	args := m.Called(caller, destination, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transfer), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockVaultService) Status(_ context.Context, caller address.Address) (*models.VaultStatusResponse, error) {
	args := m.Called(caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VaultStatusResponse), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

func (m *MockVaultService) History(
	_ context.Context,
	caller address.Address,
	limit, offset int,
) (*models.TransferListResponse, error) {
	args := m.Called(caller, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TransferListResponse), args.Error(1) //nolint:errcheck // Acceptable for mocks
}

// withCaller добавляет claims пользователя в запрос.
func withCaller(req *http.Request, caller address.Address) *http.Request {
	return req.WithContext(middleware.WithClaims(req.Context(), &services.Claims{UserID: 1, Address: caller}))
}

func vaultRouter(h *handlers.VaultHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/vault", func(r chi.Router) {
		r.Post("/", h.Initialize)
		r.Get("/", h.Status)
		r.Post("/deposit", h.Deposit)
		r.Post("/lock", h.Lock)
		r.Post("/unlock", h.Unlock)
		r.Post("/withdraw", h.Withdraw)
		r.Get("/history", h.History)
		r.Post("/statements", h.CreateStatement)
		r.Get("/statements/{id}", h.GetStatement)
	})
	return r
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{vault.ErrAlreadyInitialized, http.StatusConflict, "already_initialized"},
		{vault.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
		{vault.ErrInvalidLockTime, http.StatusUnprocessableEntity, "invalid_lock_time"},
		{vault.ErrStillLocked, http.StatusLocked, "still_locked"},
		{vault.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
		{vault.ErrInsufficientVaultBalance, http.StatusUnprocessableEntity, "insufficient_vault_balance"},
		{vault.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{vault.ErrInvalidAccount, http.StatusBadRequest, "invalid_account"},
		{vault.ErrVaultNotFound, http.StatusNotFound, "vault_not_found"},
		{services.ErrMintNotFound, http.StatusNotFound, handlers.CodeMintNotFound},
		{services.ErrForbidden, http.StatusForbidden, handlers.CodeForbidden},
		{services.ErrStatementNotFound, http.StatusNotFound, handlers.CodeStatementNotFound},
		{errors.New("boom"), http.StatusInternalServerError, vault.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := handlers.ErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestVaultHandler_MockedErrors(t *testing.T) {
	caller, err := address.NewIdentity()
	require.NoError(t, err)

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		setupMock      func(m *MockVaultService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:   "Вывод из заблокированного хранилища",
			method: http.MethodPost, path: "/api/vault/withdraw", body: `{"amount": 10}`,
			setupMock: func(m *MockVaultService) {
				m.On("Withdraw", caller, (*address.Address)(nil), int64(10)).Return(nil, vault.ErrStillLocked).Once()
			},
			expectedStatus: http.StatusLocked,
			expectedCode:   "still_locked",
		},
		{
			name:   "Блокировка в прошлом",
			method: http.MethodPost, path: "/api/vault/lock", body: `{"unlock_timestamp": 5}`,
			setupMock: func(m *MockVaultService) {
				m.On("Lock", caller, int64(5)).Return(nil, vault.ErrInvalidLockTime).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   "invalid_lock_time",
		},
		{
			name:   "Хранилище не найдено",
			method: http.MethodGet, path: "/api/vault/",
			setupMock: func(m *MockVaultService) {
				m.On("Status", caller).Return(nil, vault.ErrVaultNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "vault_not_found",
		},
		{
			name:           "Сломанный JSON",
			method:         http.MethodPost, path: "/api/vault/deposit", body: `{"amount":`,
			setupMock:      func(_ *MockVaultService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   handlers.CodeInvalidRequest,
		},
		{
			name:   "Внутренняя ошибка",
			method: http.MethodPost, path: "/api/vault/unlock",
			setupMock: func(m *MockVaultService) {
				m.On("Unlock", caller).Return(nil, errors.New("db is down")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   vault.CodeInternal,
		},
		{
			name:   "Некорректные параметры журнала",
			method: http.MethodGet, path: "/api/vault/history?limit=abc&offset=-1",
			setupMock: func(m *MockVaultService) {
				m.On("History", caller, 0, -1).Return(nil, vault.ErrVaultNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "vault_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockVaultService)
			tt.setupMock(mockService)
			handler := handlers.NewVaultHandler(mockService, nil, logger.Nop())

			req := withCaller(httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)), caller)
			rr := httptest.NewRecorder()
			vaultRouter(handler).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedCode, body.Code)
			assert.NotEmpty(t, body.Message)
			mockService.AssertExpectations(t)
		})
	}

	t.Run("Отсутствует адрес в контексте", func(t *testing.T) {
		mockService := new(MockVaultService) // No expectations needed
		handler := handlers.NewVaultHandler(mockService, nil, logger.Nop())

		req := httptest.NewRequest(http.MethodGet, "/api/vault/", nil)
		rr := httptest.NewRecorder()
		vaultRouter(handler).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "Внутренняя ошибка сервера")
		mockService.AssertNotCalled(t, "Status", mock.Anything)
	})
}

// --- End-to-end over the memory store ---

type handlerFixture struct {
	router *chi.Mux
	clock  *clock.Manual
	user   address.Address
	mint   *models.Mint
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	ctx := context.Background()

	deriver, err := address.NewDeriver(address.ProgramID, 0)
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	machine := vault.NewMachine(store, deriver, clk, logger.Nop(), nil)
	tokens := services.NewTokenService(store, deriver, logger.Nop())

	admin, err := address.NewIdentity()
	require.NoError(t, err)
	user, err := address.NewIdentity()
	require.NoError(t, err)
	mint, err := tokens.CreateMint(ctx, admin, "GLD", 0)
	require.NoError(t, err)
	_, err = tokens.MintTo(ctx, admin, mint.Address, user, 1000)
	require.NoError(t, err)

	handler := handlers.NewVaultHandler(
		services.NewVaultService(machine, logger.Nop()),
		services.NewStatementService(machine, storage.NewMemoryStorage(), clk, logger.Nop()),
		logger.Nop(),
	)
	return &handlerFixture{router: vaultRouter(handler), clock: clk, user: user, mint: mint}
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := withCaller(httptest.NewRequest(method, path, strings.NewReader(body)), f.user)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestVaultHandler_Lifecycle(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(t, http.MethodPost, "/api/vault/", `{"mint":"`+f.mint.Address.String()+`"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created models.Vault
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, f.user, created.Authority)

	rr = f.do(t, http.MethodPost, "/api/vault/", `{"mint":"`+f.mint.Address.String()+`"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/vault/deposit", `{"amount":400}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var deposit models.Transfer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &deposit))
	assert.Equal(t, models.TransferDeposit, deposit.Kind)
	assert.Equal(t, uint64(400), deposit.Amount)

	rr = f.do(t, http.MethodPost, "/api/vault/deposit", `{"amount":5000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "insufficient_funds")

	unlockAt := f.clock.Now().Add(time.Minute).Unix()
	rr = f.do(t, http.MethodPost, "/api/vault/lock", `{"unlock_timestamp":`+jsonInt(unlockAt)+`}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, body := range []string{`{"amount":1}`, `{"amount":0}`, `{"amount":-1}`} {
		rr = f.do(t, http.MethodPost, "/api/vault/withdraw", body)
		assert.Equal(t, http.StatusLocked, rr.Code, body)
		assert.Contains(t, rr.Body.String(), "still_locked", body)
	}

	rr = f.do(t, http.MethodPost, "/api/vault/unlock", "")
	assert.Equal(t, http.StatusLocked, rr.Code)

	f.clock.Advance(time.Minute)
	rr = f.do(t, http.MethodPost, "/api/vault/unlock", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/api/vault/withdraw", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_amount")

	rr = f.do(t, http.MethodPost, "/api/vault/withdraw", `{"amount":100}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/vault/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var status models.VaultStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, uint64(300), status.Balance)
	assert.Equal(t, "300", status.UIBalance)
	assert.Equal(t, "unlocked", status.State)

	rr = f.do(t, http.MethodGet, "/api/vault/history?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page models.TransferListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	require.Len(t, page.Transfers, 1)
	assert.Equal(t, models.TransferWithdraw, page.Transfers[0].Kind)

	rr = f.do(t, http.MethodPost, "/api/vault/statements", "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var ref models.StatementResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ref))

	rr = f.do(t, http.MethodGet, "/api/vault/statements/"+ref.ID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	statement, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	var decoded models.Statement
	require.NoError(t, json.Unmarshal(statement, &decoded))
	assert.Equal(t, uint64(300), decoded.Status.Balance)
	assert.Len(t, decoded.Transfers, 2)

	rr = f.do(t, http.MethodGet, "/api/vault/statements/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/vault/statements/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
