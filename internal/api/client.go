// Package api содержит HTTP-клиент сервера TokenVault.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/models"
	"github.com/maynagashev/tokenvault/internal/vault"
)

const defaultTimeout = 30 * time.Second

// ErrAuthorization сигнализирует об ошибке авторизации (401).
var ErrAuthorization = errors.New("ошибка авторизации")

// ErrNoToken возвращается, если запрос требует входа, а токена нет.
var ErrNoToken = errors.New("токен аутентификации отсутствует, выполните вход")

// APIError - ошибка, возвращенная сервером.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ошибка сервера: статус %d", e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// Unwrap позволяет сравнивать ошибку сервера с ошибками хранилища через errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrAuthorization
	}
	return vault.FromCode(e.Code)
}

// Client определяет интерфейс для взаимодействия с API сервера TokenVault.
type Client interface {
	// Register регистрирует нового пользователя.
	Register(ctx context.Context, username, password string) (*models.RegisterResponse, error)
	// Login аутентифицирует пользователя и запоминает JWT токен.
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
	// SetAuthToken устанавливает JWT токен для аутентифицированных запросов.
	SetAuthToken(token string)

	InitializeVault(ctx context.Context, mint address.Address) (*models.Vault, error)
	Deposit(ctx context.Context, amount int64, source *address.Address) (*models.Transfer, error)
	Lock(ctx context.Context, unlockTimestamp int64) (*models.Vault, error)
	Unlock(ctx context.Context) (*models.Vault, error)
	Withdraw(ctx context.Context, amount int64, destination *address.Address) (*models.Transfer, error)
	Status(ctx context.Context) (*models.VaultStatusResponse, error)
	History(ctx context.Context, limit, offset int) (*models.TransferListResponse, error)
	CreateStatement(ctx context.Context) (*models.StatementResponse, error)
	// DownloadStatement возвращает тело выписки. Вызывающий закрывает его.
	DownloadStatement(ctx context.Context, id uuid.UUID) (io.ReadCloser, error)

	GetMint(ctx context.Context, mint address.Address) (*models.Mint, error)
	Balance(ctx context.Context, mint address.Address) (*models.BalanceResponse, error)
	CreateMint(ctx context.Context, symbol string, decimals uint8) (*models.Mint, error)
	MintTo(ctx context.Context, mint, owner address.Address, amount int64) (*models.Transfer, error)
}

// httpClient реализует интерфейс Client для взаимодействия с сервером по HTTP.
type httpClient struct {
	baseURL    string       // Базовый URL сервера, например "https://localhost:8443"
	httpClient *http.Client // HTTP клиент для выполнения запросов
	authToken  string       // JWT токен для аутентифицированных запросов
}

// NewHTTPClient создает новый экземпляр API клиента. hc может быть nil.
func NewHTTPClient(baseURL string, hc *http.Client) Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &httpClient{baseURL: baseURL, httpClient: hc}
}

// SetAuthToken реализует Client.
func (c *httpClient) SetAuthToken(token string) {
	c.authToken = token
}

// Register реализует Client.
func (c *httpClient) Register(ctx context.Context, username, password string) (*models.RegisterResponse, error) {
	var resp models.RegisterResponse
	req := models.RegisterRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/register", nil, req, &resp, false); err != nil {
		return nil, fmt.Errorf("ошибка регистрации: %w", err)
	}
	return &resp, nil
}

// Login реализует Client.
func (c *httpClient) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", nil, req, &resp, false); err != nil {
		return nil, fmt.Errorf("ошибка входа: %w", err)
	}
	if resp.Token == "" {
		return nil, errors.New("сервер вернул пустой токен")
	}

	// Сохраняем токен в клиенте для последующих запросов
	c.authToken = resp.Token
	return &resp, nil
}

// InitializeVault реализует Client.
func (c *httpClient) InitializeVault(ctx context.Context, mint address.Address) (*models.Vault, error) {
	var v models.Vault
	if err := c.doJSON(ctx, http.MethodPost, "/api/vault", nil, models.InitializeVaultRequest{Mint: mint}, &v, true); err != nil {
		return nil, err
	}
	return &v, nil
}

// Deposit реализует Client.
func (c *httpClient) Deposit(ctx context.Context, amount int64, source *address.Address) (*models.Transfer, error) {
	var t models.Transfer
	req := models.DepositRequest{Amount: amount, Source: source}
	if err := c.doJSON(ctx, http.MethodPost, "/api/vault/deposit", nil, req, &t, true); err != nil {
		return nil, err
	}
	return &t, nil
}

// Lock реализует Client.
func (c *httpClient) Lock(ctx context.Context, unlockTimestamp int64) (*models.Vault, error) {
	var v models.Vault
	req := models.LockRequest{UnlockTimestamp: unlockTimestamp}
	if err := c.doJSON(ctx, http.MethodPost, "/api/vault/lock", nil, req, &v, true); err != nil {
		return nil, err
	}
	return &v, nil
}

// Unlock реализует Client.
func (c *httpClient) Unlock(ctx context.Context) (*models.Vault, error) {
	var v models.Vault
	if err := c.doJSON(ctx, http.MethodPost, "/api/vault/unlock", nil, nil, &v, true); err != nil {
		return nil, err
	}
	return &v, nil
}

// Withdraw реализует Client.
func (c *httpClient) Withdraw(
	ctx context.Context,
	amount int64,
	destination *address.Address,
) (*models.Transfer, error) {
	var t models.Transfer
	req := models.WithdrawRequest{Amount: amount, Destination: destination}
	if err := c.doJSON(ctx, http.MethodPost, "/api/vault/withdraw", nil, req, &t, true); err != nil {
		return nil, err
	}
	return &t, nil
}

// Status реализует Client.
func (c *httpClient) Status(ctx context.Context) (*models.VaultStatusResponse, error) {
	var s models.VaultStatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/vault", nil, nil, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

// History реализует Client.
func (c *httpClient) History(ctx context.Context, limit, offset int) (*models.TransferListResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}

	var page models.TransferListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/vault/history", query, nil, &page, true); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateStatement реализует Client.
func (c *httpClient) CreateStatement(ctx context.Context) (*models.StatementResponse, error) {
	var ref models.StatementResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/vault/statements", nil, nil, &ref, true); err != nil {
		return nil, err
	}
	return &ref, nil
}

// DownloadStatement реализует Client.
func (c *httpClient) DownloadStatement(ctx context.Context, id uuid.UUID) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/vault/statements/"+id.String(), nil, nil, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetMint реализует Client.
func (c *httpClient) GetMint(ctx context.Context, mint address.Address) (*models.Mint, error) {
	var m models.Mint
	if err := c.doJSON(ctx, http.MethodGet, "/api/tokens/"+mint.String(), nil, nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// Balance реализует Client.
func (c *httpClient) Balance(ctx context.Context, mint address.Address) (*models.BalanceResponse, error) {
	var b models.BalanceResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/tokens/"+mint.String()+"/balance", nil, nil, &b, true); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateMint реализует Client.
func (c *httpClient) CreateMint(ctx context.Context, symbol string, decimals uint8) (*models.Mint, error) {
	var m models.Mint
	req := models.CreateMintRequest{Symbol: symbol, Decimals: decimals}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tokens/mints", nil, req, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

// MintTo реализует Client.
func (c *httpClient) MintTo(
	ctx context.Context,
	mint, owner address.Address,
	amount int64,
) (*models.Transfer, error) {
	var t models.Transfer
	req := models.MintToRequest{Owner: owner, Amount: amount}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tokens/"+mint.String()+"/mint", nil, req, &t, true); err != nil {
		return nil, err
	}
	return &t, nil
}

// doJSON выполняет запрос и декодирует JSON-ответ в out.
func (c *httpClient) doJSON(
	ctx context.Context,
	method, path string,
	query url.Values,
	in, out any,
	auth bool,
) error {
	resp, err := c.do(ctx, method, path, query, in, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка декодирования ответа %s %s: %w", method, path, err)
	}
	return nil
}

// do выполняет запрос. Для статусов вне 2xx тело закрывается и возвращается *APIError.
func (c *httpClient) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	in any,
	auth bool,
) (*http.Response, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования URL %s: %w", path, err)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, marshalErr := json.Marshal(in)
		if marshalErr != nil {
			return nil, fmt.Errorf("ошибка кодирования запроса: %w", marshalErr)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if c.authToken == "" {
			return nil, ErrNoToken
		}
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := &APIError{Status: resp.StatusCode}
	var errBody models.ErrorResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr == nil {
		apiErr.Code = errBody.Code
		apiErr.Message = errBody.Message
	}
	return nil, apiErr
}
