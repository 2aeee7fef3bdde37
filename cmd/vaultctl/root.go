package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maynagashev/tokenvault/internal/api"
	"github.com/maynagashev/tokenvault/internal/ledger"
)

const (
	envServerURL     = "VAULTCTL_SERVER"
	envToken         = "VAULTCTL_TOKEN"
	defaultServerURL = "https://localhost:8443"
	tokenFileName    = ".vaultctl-token"
	tokenFilePerm    = 0o600
	requestTimeout   = 30 * time.Second
)

// app хранит общие параметры команд.
type app struct {
	out       io.Writer
	serverURL string
	token     string
	tokenFile string
	insecure  bool

	// Подменяются в тестах.
	newClient func(a *app) api.Client
	now       func() time.Time
}

func newApp(out io.Writer) *app {
	return &app{
		out:       out,
		newClient: defaultClient,
		now:       time.Now,
	}
}

func defaultClient(a *app) api.Client {
	hc := &http.Client{Timeout: requestTimeout}
	if a.insecure {
		hc.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // флаг --insecure для самоподписанных сертификатов
		}
	}
	return api.NewHTTPClient(a.serverURL, hc)
}

// client возвращает клиента с сохраненным токеном.
func (a *app) client() (api.Client, error) {
	token := a.token
	if token == "" {
		data, err := os.ReadFile(a.tokenFile)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, api.ErrNoToken
			}
			return nil, fmt.Errorf("ошибка чтения токена: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	c := a.newClient(a)
	c.SetAuthToken(token)
	return c, nil
}

// saveToken сохраняет токен для последующих команд.
func (a *app) saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0o700); err != nil {
		return fmt.Errorf("ошибка создания каталога для токена: %w", err)
	}
	if err := os.WriteFile(a.tokenFile, []byte(token+"\n"), tokenFilePerm); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	return nil
}

// printJSON выводит v с отступами.
func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseUnits переводит сумму в единицах интерфейса в минимальные единицы.
func parseUnits(s string, decimals uint8) (int64, error) {
	units, err := ledger.ParseAmount(s, decimals)
	if err != nil {
		return 0, err
	}
	if units == 0 || units > math.MaxInt64 {
		return 0, fmt.Errorf("сумма %q вне допустимого диапазона", s)
	}
	return int64(units), nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return tokenFileName
	}
	return filepath.Join(home, tokenFileName)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// newRootCmd собирает дерево команд.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Клиент сервера TokenVault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.serverURL, "server", envOr(envServerURL, defaultServerURL),
		"URL сервера (env: "+envServerURL+")")
	flags.StringVar(&a.token, "token", os.Getenv(envToken), "JWT токен (env: "+envToken+")")
	flags.StringVar(&a.tokenFile, "token-file", defaultTokenFile(), "Файл для хранения токена")
	flags.BoolVar(&a.insecure, "insecure", false, "Не проверять TLS-сертификат сервера")

	root.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newInitCmd(a),
		newDepositCmd(a),
		newLockCmd(a),
		newUnlockCmd(a),
		newWithdrawCmd(a),
		newStatusCmd(a),
		newHistoryCmd(a),
		newStatementCmd(a),
		newBalanceCmd(a),
		newMintCmd(a),
	)
	return root
}

func newRegisterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Зарегистрировать пользователя",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.newClient(a).Register(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Пользователь %s зарегистрирован, адрес %s\n", resp.Username, resp.Address)
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Войти и сохранить токен",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.newClient(a).Login(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if err = a.saveToken(resp.Token); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Вход выполнен, адрес %s\n", resp.Address)
			return nil
		},
	}
}

// run выполняет команду с общим контекстом.
func run(a *app, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
