package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/ledger"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init <mint>",
		Short: "Создать хранилище для выпуска",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			v, err := c.InitializeVault(cmd.Context(), mint)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Хранилище создано: %s\nКастодиальный счет: %s\n", v.Address, v.TokenAccount)
			return nil
		},
	}
}

// optionalAddress разбирает необязательный адрес из флага.
func optionalAddress(s string) (*address.Address, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // адрес не задан
	}
	addr, err := address.Parse(s)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func newDepositCmd(a *app) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Пополнить хранилище с личного счета",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := optionalAddress(source)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			status, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			amount, err := parseUnits(args[0], status.Decimals)
			if err != nil {
				return err
			}
			t, err := c.Deposit(cmd.Context(), amount, src)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Зачислено %s %s\n", ledger.FormatAmount(t.Amount, status.Decimals), status.Symbol)
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Счет-источник (по умолчанию личный счет)")
	return cmd
}

func newWithdrawCmd(a *app) *cobra.Command {
	var destination string
	cmd := &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Вывести средства из разблокированного хранилища",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := optionalAddress(destination)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			status, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			amount, err := parseUnits(args[0], status.Decimals)
			if err != nil {
				return err
			}
			t, err := c.Withdraw(cmd.Context(), amount, dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Выведено %s %s на счет %s\n",
				ledger.FormatAmount(t.Amount, status.Decimals), status.Symbol, t.To)
			return nil
		},
	}
	cmd.Flags().StringVar(&destination, "to", "", "Счет назначения (по умолчанию личный счет)")
	return cmd
}

// parseUntil принимает время в RFC 3339 или секунды Unix.
func parseUntil(s string) (int64, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ts, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("некорректное время %q: ожидается RFC 3339 или секунды Unix", s)
	}
	return t.Unix(), nil
}

func newLockCmd(a *app) *cobra.Command {
	var (
		until string
		in    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Заблокировать хранилище до указанного времени",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ts int64
			switch {
			case until != "" && in != 0:
				return errors.New("укажите только один из флагов --until и --in")
			case until != "":
				var err error
				if ts, err = parseUntil(until); err != nil {
					return err
				}
			case in > 0:
				ts = a.now().Add(in).Unix()
			default:
				return errors.New("укажите --until или положительный --in")
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			v, err := c.Lock(cmd.Context(), ts)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Хранилище заблокировано до %s\n", formatUnix(v.UnlockTimestamp))
			return nil
		},
	}
	cmd.Flags().StringVar(&until, "until", "", "Время разблокировки (RFC 3339 или секунды Unix)")
	cmd.Flags().DurationVar(&in, "in", 0, "Длительность блокировки, например 72h")
	return cmd
}

func newUnlockCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Снять истекшую блокировку",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if _, err = c.Unlock(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Хранилище разблокировано")
			return nil
		},
	}
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Показать состояние хранилища",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			s, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(s)
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Хранилище:\t%s\n", s.Vault.Address)
			fmt.Fprintf(w, "Выпуск:\t%s (%s)\n", s.Symbol, s.Vault.Mint)
			fmt.Fprintf(w, "Баланс:\t%s\n", s.UIBalance)
			fmt.Fprintf(w, "Состояние:\t%s\n", s.State)
			if s.Vault.IsLocked {
				fmt.Fprintf(w, "Разблокировка:\t%s\n", formatUnix(s.Vault.UnlockTimestamp))
			}
			fmt.Fprintf(w, "Вывод доступен:\t%t\n", s.Withdrawable)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Вывести ответ сервера в JSON")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать журнал движений хранилища",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			page, err := c.History(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(page.Transfers) == 0 {
				fmt.Fprintln(a.out, "Движений нет")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ВРЕМЯ\tВИД\tСУММА\tОТКУДА\tКУДА")
			for _, t := range page.Transfers {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					t.CreatedAt.UTC().Format(time.RFC3339), t.Kind, t.Amount, t.From, t.To)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Размер страницы (по умолчанию 50, не больше 500)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Смещение")
	return cmd
}

func newStatementCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Архивные выписки по хранилищу",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Сохранить выписку в архив",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ref, err := c.CreateStatement(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Выписка сохранена: %s\n", ref.ID)
			return nil
		},
	}

	var output string
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Скачать выписку",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("некорректный идентификатор выписки: %w", err)
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			body, err := c.DownloadStatement(cmd.Context(), id)
			if err != nil {
				return err
			}
			defer body.Close()

			var dst io.Writer = a.out
			if output != "" {
				f, createErr := os.Create(output)
				if createErr != nil {
					return fmt.Errorf("ошибка создания файла: %w", createErr)
				}
				defer f.Close()
				dst = f
			}
			if _, err = io.Copy(dst, body); err != nil {
				return fmt.Errorf("ошибка записи выписки: %w", err)
			}
			return nil
		},
	}
	get.Flags().StringVarP(&output, "output", "o", "", "Файл для сохранения (по умолчанию stdout)")

	cmd.AddCommand(create, get)
	return cmd
}
