package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/ledger"
)

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <mint>",
		Short: "Показать баланс личного счета",
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
			b, err := c.Balance(cmd.Context(), mint)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s (счет %s)\n", b.UIAmount, b.Account)
			return nil
		},
	}
}

func newMintCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Управление выпусками (для администраторов)",
	}

	var decimals uint8
	create := &cobra.Command{
		Use:   "create <symbol>",
		Short: "Создать выпуск",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			m, err := c.CreateMint(cmd.Context(), args[0], decimals)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Выпуск %s создан: %s\n", m.Symbol, m.Address)
			return nil
		},
	}
	create.Flags().Uint8Var(&decimals, "decimals", 0, "Число знаков после запятой")

	show := &cobra.Command{
		Use:   "show <mint>",
		Short: "Показать выпуск",
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
			m, err := c.GetMint(cmd.Context(), mint)
			if err != nil {
				return err
			}
			return a.printJSON(m)
		},
	}

	issue := &cobra.Command{
		Use:   "issue <mint> <owner> <amount>",
		Short: "Выпустить единицы на личный счет владельца",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			owner, err := address.Parse(args[1])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			m, err := c.GetMint(cmd.Context(), mint)
			if err != nil {
				return err
			}
			amount, err := parseUnits(args[2], m.Decimals)
			if err != nil {
				return err
			}
			t, err := c.MintTo(cmd.Context(), mint, owner, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Выпущено %s %s на счет %s\n", ledger.FormatAmount(t.Amount, m.Decimals), m.Symbol, t.To)
			return nil
		},
	}

	cmd.AddCommand(create, show, issue)
	return cmd
}
