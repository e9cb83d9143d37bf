package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"depositdapp/internal/app"
	"depositdapp/internal/session"
	"depositdapp/internal/tui"
	"depositdapp/internal/units"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive wallet screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return tui.Run(cmd.Context(), a.Session, a.Config.Session.DepositAmount,
				tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			)
		},
	}
}

func newBalancesCmd(opts *rootOptions) *cobra.Command {
	var verbose bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Connect and print token, vault and collectible balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Connect(cmd.Context()); err != nil {
				return err
			}

			var allowance string
			if verbose {
				allowance, err = vaultAllowance(cmd.Context(), a)
				if err != nil {
					return err
				}
			}
			return writeState(cmd.OutOrStdout(), a.Session.State(), allowance, asJSON)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also show the vault's token allowance")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newMintCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mint",
		Short: fmt.Sprintf("Mint %s test tokens to the connected account", session.MintAmount),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Connect(cmd.Context()); err != nil {
				return err
			}
			if err := a.Session.Mint(cmd.Context(), a.Session.Info().Account); err != nil {
				return err
			}
			return writeState(cmd.OutOrStdout(), a.Session.State(), "", false)
		},
	}
}

func newDepositCmd(opts *rootOptions) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Approve and deposit tokens into the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.build(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if amount == "" {
				amount = a.Config.Session.DepositAmount
			}
			if err := a.Session.Connect(cmd.Context()); err != nil {
				return err
			}
			if err := a.Session.Deposit(cmd.Context(), a.Session.Info().Account, amount); err != nil {
				return err
			}
			return writeState(cmd.OutOrStdout(), a.Session.State(), "", false)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Token amount (default session.deposit_amount)")

	return cmd
}

func vaultAllowance(ctx context.Context, a *app.App) (string, error) {
	if a.Ledger == nil {
		return "", session.ErrNoProvider
	}
	owner := a.Session.Info().Account
	raw, err := a.Ledger.Token.Allowance(ctx, owner, a.Ledger.Vault.Address())
	if err != nil {
		return "", fmt.Errorf("read allowance: %w", err)
	}
	return units.Format(raw), nil
}

type stateOutput struct {
	session.State
	Allowance string `json:"allowance,omitempty"`
}

func writeState(w io.Writer, st session.State, allowance string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stateOutput{State: st, Allowance: allowance})
	}

	rows := [][2]string{
		{"account", st.Session.Account.Hex()},
		{"chain", fmt.Sprintf("%d", st.Session.ChainID)},
		{"tokens", st.Balances.Fungible.String()},
		{"deposited", st.Balances.Deposited.String()},
		{"collectibles", fmt.Sprintf("%d", st.Balances.Collectibles)},
	}
	if allowance != "" {
		rows = append(rows, [2]string{"allowance", allowance})
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-13s %s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}
