// Package cli is the depositdapp command tree.
package cli

import (
	"context"
	"fmt"

	"depositdapp/internal/app"
	"depositdapp/internal/config"
	"depositdapp/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	quiet      bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "depositdapp",
		Short:         "Mint test tokens and deposit them into the vault",
		Long:          "depositdapp connects a local wallet to the token, vault and collectible contracts, shows balances and runs the mint and deposit workflows from the terminal or over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ./depositdapp.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Suppress log output")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newTUICmd(opts),
		newBalancesCmd(opts),
		newMintCmd(opts),
		newDepositCmd(opts),
	)

	return rootCmd
}

// build loads config and assembles the app. nopLog forces a silent logger,
// which the terminal UI needs to keep the screen intact.
func (o *rootOptions) build(cmd *cobra.Command, nopLog bool) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if !nopLog && !o.quiet {
		logger, err = logging.New(cfg.Log.Env, cfg.Log.Level)
		if err != nil {
			return nil, err
		}
	}

	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return a, nil
}
