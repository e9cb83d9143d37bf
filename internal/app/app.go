// Package app assembles the wallet session from configuration. The HTTP
// service, the terminal UI and the one-shot commands all start here.
package app

import (
	"context"
	"errors"
	"fmt"

	"depositdapp/internal/config"
	"depositdapp/internal/contracts"
	"depositdapp/internal/ledger"
	"depositdapp/internal/session"
	"depositdapp/internal/wallet"

	"go.uber.org/zap"
)

// App holds the assembled components. Provider and Ledger are nil when no
// wallet provider is configured.
type App struct {
	Config   *config.AppConfig
	Log      *zap.Logger
	Session  *session.WalletSession
	Provider *wallet.EthProvider
	Ledger   *ledger.Endpoints
}

// Build binds the contracts and dials the provider. A missing provider is not
// an error: the session is created without one and reports it on Connect.
func Build(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	set, err := contracts.Bind(cfg.Addresses, cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("bind contracts: %w", err)
	}

	opts := []session.Option{
		session.WithLogger(log.Named("session")),
		session.WithExpectedChainID(cfg.Chain.ExpectedChainID),
	}

	provider, err := wallet.Dial(ctx, cfg.Wallet())
	if errors.Is(err, wallet.ErrNoProvider) {
		log.Warn("no wallet provider configured")
		return &App{
			Config:  cfg,
			Log:     log,
			Session: session.New(nil, session.Endpoints{}, opts...),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet provider: %w", err)
	}

	eps := ledger.Bind(set, provider.Backend(), ledger.ConfirmerConfig{
		PollInterval: cfg.Session.PollInterval,
		Timeout:      cfg.Session.ConfirmTimeout,
	})

	sess := session.New(provider, session.Endpoints{
		Token:       eps.Token,
		Vault:       eps.Vault,
		Collectible: eps.Collectible,
		Confirmer:   eps.Confirmer,
	}, opts...)

	log.Info("contracts bound",
		zap.String("token", set.TokenAddress.Hex()),
		zap.String("vault", set.VaultAddress.Hex()),
		zap.String("collectible", set.CollectibleAddress.Hex()),
	)

	return &App{
		Config:   cfg,
		Log:      log,
		Session:  sess,
		Provider: provider,
		Ledger:   &eps,
	}, nil
}

// HasProvider reports whether a wallet provider was dialed.
func (a *App) HasProvider() bool {
	return a.Provider != nil
}

func (a *App) Close() {
	if a.Provider != nil {
		a.Provider.Close()
	}
	_ = a.Log.Sync()
}
