// Package wallet implements the provider boundary: account access, chain id
// lookup and transaction signing for one locally held key.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrNoProvider means nothing is configured to talk to a chain or sign.
	ErrNoProvider     = errors.New("no wallet provider configured: set an RPC URL and a private key or keystore")
	ErrNotAuthorized  = errors.New("account access has not been granted")
	ErrUnknownAccount = errors.New("account is not managed by this provider")
)

type Config struct {
	RPCURL           string
	PrivateKeyHex    string
	KeystorePath     string
	KeystorePassword string
}

// Configured reports whether cfg names both a node and a key source.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.RPCURL) != "" && (c.PrivateKeyHex != "" || c.KeystorePath != "")
}

// ChainReader is the subset of a node client the provider needs.
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthProvider is a wallet provider backed by a JSON-RPC node and one key.
type EthProvider struct {
	client *ethclient.Client
	chain  ChainReader
	keys   KeySource

	mu      sync.Mutex
	key     *ecdsa.PrivateKey
	account common.Address
}

// Dial connects to the node named in cfg. It returns ErrNoProvider when cfg
// does not describe a usable provider.
func Dial(ctx context.Context, cfg Config) (*EthProvider, error) {
	if !cfg.Configured() {
		return nil, ErrNoProvider
	}
	keys, err := keySourceFor(cfg)
	if err != nil {
		return nil, err
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	return &EthProvider{client: cli, chain: cli, keys: keys}, nil
}

func newProvider(chain ChainReader, keys KeySource) *EthProvider {
	return &EthProvider{chain: chain, keys: keys}
}

// RequestAccounts unlocks the key and returns the single account it controls.
func (p *EthProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key == nil {
		key, err := p.keys.Unlock()
		if err != nil {
			return nil, err
		}
		p.key = key
		p.account = addressOf(key)
	}
	return []common.Address{p.account}, nil
}

func (p *EthProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.chain.ChainID(ctx)
}

// Signer returns transact options bound to account. RequestAccounts must have
// succeeded first.
func (p *EthProvider) Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	p.mu.Lock()
	key, current := p.key, p.account
	p.mu.Unlock()

	if key == nil {
		return nil, ErrNotAuthorized
	}
	if account != current {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}

	chainID, err := p.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Backend exposes the node client for binding contracts.
func (p *EthProvider) Backend() *ethclient.Client {
	return p.client
}

// Ping checks the node is reachable.
func (p *EthProvider) Ping(ctx context.Context) error {
	if p.chain == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := p.chain.BlockNumber(ctx)
	return err
}

func (p *EthProvider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
