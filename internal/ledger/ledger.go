// Package ledger binds the token, vault and collectible contracts over a
// go-ethereum backend.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"depositdapp/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is what the bound contracts and the confirmer need from a node.
type Backend interface {
	bind.ContractBackend
	ReceiptReader
}

// Endpoints groups the three bound contracts with a confirmer on the same backend.
type Endpoints struct {
	Token       *Token
	Vault       *Vault
	Collectible *Collectible
	Confirmer   *Confirmer
}

// Bind creates all endpoints for the deployed contract set.
func Bind(set *contracts.Set, backend Backend, cfg ConfirmerConfig) Endpoints {
	return Endpoints{
		Token:       NewToken(set.TokenAddress, set.TokenABI, backend),
		Vault:       NewVault(set.VaultAddress, set.VaultABI, backend),
		Collectible: NewCollectible(set.CollectibleAddress, set.CollectibleABI, backend),
		Confirmer:   NewConfirmer(backend, cfg),
	}
}

type endpoint struct {
	address  common.Address
	contract *bind.BoundContract
}

func newEndpoint(address common.Address, parsed abi.ABI, backend bind.ContractBackend) endpoint {
	return endpoint{
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}
}

func (e endpoint) Address() common.Address {
	return e.address
}

func (e endpoint) callUint(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := e.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

func (e endpoint) transact(ctx context.Context, opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	if opts == nil {
		return nil, fmt.Errorf("%s: no signer", method)
	}
	o := *opts
	o.Context = ctx
	tx, err := e.contract.Transact(&o, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s tx: %w", method, err)
	}
	return tx, nil
}

// Token is the fungible token endpoint.
type Token struct{ endpoint }

func NewToken(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *Token {
	return &Token{newEndpoint(address, parsed, backend)}
}

func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", owner)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callUint(ctx, "allowance", owner, spender)
}

func (t *Token) Mint(ctx context.Context, opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.transact(ctx, opts, "mint", to, amount)
}

func (t *Token) Approve(ctx context.Context, opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.transact(ctx, opts, "approve", spender, amount)
}

// Vault is the deposit-tracking endpoint.
type Vault struct{ endpoint }

func NewVault(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *Vault {
	return &Vault{newEndpoint(address, parsed, backend)}
}

func (v *Vault) Deposits(ctx context.Context, owner common.Address) (*big.Int, error) {
	return v.callUint(ctx, "deposits", owner)
}

func (v *Vault) Deposit(ctx context.Context, opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return v.transact(ctx, opts, "deposit", amount)
}

// Collectible is the non-fungible token endpoint. Only counts are read.
type Collectible struct{ endpoint }

func NewCollectible(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *Collectible {
	return &Collectible{newEndpoint(address, parsed, backend)}
}

func (c *Collectible) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return c.callUint(ctx, "balanceOf", owner)
}
