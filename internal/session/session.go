// Package session holds a connected wallet, its balances across the token,
// vault and collectible contracts, and runs the mint and deposit workflows.
//
// Every operation records its failure in the shared error field and also
// returns it. Listeners registered with Subscribe are told about every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"depositdapp/internal/units"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

const (
	// MintAmount is minted to the connected account on every Mint.
	MintAmount = "10000"
	// GasLimit is supplied with mint and deposit transactions. Approvals are estimated.
	GasLimit uint64 = 600_000
)

var mintAmount = units.MustParse(MintAmount)

// Provider is the wallet capability the session is given.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Signer(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

type TokenEndpoint interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Mint(ctx context.Context, opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error)
	Approve(ctx context.Context, opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

type VaultEndpoint interface {
	Address() common.Address
	Deposits(ctx context.Context, owner common.Address) (*big.Int, error)
	Deposit(ctx context.Context, opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
}

type CollectibleEndpoint interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
}

// Confirmer blocks until a transaction is mined successfully.
type Confirmer interface {
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Endpoints are the contract handles the session reads and writes through.
type Endpoints struct {
	Token       TokenEndpoint
	Vault       VaultEndpoint
	Collectible CollectibleEndpoint
	Confirmer   Confirmer
}

type Option func(*WalletSession)

func WithLogger(log *zap.Logger) Option {
	return func(s *WalletSession) {
		if log != nil {
			s.log = log
		}
	}
}

// WithExpectedChainID makes Connect fail when the provider is on another chain.
func WithExpectedChainID(id int64) Option {
	return func(s *WalletSession) {
		s.expectedChainID = id
	}
}

type subscription struct {
	id int
	fn Listener
}

// WalletSession is safe for concurrent use. Only one mint or deposit runs at
// a time; a second one fails with ErrBusy.
type WalletSession struct {
	provider        Provider
	eps             Endpoints
	log             *zap.Logger
	expectedChainID int64

	mu        sync.RWMutex
	state     State
	busy      bool
	listeners []subscription
	nextID    int
}

// New creates a disconnected session. A nil provider makes Connect fail
// with ErrNoProvider.
func New(provider Provider, eps Endpoints, opts ...Option) *WalletSession {
	s := &WalletSession{
		provider: provider,
		eps:      eps,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect requests account access and the chain id, then refreshes balances.
// A balance refresh failure is returned (as ErrBalanceRead) but leaves the
// session connected.
func (s *WalletSession) Connect(ctx context.Context) error {
	const op = "connect"
	if s.provider == nil {
		return s.fail(op, ErrNoProvider)
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = errors.New("wallet returned no accounts")
	}
	if err != nil {
		s.resetSession()
		return s.fail(op, wrap(ErrConnection, err))
	}

	chainID, err := s.provider.ChainID(ctx)
	if err != nil {
		s.resetSession()
		return s.fail(op, wrap(ErrConnection, err))
	}
	if s.expectedChainID != 0 && chainID.Cmp(big.NewInt(s.expectedChainID)) != 0 {
		s.resetSession()
		return s.fail(op, wrap(ErrConnection, fmt.Errorf("wallet is on chain %s, expected %d", chainID, s.expectedChainID)))
	}

	s.mu.Lock()
	s.state.Session = Info{Account: accounts[0], ChainID: chainID.Int64(), Connected: true}
	s.state.Balances = Snapshot{}
	s.mu.Unlock()

	s.log.Info("wallet connected", zap.String("account", accounts[0].Hex()), zap.String("chain_id", chainID.String()))
	s.emit(EventConnected, op, nil)

	_, err = s.ReadBalances(ctx)
	return err
}

// Disconnect forgets the account and everything derived from it.
func (s *WalletSession) Disconnect() {
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
	s.emit(EventDisconnected, "", nil)
}

// ReadBalances performs three independent reads for the session account. The
// reads are not atomic: a block landing between them can make the snapshot
// mix two chain states. The stored snapshot is replaced only when all three
// succeed.
func (s *WalletSession) ReadBalances(ctx context.Context) (Snapshot, error) {
	const op = "balances"
	info := s.Info()
	if !info.Connected {
		return Snapshot{}, s.fail(op, ErrNotConnected)
	}

	snap, err := s.readAll(ctx, info.Account)
	if err != nil {
		return Snapshot{}, s.fail(op, wrap(ErrBalanceRead, err))
	}

	s.mu.Lock()
	stale := s.state.Session.Account != info.Account || !s.state.Session.Connected
	if !stale {
		s.state.Balances = snap
	}
	s.mu.Unlock()

	if !stale {
		s.emit(EventBalances, op, nil)
	}
	return snap, nil
}

func (s *WalletSession) readAll(ctx context.Context, account common.Address) (Snapshot, error) {
	fungible, err := s.eps.Token.BalanceOf(ctx, account)
	if err != nil {
		return Snapshot{}, err
	}
	deposited, err := s.eps.Vault.Deposits(ctx, account)
	if err != nil {
		return Snapshot{}, err
	}
	count, err := s.eps.Collectible.BalanceOf(ctx, account)
	if err != nil {
		return Snapshot{}, err
	}
	if !count.IsUint64() {
		return Snapshot{}, fmt.Errorf("collectible count out of range: %s", count)
	}
	return Snapshot{
		Fungible:     units.FromWei(fungible),
		Deposited:    units.FromWei(deposited),
		Collectibles: count.Uint64(),
	}, nil
}

// Mint mints MintAmount tokens to account, waits for confirmation and
// refreshes the fungible balance only.
func (s *WalletSession) Mint(ctx context.Context, account common.Address) error {
	const op = "mint"
	if err := s.checkAccount(op, account); err != nil {
		return err
	}
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()
	defer s.clearPending(op)

	opts, err := s.provider.Signer(ctx, account)
	if err != nil {
		return s.fail(op, wrap(ErrTransaction, err))
	}
	opts.GasLimit = GasLimit

	tx, err := s.eps.Token.Mint(ctx, opts, account, new(big.Int).Set(mintAmount))
	if err != nil {
		return s.fail(op, wrap(ErrTransaction, err))
	}
	if err := s.await(ctx, op, tx, true); err != nil {
		return err
	}

	balance, err := s.eps.Token.BalanceOf(ctx, account)
	if err != nil {
		return s.fail("balances", wrap(ErrBalanceRead, err))
	}
	s.mu.Lock()
	stale := s.state.Session.Account != account || !s.state.Session.Connected
	if !stale {
		s.state.Balances.Fungible = units.FromWei(balance)
	}
	s.mu.Unlock()
	if !stale {
		s.emit(EventBalances, op, nil)
	}
	return nil
}

// Deposit checks the fungible balance covers amount, approves the vault for
// amount, deposits it and refreshes all balances. The approval is a separate
// transaction and stays on chain if the deposit fails.
func (s *WalletSession) Deposit(ctx context.Context, account common.Address, amount string) error {
	const op = "deposit"
	if err := s.checkAccount(op, account); err != nil {
		return err
	}
	value, err := units.Parse(amount)
	if err == nil && value.Sign() <= 0 {
		err = fmt.Errorf("non-positive amount %q", amount)
	}
	if err != nil {
		return s.fail(op, wrap(ErrInvalidAmount, err))
	}
	if !s.acquire() {
		return ErrBusy
	}
	defer s.release()
	defer s.clearPending(op)

	balance, err := s.eps.Token.BalanceOf(ctx, account)
	if err != nil {
		return s.fail(op, wrap(ErrBalanceRead, err))
	}
	if balance.Cmp(value) < 0 {
		return s.fail(op, wrap(ErrInsufficientBalance,
			fmt.Errorf("insufficient token balance: have %s, need %s", units.Format(balance), units.Format(value))))
	}

	opts, err := s.provider.Signer(ctx, account)
	if err != nil {
		return s.fail(op, wrap(ErrTransaction, err))
	}

	approveOpts := *opts
	approval, err := s.eps.Token.Approve(ctx, &approveOpts, s.eps.Vault.Address(), value)
	if err != nil {
		return s.fail("approve", wrap(ErrTransaction, err))
	}
	if err := s.await(ctx, "approve", approval, false); err != nil {
		return err
	}

	depositOpts := *opts
	depositOpts.GasLimit = GasLimit
	tx, err := s.eps.Vault.Deposit(ctx, &depositOpts, value)
	if err != nil {
		return s.fail(op, wrap(ErrTransaction, err))
	}
	if err := s.await(ctx, op, tx, true); err != nil {
		return err
	}

	_, err = s.ReadBalances(ctx)
	return err
}

// await waits for tx. When track is set the hash is the pending transaction
// for the duration of the wait.
func (s *WalletSession) await(ctx context.Context, op string, tx *types.Transaction, track bool) error {
	hash := tx.Hash().Hex()
	s.log.Info("transaction submitted", zap.String("op", op), zap.String("tx", hash))
	if track {
		s.setPending(op, hash)
	}

	receipt, err := s.eps.Confirmer.Wait(ctx, tx)
	if track {
		s.clearPending(op)
	}
	if err != nil {
		return s.fail(op, wrap(ErrTransaction, err))
	}

	fields := []zap.Field{zap.String("op", op), zap.String("tx", hash)}
	if receipt != nil && receipt.BlockNumber != nil {
		fields = append(fields, zap.Uint64("block", receipt.BlockNumber.Uint64()))
	}
	s.log.Info("transaction confirmed", fields...)
	s.emit(EventConfirmed, op, nil)
	return nil
}

func (s *WalletSession) checkAccount(op string, account common.Address) error {
	info := s.Info()
	if !info.Connected {
		return s.fail(op, ErrNotConnected)
	}
	if account != info.Account {
		return s.fail(op, wrap(ErrTransaction,
			fmt.Errorf("account %s is not the connected account %s", account.Hex(), info.Account.Hex())))
	}
	return nil
}

func (s *WalletSession) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *WalletSession) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *WalletSession) setPending(op, hash string) {
	s.mu.Lock()
	s.state.PendingTx = hash
	s.mu.Unlock()
	s.emit(EventPending, op, nil)
}

// clearPending is idempotent: it only emits when there was something to clear.
func (s *WalletSession) clearPending(op string) {
	s.mu.Lock()
	had := s.state.PendingTx != ""
	s.state.PendingTx = ""
	s.mu.Unlock()
	if had {
		s.emit(EventPending, op, nil)
	}
}

func (s *WalletSession) resetSession() {
	s.mu.Lock()
	s.state.Session = Info{}
	s.state.Balances = Snapshot{}
	s.mu.Unlock()
}

// fail records err as the current error message, notifies listeners and
// returns err.
func (s *WalletSession) fail(op string, err error) error {
	s.mu.Lock()
	s.state.Error = err.Error()
	s.mu.Unlock()

	s.log.Warn("operation failed", zap.String("op", op), zap.Error(err))
	s.emit(EventFailed, op, err)
	return err
}

// DismissError clears the recorded error. Successful operations never do.
func (s *WalletSession) DismissError() {
	s.mu.Lock()
	had := s.state.Error != ""
	s.state.Error = ""
	s.mu.Unlock()
	if had {
		s.emit(EventDismissed, "", nil)
	}
}

// State returns a copy of the current state.
func (s *WalletSession) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *WalletSession) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Session
}

// Busy reports whether a mint or deposit is in flight.
func (s *WalletSession) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

// Subscribe registers l and returns a function that removes it.
func (s *WalletSession) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *WalletSession) emit(typ EventType, op string, err error) {
	s.mu.RLock()
	ev := Event{Type: typ, Op: op, State: s.state, Err: err}
	subs := make([]subscription, len(s.listeners))
	copy(subs, s.listeners)
	s.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
