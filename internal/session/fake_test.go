package session

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"depositdapp/internal/units"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	alice     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	bob       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	vaultAddr = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
)

type fakeProvider struct {
	mu         sync.Mutex
	accounts   []common.Address
	chainID    int64
	accessErr  error
	chainErr   error
	signerErr  error
	signerUsed []common.Address
}

func (p *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accessErr != nil {
		return nil, p.accessErr
	}
	return append([]common.Address(nil), p.accounts...), nil
}

func (p *fakeProvider) ChainID(context.Context) (*big.Int, error) {
	if p.chainErr != nil {
		return nil, p.chainErr
	}
	return big.NewInt(p.chainID), nil
}

func (p *fakeProvider) Signer(_ context.Context, account common.Address) (*bind.TransactOpts, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signerErr != nil {
		return nil, p.signerErr
	}
	p.signerUsed = append(p.signerUsed, account)
	return &bind.TransactOpts{From: account}, nil
}

type submitted struct {
	op     string
	tx     *types.Transaction
	amount *big.Int
	target common.Address
	from   common.Address
}

// fakeChain applies a transaction's effect when it is confirmed, so balances
// change only after Wait returns.
type fakeChain struct {
	mu         sync.Mutex
	tokens     map[common.Address]*big.Int
	deposits   map[common.Address]*big.Int
	allowances map[common.Address]*big.Int
	nfts       map[common.Address]*big.Int
	nonce      uint64
	txs        map[common.Hash]submitted
	log        []string
	sent       []submitted

	submitErr map[string]error
	waitErr   map[string]error
	readErr   map[string]error
	onWait    func(op string)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		tokens:     make(map[common.Address]*big.Int),
		deposits:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]*big.Int),
		nfts:       make(map[common.Address]*big.Int),
		txs:        make(map[common.Hash]submitted),
		submitErr:  make(map[string]error),
		waitErr:    make(map[string]error),
		readErr:    make(map[string]error),
	}
}

func (c *fakeChain) endpoints() Endpoints {
	return Endpoints{
		Token:       fakeToken{c},
		Vault:       fakeVault{c},
		Collectible: fakeCollectible{c},
		Confirmer:   fakeConfirmer{c},
	}
}

func (c *fakeChain) setTokens(owner common.Address, amount string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[owner] = units.MustParse(amount)
}

func (c *fakeChain) read(kind string, m map[common.Address]*big.Int, owner common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readErr[kind]; err != nil {
		return nil, err
	}
	c.log = append(c.log, "read:"+kind)
	if v, ok := m[owner]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (c *fakeChain) submit(op string, opts *bind.TransactOpts, target common.Address, amount *big.Int) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.submitErr[op]; err != nil {
		return nil, err
	}
	c.nonce++
	tx := types.NewTx(&types.LegacyTx{Nonce: c.nonce, Gas: opts.GasLimit, GasPrice: big.NewInt(1)})
	sub := submitted{op: op, tx: tx, amount: new(big.Int).Set(amount), target: target, from: opts.From}
	c.txs[tx.Hash()] = sub
	c.sent = append(c.sent, sub)
	c.log = append(c.log, op)
	return tx, nil
}

func (c *fakeChain) confirm(tx *types.Transaction) error {
	c.mu.Lock()
	sub, ok := c.txs[tx.Hash()]
	hook := c.onWait
	c.mu.Unlock()
	if !ok {
		return errors.New("unknown transaction")
	}
	if hook != nil {
		hook(sub.op)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "wait:"+sub.op)
	if err := c.waitErr[sub.op]; err != nil {
		return err
	}

	switch sub.op {
	case "mint":
		c.tokens[sub.target] = add(c.tokens[sub.target], sub.amount)
	case "approve":
		c.allowances[sub.from] = new(big.Int).Set(sub.amount)
	case "deposit":
		if c.allowances[sub.from] == nil || c.allowances[sub.from].Cmp(sub.amount) < 0 {
			return errors.New("execution reverted: insufficient allowance")
		}
		c.allowances[sub.from] = new(big.Int).Sub(c.allowances[sub.from], sub.amount)
		c.tokens[sub.from] = new(big.Int).Sub(c.tokens[sub.from], sub.amount)
		c.deposits[sub.from] = add(c.deposits[sub.from], sub.amount)
		c.nfts[sub.from] = add(c.nfts[sub.from], big.NewInt(1))
	}
	return nil
}

func add(a, b *big.Int) *big.Int {
	if a == nil {
		a = new(big.Int)
	}
	return new(big.Int).Add(a, b)
}

func (c *fakeChain) ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, entry := range c.log {
		if len(entry) < 5 || entry[:5] != "read:" {
			out = append(out, entry)
		}
	}
	return out
}

type fakeToken struct{ c *fakeChain }

func (t fakeToken) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	return t.c.read("token", t.c.tokens, owner)
}

func (t fakeToken) Mint(_ context.Context, opts *bind.TransactOpts, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.c.submit("mint", opts, to, amount)
}

func (t fakeToken) Approve(_ context.Context, opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.c.submit("approve", opts, spender, amount)
}

type fakeVault struct{ c *fakeChain }

func (v fakeVault) Address() common.Address { return vaultAddr }

func (v fakeVault) Deposits(_ context.Context, owner common.Address) (*big.Int, error) {
	return v.c.read("vault", v.c.deposits, owner)
}

func (v fakeVault) Deposit(_ context.Context, opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return v.c.submit("deposit", opts, vaultAddr, amount)
}

type fakeCollectible struct{ c *fakeChain }

func (n fakeCollectible) BalanceOf(_ context.Context, owner common.Address) (*big.Int, error) {
	return n.c.read("collectible", n.c.nfts, owner)
}

type fakeConfirmer struct{ c *fakeChain }

func (f fakeConfirmer) Wait(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if err := f.c.confirm(tx); err != nil {
		return nil, err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash(), BlockNumber: big.NewInt(1)}, nil
}

// recorder collects events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) pendingSeen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Type == EventPending {
			out = append(out, ev.State.PendingTx)
		}
	}
	return out
}
