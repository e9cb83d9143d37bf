package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const defaultPollInterval = 2 * time.Second

var ErrReverted = errors.New("transaction reverted")

// ReceiptReader fetches receipts; ethclient.Client satisfies it.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type ConfirmerConfig struct {
	PollInterval time.Duration
	// Timeout bounds each wait. Zero waits until ctx is done.
	Timeout time.Duration
}

// Confirmer waits for submitted transactions to be mined.
type Confirmer struct {
	reader ReceiptReader
	cfg    ConfirmerConfig
}

func NewConfirmer(reader ReceiptReader, cfg ConfirmerConfig) *Confirmer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Confirmer{reader: reader, cfg: cfg}
}

// Wait polls until the transaction is mined or ctx is cancelled. A mined
// transaction with a failed status is reported as ErrReverted.
func (c *Confirmer) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.reader.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
