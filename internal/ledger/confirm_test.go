package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTx() *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: 1, Gas: 21_000, GasPrice: big.NewInt(1)})
}

func TestWaitPollsUntilMined(t *testing.T) {
	backend := newFakeBackend()
	backend.receipts = []receiptReply{
		{},
		{},
		{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(3)}},
	}

	c := NewConfirmer(backend, ConfirmerConfig{PollInterval: time.Millisecond})
	receipt, err := c.Wait(context.Background(), sampleTx())
	require.NoError(t, err)
	assert.Equal(t, int64(3), receipt.BlockNumber.Int64())
	assert.Equal(t, 3, backend.polls)
}

func TestWaitReportsRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.receipts = []receiptReply{{receipt: &types.Receipt{Status: types.ReceiptStatusFailed}}}

	c := NewConfirmer(backend, ConfirmerConfig{PollInterval: time.Millisecond})
	_, err := c.Wait(context.Background(), sampleTx())
	assert.ErrorIs(t, err, ErrReverted)
}

func TestWaitPropagatesRPCError(t *testing.T) {
	backend := newFakeBackend()
	backend.receipts = []receiptReply{{err: errors.New("rpc down")}}

	c := NewConfirmer(backend, ConfirmerConfig{PollInterval: time.Millisecond})
	_, err := c.Wait(context.Background(), sampleTx())
	assert.EqualError(t, err, "rpc down")
}

func TestWaitHonoursTimeout(t *testing.T) {
	c := NewConfirmer(newFakeBackend(), ConfirmerConfig{PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond})
	_, err := c.Wait(context.Background(), sampleTx())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewConfirmerDefaultsPollInterval(t *testing.T) {
	c := NewConfirmer(newFakeBackend(), ConfirmerConfig{})
	assert.Equal(t, defaultPollInterval, c.cfg.PollInterval)
}
