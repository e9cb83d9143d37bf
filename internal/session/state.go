package session

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Info describes the connected wallet.
type Info struct {
	Account   common.Address `json:"account"`
	ChainID   int64          `json:"chainId"`
	Connected bool           `json:"connected"`
}

// Snapshot is the last balance refresh. It is only meaningful while connected.
type Snapshot struct {
	Fungible     decimal.Decimal `json:"fungible"`
	Deposited    decimal.Decimal `json:"deposited"`
	Collectibles uint64          `json:"collectibles"`
}

// State is a copy of everything a presentation layer renders.
type State struct {
	Session   Info     `json:"session"`
	Balances  Snapshot `json:"balances"`
	PendingTx string   `json:"pendingTx,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventBalances     EventType = "balances"
	EventPending      EventType = "pending"
	EventConfirmed    EventType = "confirmed"
	EventFailed       EventType = "failed"
	EventDismissed    EventType = "dismissed"
)

// Event is delivered to listeners after every observable state change.
type Event struct {
	Type EventType
	// Op is the operation that produced the event: connect, balances, mint,
	// approve or deposit. Empty for disconnect.
	Op    string
	State State
	Err   error
}

// Listener receives events synchronously, in subscription order.
type Listener func(Event)
