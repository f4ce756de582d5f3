package gumball

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// ReferenceToken is the fungible token exchanged for GUM. Errors wrap
// ErrInsufficientAllowance or ErrInsufficientFunds when the owner cannot
// cover the transfer.
type ReferenceToken interface {
	TransferFrom(ctx context.Context, spender, from, to Account, amount int64) error
}

// ItemCustody moves unique items between accounts. Errors wrap ErrNotOwner
// or ErrNotApproved.
type ItemCustody interface {
	TransferFrom(ctx context.Context, operator, from, to Account, item Item) error
}

// Chain is the host ledger's history. BlockHash fails with
// ErrBlockUnavailable for heights not produced yet or no longer retained.
type Chain interface {
	Height(ctx context.Context) (uint64, error)
	BlockHash(ctx context.Context, height uint64) (chainhash.Hash, error)
}

type EventSink interface {
	Publish(ev Event)
}

type nopSink struct{}

func (nopSink) Publish(Event) {}
