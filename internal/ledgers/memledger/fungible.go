// Package memledger holds in-process stand-ins for the host's reference
// token and unique-item ledgers.
package memledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

var _ gumball.ReferenceToken = (*Fungible)(nil)

type spendKey struct {
	owner, spender gumball.Account
}

// Fungible is an allowance-gated fungible token.
type Fungible struct {
	mu         sync.Mutex
	balances   map[gumball.Account]int64
	allowances map[spendKey]int64
}

func NewFungible() *Fungible {
	return &Fungible{
		balances:   make(map[gumball.Account]int64),
		allowances: make(map[spendKey]int64),
	}
}

func (f *Fungible) Mint(to gumball.Account, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: mint %d", gumball.ErrInvalidAmount, amount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.balances[to] += amount

	return nil
}

func (f *Fungible) Approve(owner, spender gumball.Account, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: approve %d", gumball.ErrInvalidAmount, amount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.allowances[spendKey{owner, spender}] = amount

	return nil
}

func (f *Fungible) BalanceOf(acct gumball.Account) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.balances[acct]
}

func (f *Fungible) Allowance(owner, spender gumball.Account) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.allowances[spendKey{owner, spender}]
}

func (f *Fungible) TransferFrom(_ context.Context, spender, from, to gumball.Account, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: transfer %d", gumball.ErrInvalidAmount, amount)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	k := spendKey{from, spender}
	if f.allowances[k] < amount {
		return fmt.Errorf("%w: %s allows %s %d, need %d",
			gumball.ErrInsufficientAllowance, from, spender, f.allowances[k], amount)
	}

	if f.balances[from] < amount {
		return fmt.Errorf("%w: %s holds %d, need %d",
			gumball.ErrInsufficientFunds, from, f.balances[from], amount)
	}

	f.allowances[k] -= amount
	f.balances[from] -= amount
	f.balances[to] += amount

	return nil
}
