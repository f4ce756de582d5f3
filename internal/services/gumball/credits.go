package gumball

import (
	"context"
	"fmt"
)

// CreditLedger exposes GUM as a transferable token.
type CreditLedger interface {
	TotalSupply(ctx context.Context) (int64, error)
	BalanceOf(ctx context.Context, acct Account) (int64, error)
	Allowance(ctx context.Context, owner, spender Account) (int64, error)
	Approve(ctx context.Context, owner, spender Account, amount int64) error
	Transfer(ctx context.Context, from, to Account, amount int64) error
	TransferFrom(ctx context.Context, spender, from, to Account, amount int64) error
}

func (m *Machine) TotalSupply(ctx context.Context) (int64, error) {
	var supply int64

	err := m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		supply, err = tx.TotalSupply(ctx)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("total supply: %w", err)
	}

	return supply, nil
}

func (m *Machine) BalanceOf(ctx context.Context, acct Account) (int64, error) {
	err := acct.Validate()
	if err != nil {
		return 0, err
	}

	var balance int64

	err = m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		balance, err = tx.Balance(ctx, acct)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("balance of: %w", err)
	}

	return balance, nil
}

func (m *Machine) Allowance(ctx context.Context, owner, spender Account) (int64, error) {
	err := validateAccounts(owner, spender)
	if err != nil {
		return 0, err
	}

	var amount int64

	err = m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		amount, err = tx.Allowance(ctx, owner, spender)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("allowance: %w", err)
	}

	return amount, nil
}

// Approve sets, not increments, the amount spender may move from owner.
func (m *Machine) Approve(ctx context.Context, owner, spender Account, amount int64) error {
	err := validateAccounts(owner, spender)
	if err != nil {
		return err
	}

	if amount < 0 {
		return fmt.Errorf("%w: negative allowance", ErrInvalidAmount)
	}

	err = m.update(ctx, owner, "approve", func(ctx context.Context, tx Tx, em *emitter) error {
		err := tx.SetAllowance(ctx, owner, spender, amount)
		if err != nil {
			return fmt.Errorf("set allowance: %w", err)
		}

		em.emit(Event{Kind: EventApproval, Account: owner, Counterpart: spender, Amount: amount})

		return nil
	})
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}

	return nil
}

func (m *Machine) Transfer(ctx context.Context, from, to Account, amount int64) error {
	err := validateAccounts(from, to)
	if err != nil {
		return err
	}

	if amount < 0 {
		return fmt.Errorf("%w: negative transfer", ErrInvalidAmount)
	}

	err = m.update(ctx, from, "transfer", func(ctx context.Context, tx Tx, em *emitter) error {
		return m.move(ctx, tx, em, from, to, amount)
	})
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	return nil
}

func (m *Machine) TransferFrom(ctx context.Context, spender, from, to Account, amount int64) error {
	err := validateAccounts(spender, from, to)
	if err != nil {
		return err
	}

	if amount < 0 {
		return fmt.Errorf("%w: negative transfer", ErrInvalidAmount)
	}

	err = m.update(ctx, spender, "transfer_from", func(ctx context.Context, tx Tx, em *emitter) error {
		allowed, err := tx.Allowance(ctx, from, spender)
		if err != nil {
			return fmt.Errorf("read allowance: %w", err)
		}

		if allowed < amount {
			return fmt.Errorf("%w: allowed %d, requested %d", ErrInsufficientAllowance, allowed, amount)
		}

		err = tx.SetAllowance(ctx, from, spender, allowed-amount)
		if err != nil {
			return fmt.Errorf("spend allowance: %w", err)
		}

		return m.move(ctx, tx, em, from, to, amount)
	})
	if err != nil {
		return fmt.Errorf("transfer from: %w", err)
	}

	return nil
}

func (m *Machine) move(ctx context.Context, tx Tx, em *emitter, from, to Account, amount int64) error {
	balance, err := tx.Balance(ctx, from)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	if balance < amount {
		return fmt.Errorf("%w: have %d, sending %d", ErrInsufficientCredits, balance, amount)
	}

	err = tx.AddBalance(ctx, from, -amount)
	if err != nil {
		return fmt.Errorf("debit sender: %w", err)
	}

	err = tx.AddBalance(ctx, to, amount)
	if err != nil {
		return fmt.Errorf("credit recipient: %w", err)
	}

	em.emit(Event{Kind: EventTransfer, Account: from, Counterpart: to, Amount: amount})

	return nil
}

func validateAccounts(accts ...Account) error {
	for _, a := range accts {
		err := a.Validate()
		if err != nil {
			return err
		}
	}

	return nil
}
