package gumball

import "context"

// Tx is the state visible to one serialized operation.
//
// AddBalance must fail with ErrInsufficientCredits instead of letting a
// balance go negative. Session returns the zero Session for unknown
// accounts. RecordOperation fails with ErrDuplicateOperation for a
// previously recorded id.
type Tx interface {
	Slots

	Balance(ctx context.Context, acct Account) (int64, error)
	AddBalance(ctx context.Context, acct Account, delta int64) error
	Allowance(ctx context.Context, owner, spender Account) (int64, error)
	SetAllowance(ctx context.Context, owner, spender Account, amount int64) error
	TotalSupply(ctx context.Context) (int64, error)
	AddSupply(ctx context.Context, delta int64) error

	Active(ctx context.Context) (bool, error)
	SetActive(ctx context.Context, active bool) error

	Session(ctx context.Context, acct Account) (Session, error)
	PutSession(ctx context.Context, acct Account, s Session) error
	// CrankedBefore lists accounts whose session is Cranked with a commit
	// block strictly below commit.
	CrankedBefore(ctx context.Context, commit uint64) ([]Account, error)

	RecordOperation(ctx context.Context, id string, acct Account, kind string) error
}

// Store applies operations one at a time. Update commits everything fn did
// when fn returns nil and nothing otherwise. View must not mutate.
type Store interface {
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
