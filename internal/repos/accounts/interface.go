package accounts

import (
	"context"
	"database/sql"
	"errors"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

type Accounts interface {
	GetBalance(ctx context.Context, tx *sql.Tx, account string) (int64, error)
	// AddBalance applies delta, creating the row on first credit. It fails
	// with ErrInsufficientBalance if the result would be negative.
	AddBalance(ctx context.Context, tx *sql.Tx, account string, delta int64) error
	GetAllowance(ctx context.Context, tx *sql.Tx, owner, spender string) (int64, error)
	SetAllowance(ctx context.Context, tx *sql.Tx, owner, spender string, amount int64) error
}
