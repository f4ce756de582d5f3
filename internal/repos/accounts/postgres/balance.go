package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/gumball/internal/infra/pgutils"
	"github.com/fastprodman/gumball/internal/repos/accounts"
)

func (r *accountsRepo) GetBalance(ctx context.Context, tx *sql.Tx, account string) (int64, error) {
	var balance int64

	err := tx.QueryRowContext(ctx, `
		SELECT balance
		FROM accounts
		WHERE account = $1
	`, account).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return balance, nil
}

func (r *accountsRepo) AddBalance(ctx context.Context, tx *sql.Tx, account string, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (account, balance)
		VALUES ($1, $2)
		ON CONFLICT (account)
		DO UPDATE SET balance = accounts.balance + EXCLUDED.balance
	`, account, delta)
	if err != nil {
		if pgutils.IsCheckViolation(err) {
			return accounts.ErrInsufficientBalance
		}

		return fmt.Errorf("add balance: %w", err)
	}

	return nil
}
