package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (r *accountsRepo) GetAllowance(ctx context.Context, tx *sql.Tx, owner, spender string) (int64, error) {
	var amount int64

	err := tx.QueryRowContext(ctx, `
		SELECT amount
		FROM allowances
		WHERE owner = $1 AND spender = $2
	`, owner, spender).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get allowance: %w", err)
	}

	return amount, nil
}

func (r *accountsRepo) SetAllowance(ctx context.Context, tx *sql.Tx, owner, spender string, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO allowances (owner, spender, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, spender)
		DO UPDATE SET amount = EXCLUDED.amount
	`, owner, spender, amount)
	if err != nil {
		return fmt.Errorf("set allowance: %w", err)
	}

	return nil
}
