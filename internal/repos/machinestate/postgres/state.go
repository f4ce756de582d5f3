package machinestate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/gumball/internal/repos/machinestate"
)

var _ machinestate.MachineState = (*stateRepo)(nil)

type stateRepo struct{}

func New() *stateRepo {
	return &stateRepo{}
}

func (r *stateRepo) Lock(ctx context.Context, tx *sql.Tx) (machinestate.State, error) {
	var s machinestate.State

	err := tx.QueryRowContext(ctx, `
		SELECT active, total_supply
		FROM machine_state
		WHERE id = 1
		FOR UPDATE
	`).Scan(&s.Active, &s.TotalSupply)
	if err != nil {
		return machinestate.State{}, fmt.Errorf("lock machine state: %w", err)
	}

	return s, nil
}

func (r *stateRepo) Get(ctx context.Context, tx *sql.Tx) (machinestate.State, error) {
	var s machinestate.State

	err := tx.QueryRowContext(ctx, `
		SELECT active, total_supply
		FROM machine_state
		WHERE id = 1
	`).Scan(&s.Active, &s.TotalSupply)
	if err != nil {
		return machinestate.State{}, fmt.Errorf("get machine state: %w", err)
	}

	return s, nil
}

func (r *stateRepo) SetActive(ctx context.Context, tx *sql.Tx, active bool) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE machine_state
		SET active = $1
		WHERE id = 1
	`, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	return nil
}

func (r *stateRepo) AddSupply(ctx context.Context, tx *sql.Tx, delta int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE machine_state
		SET total_supply = total_supply + $1
		WHERE id = 1
	`, delta)
	if err != nil {
		return fmt.Errorf("add supply: %w", err)
	}

	return nil
}
