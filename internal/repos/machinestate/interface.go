package machinestate

import (
	"context"
	"database/sql"
)

// State is the single machine_state row.
type State struct {
	Active      bool
	TotalSupply int64
}

type MachineState interface {
	// Lock reads the state row FOR UPDATE. Every writing transaction takes
	// this lock first, which serializes them.
	Lock(ctx context.Context, tx *sql.Tx) (State, error)
	Get(ctx context.Context, tx *sql.Tx) (State, error)
	SetActive(ctx context.Context, tx *sql.Tx, active bool) error
	AddSupply(ctx context.Context, tx *sql.Tx, delta int64) error
}
