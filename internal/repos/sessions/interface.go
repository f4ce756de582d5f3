package sessions

import (
	"context"
	"database/sql"
)

// Session mirrors one sessions row. LastCollection is empty when the
// account has never drawn.
type Session struct {
	Phase          uint8
	CommitBlock    uint64
	LastCollection string
	LastTokenID    uint64
}

type Sessions interface {
	// Get returns the zero Session for an unknown account.
	Get(ctx context.Context, tx *sql.Tx, account string) (Session, error)
	Put(ctx context.Context, tx *sql.Tx, account string, s Session) error
	// ListByPhaseBefore returns accounts in phase whose commit block is
	// strictly below commit, ordered by account.
	ListByPhaseBefore(ctx context.Context, tx *sql.Tx, phase uint8, commit uint64) ([]string, error)
}
