package operations

import (
	"context"
	"database/sql"
	"errors"
)

var ErrDuplicateOperation = errors.New("duplicate operation")

type Operations interface {
	Insert(ctx context.Context, tx *sql.Tx, opID, account, kind string) error
}
