package operations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/gumball/internal/infra/pgutils"
	"github.com/fastprodman/gumball/internal/repos/operations"
)

var _ operations.Operations = (*operationsRepo)(nil)

type operationsRepo struct{}

func New() *operationsRepo {
	return &operationsRepo{}
}

func (r *operationsRepo) Insert(ctx context.Context, tx *sql.Tx, opID, account, kind string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO operations (op_id, account, kind)
		VALUES ($1, $2, $3)
	`, opID, account, kind)
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return operations.ErrDuplicateOperation
		}

		return fmt.Errorf("insert operation: %w", err)
	}

	return nil
}
