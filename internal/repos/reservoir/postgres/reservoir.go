package reservoir

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/gumball/internal/infra/pgutils"
	"github.com/fastprodman/gumball/internal/repos/reservoir"
)

var _ reservoir.Reservoir = (*reservoirRepo)(nil)

type reservoirRepo struct{}

func New() *reservoirRepo {
	return &reservoirRepo{}
}

func (r *reservoirRepo) Count(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int

	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservoir`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reservoir: %w", err)
	}

	return n, nil
}

func (r *reservoirRepo) Get(ctx context.Context, tx *sql.Tx, slot int) (reservoir.Item, error) {
	var (
		item    reservoir.Item
		tokenID int64
	)

	err := tx.QueryRowContext(ctx, `
		SELECT collection, token_id
		FROM reservoir
		WHERE slot = $1
	`, slot).Scan(&item.Collection, &tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return reservoir.Item{}, fmt.Errorf("%w: %d", reservoir.ErrSlotNotFound, slot)
	}
	if err != nil {
		return reservoir.Item{}, fmt.Errorf("get slot: %w", err)
	}

	item.TokenID = uint64(tokenID)

	return item, nil
}

func (r *reservoirRepo) Set(ctx context.Context, tx *sql.Tx, slot int, item reservoir.Item) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE reservoir
		SET collection = $2, token_id = $3
		WHERE slot = $1
	`, slot, item.Collection, int64(item.TokenID))
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return reservoir.ErrDuplicateItem
		}

		return fmt.Errorf("set slot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %d", reservoir.ErrSlotNotFound, slot)
	}

	return nil
}

func (r *reservoirRepo) Append(ctx context.Context, tx *sql.Tx, item reservoir.Item) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reservoir (slot, collection, token_id)
		SELECT COALESCE(MAX(slot) + 1, 0), $1, $2
		FROM reservoir
	`, item.Collection, int64(item.TokenID))
	if err != nil {
		if pgutils.IsUniqueViolation(err) {
			return reservoir.ErrDuplicateItem
		}

		return fmt.Errorf("append slot: %w", err)
	}

	return nil
}

func (r *reservoirRepo) Pop(ctx context.Context, tx *sql.Tx) (reservoir.Item, error) {
	var (
		item    reservoir.Item
		tokenID int64
	)

	err := tx.QueryRowContext(ctx, `
		DELETE FROM reservoir
		WHERE slot = (SELECT MAX(slot) FROM reservoir)
		RETURNING collection, token_id
	`).Scan(&item.Collection, &tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return reservoir.Item{}, reservoir.ErrEmpty
	}
	if err != nil {
		return reservoir.Item{}, fmt.Errorf("pop slot: %w", err)
	}

	item.TokenID = uint64(tokenID)

	return item, nil
}

func (r *reservoirRepo) SlotOf(ctx context.Context, tx *sql.Tx, item reservoir.Item) (int, error) {
	var slot int

	err := tx.QueryRowContext(ctx, `
		SELECT slot
		FROM reservoir
		WHERE collection = $1 AND token_id = $2
	`, item.Collection, int64(item.TokenID)).Scan(&slot)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("slot of: %w", err)
	}

	return slot, nil
}

func (r *reservoirRepo) List(ctx context.Context, tx *sql.Tx, offset, limit int) ([]reservoir.Item, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT collection, token_id
		FROM reservoir
		ORDER BY slot
		OFFSET $1
		LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	//nolint:errcheck
	defer rows.Close()

	items := make([]reservoir.Item, 0, limit)

	for rows.Next() {
		var (
			item    reservoir.Item
			tokenID int64
		)

		err = rows.Scan(&item.Collection, &tokenID)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}

		item.TokenID = uint64(tokenID)
		items = append(items, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return items, nil
}
