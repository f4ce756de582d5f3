package reservoir

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrDuplicateItem = errors.New("item already in reservoir")
	ErrSlotNotFound  = errors.New("slot not found")
	ErrEmpty         = errors.New("reservoir is empty")
)

// Item is a stored collectible. Token ids are kept as BIGINT; values above
// math.MaxInt64 round-trip through their two's complement bit pattern.
type Item struct {
	Collection string
	TokenID    uint64
}

// Reservoir keeps items in dense slots 0..n-1.
type Reservoir interface {
	Count(ctx context.Context, tx *sql.Tx) (int, error)
	Get(ctx context.Context, tx *sql.Tx, slot int) (Item, error)
	Set(ctx context.Context, tx *sql.Tx, slot int, item Item) error
	Append(ctx context.Context, tx *sql.Tx, item Item) error
	Pop(ctx context.Context, tx *sql.Tx) (Item, error)
	// SlotOf returns -1 when item is not stored.
	SlotOf(ctx context.Context, tx *sql.Tx, item Item) (int, error)
	List(ctx context.Context, tx *sql.Tx, offset, limit int) ([]Item, error)
}
