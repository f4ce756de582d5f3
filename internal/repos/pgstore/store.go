// Package pgstore implements gumball.Store on PostgreSQL. Writers serialize
// on the machine_state row lock; readers use a read-only snapshot.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/gumball/internal/infra/pgutils"
	"github.com/fastprodman/gumball/internal/repos/accounts"
	accountspg "github.com/fastprodman/gumball/internal/repos/accounts/postgres"
	"github.com/fastprodman/gumball/internal/repos/machinestate"
	machinestatepg "github.com/fastprodman/gumball/internal/repos/machinestate/postgres"
	"github.com/fastprodman/gumball/internal/repos/operations"
	operationspg "github.com/fastprodman/gumball/internal/repos/operations/postgres"
	"github.com/fastprodman/gumball/internal/repos/reservoir"
	reservoirpg "github.com/fastprodman/gumball/internal/repos/reservoir/postgres"
	"github.com/fastprodman/gumball/internal/repos/sessions"
	sessionspg "github.com/fastprodman/gumball/internal/repos/sessions/postgres"
	"github.com/fastprodman/gumball/internal/services/gumball"
)

var _ gumball.Store = (*Store)(nil)

type Store struct {
	db         *sql.DB
	accounts   accounts.Accounts
	state      machinestate.MachineState
	reservoir  reservoir.Reservoir
	sessions   sessions.Sessions
	operations operations.Operations
}

func New(db *sql.DB) *Store {
	return &Store{
		db:         db,
		accounts:   accountspg.New(),
		state:      machinestatepg.New(),
		reservoir:  reservoirpg.New(),
		sessions:   sessionspg.New(),
		operations: operationspg.New(),
	}
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx gumball.Tx) error) error {
	return pgutils.WithTx(ctx, s.db, nil, func(sqlTx *sql.Tx) error {
		_, err := s.state.Lock(ctx, sqlTx)
		if err != nil {
			return err
		}

		return fn(ctx, &tx{s: s, tx: sqlTx})
	})
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx gumball.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	return pgutils.WithTx(ctx, s.db, opts, func(sqlTx *sql.Tx) error {
		return fn(ctx, &tx{s: s, tx: sqlTx})
	})
}

type tx struct {
	s  *Store
	tx *sql.Tx
}

func (t *tx) Balance(ctx context.Context, acct gumball.Account) (int64, error) {
	return t.s.accounts.GetBalance(ctx, t.tx, string(acct))
}

func (t *tx) AddBalance(ctx context.Context, acct gumball.Account, delta int64) error {
	err := t.s.accounts.AddBalance(ctx, t.tx, string(acct), delta)
	if errors.Is(err, accounts.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %w", gumball.ErrInsufficientCredits, err)
	}

	return err
}

func (t *tx) Allowance(ctx context.Context, owner, spender gumball.Account) (int64, error) {
	return t.s.accounts.GetAllowance(ctx, t.tx, string(owner), string(spender))
}

func (t *tx) SetAllowance(ctx context.Context, owner, spender gumball.Account, amount int64) error {
	return t.s.accounts.SetAllowance(ctx, t.tx, string(owner), string(spender), amount)
}

func (t *tx) TotalSupply(ctx context.Context) (int64, error) {
	st, err := t.s.state.Get(ctx, t.tx)
	if err != nil {
		return 0, err
	}

	return st.TotalSupply, nil
}

func (t *tx) AddSupply(ctx context.Context, delta int64) error {
	return t.s.state.AddSupply(ctx, t.tx, delta)
}

func (t *tx) Active(ctx context.Context) (bool, error) {
	st, err := t.s.state.Get(ctx, t.tx)
	if err != nil {
		return false, err
	}

	return st.Active, nil
}

func (t *tx) SetActive(ctx context.Context, active bool) error {
	return t.s.state.SetActive(ctx, t.tx, active)
}

func (t *tx) Session(ctx context.Context, acct gumball.Account) (gumball.Session, error) {
	row, err := t.s.sessions.Get(ctx, t.tx, string(acct))
	if err != nil {
		return gumball.Session{}, err
	}

	sess := gumball.Session{
		Phase:       gumball.Phase(row.Phase),
		CommitBlock: row.CommitBlock,
	}

	if row.LastCollection != "" {
		sess.LastDraw = &gumball.Item{Collection: row.LastCollection, TokenID: row.LastTokenID}
	}

	return sess, nil
}

func (t *tx) PutSession(ctx context.Context, acct gumball.Account, sess gumball.Session) error {
	row := sessions.Session{
		Phase:       uint8(sess.Phase),
		CommitBlock: sess.CommitBlock,
	}

	if sess.LastDraw != nil {
		row.LastCollection = sess.LastDraw.Collection
		row.LastTokenID = sess.LastDraw.TokenID
	}

	return t.s.sessions.Put(ctx, t.tx, string(acct), row)
}

func (t *tx) CrankedBefore(ctx context.Context, commit uint64) ([]gumball.Account, error) {
	rows, err := t.s.sessions.ListByPhaseBefore(ctx, t.tx, uint8(gumball.PhaseCranked), commit)
	if err != nil {
		return nil, err
	}

	out := make([]gumball.Account, 0, len(rows))
	for _, a := range rows {
		out = append(out, gumball.Account(a))
	}

	return out, nil
}

func (t *tx) RecordOperation(ctx context.Context, id string, acct gumball.Account, kind string) error {
	err := t.s.operations.Insert(ctx, t.tx, id, string(acct), kind)
	if errors.Is(err, operations.ErrDuplicateOperation) {
		return fmt.Errorf("%w: %q", gumball.ErrDuplicateOperation, id)
	}

	return err
}

func (t *tx) SlotCount(ctx context.Context) (int, error) {
	return t.s.reservoir.Count(ctx, t.tx)
}

func (t *tx) SlotAt(ctx context.Context, index int) (gumball.Item, error) {
	item, err := t.s.reservoir.Get(ctx, t.tx, index)
	if err != nil {
		return gumball.Item{}, mapReservoirErr(err)
	}

	return toItem(item), nil
}

func (t *tx) SetSlot(ctx context.Context, index int, item gumball.Item) error {
	return mapReservoirErr(t.s.reservoir.Set(ctx, t.tx, index, fromItem(item)))
}

func (t *tx) AppendSlot(ctx context.Context, item gumball.Item) error {
	return mapReservoirErr(t.s.reservoir.Append(ctx, t.tx, fromItem(item)))
}

func (t *tx) PopSlot(ctx context.Context) (gumball.Item, error) {
	item, err := t.s.reservoir.Pop(ctx, t.tx)
	if err != nil {
		return gumball.Item{}, mapReservoirErr(err)
	}

	return toItem(item), nil
}

func (t *tx) SlotOf(ctx context.Context, item gumball.Item) (int, error) {
	return t.s.reservoir.SlotOf(ctx, t.tx, fromItem(item))
}

func (t *tx) ListSlots(ctx context.Context, offset, limit int) ([]gumball.Item, error) {
	rows, err := t.s.reservoir.List(ctx, t.tx, offset, limit)
	if err != nil {
		return nil, err
	}

	out := make([]gumball.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, toItem(r))
	}

	return out, nil
}

func mapReservoirErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, reservoir.ErrDuplicateItem):
		return fmt.Errorf("%w: %w", gumball.ErrDuplicateItem, err)
	case errors.Is(err, reservoir.ErrSlotNotFound):
		return fmt.Errorf("%w: %w", gumball.ErrItemNotFound, err)
	case errors.Is(err, reservoir.ErrEmpty):
		return fmt.Errorf("%w: %w", gumball.ErrEmptyReservoir, err)
	default:
		return err
	}
}

func toItem(r reservoir.Item) gumball.Item {
	return gumball.Item{Collection: r.Collection, TokenID: r.TokenID}
}

func fromItem(i gumball.Item) reservoir.Item {
	return reservoir.Item{Collection: i.Collection, TokenID: i.TokenID}
}
