// Package memory is an in-process gumball.Store. One RWMutex serializes
// writers; an undo log rolls back a failed operation.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

var errReadOnly = errors.New("write in read-only transaction")

var _ gumball.Store = (*Store)(nil)

type allowanceKey struct {
	owner, spender gumball.Account
}

type Store struct {
	mu sync.RWMutex

	balances   map[gumball.Account]int64
	allowances map[allowanceKey]int64
	supply     int64
	active     bool
	slots      []gumball.Item
	index      map[gumball.Item]int
	sessions   map[gumball.Account]gumball.Session
	operations map[string]struct{}
}

func New() *Store {
	return &Store{
		balances:   make(map[gumball.Account]int64),
		allowances: make(map[allowanceKey]int64),
		index:      make(map[gumball.Item]int),
		sessions:   make(map[gumball.Account]gumball.Session),
		operations: make(map[string]struct{}),
	}
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx gumball.Tx) error) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}

	err = fn(ctx, t)
	if err != nil {
		t.rollback()

		return err
	}

	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx gumball.Tx) error) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &tx{s: s, readOnly: true})
}

type tx struct {
	s        *Store
	readOnly bool
	undo     []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}

	t.undo = nil
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}

	return nil
}

func (t *tx) Balance(_ context.Context, acct gumball.Account) (int64, error) {
	return t.s.balances[acct], nil
}

func (t *tx) AddBalance(_ context.Context, acct gumball.Account, delta int64) error {
	err := t.writable()
	if err != nil {
		return err
	}

	prev, had := t.s.balances[acct]
	if prev+delta < 0 {
		return fmt.Errorf("%w: have %d, delta %d", gumball.ErrInsufficientCredits, prev, delta)
	}

	t.s.balances[acct] = prev + delta
	t.undo = append(t.undo, func() {
		if had {
			t.s.balances[acct] = prev
		} else {
			delete(t.s.balances, acct)
		}
	})

	return nil
}

func (t *tx) Allowance(_ context.Context, owner, spender gumball.Account) (int64, error) {
	return t.s.allowances[allowanceKey{owner, spender}], nil
}

func (t *tx) SetAllowance(_ context.Context, owner, spender gumball.Account, amount int64) error {
	err := t.writable()
	if err != nil {
		return err
	}

	k := allowanceKey{owner, spender}
	prev, had := t.s.allowances[k]

	t.s.allowances[k] = amount
	t.undo = append(t.undo, func() {
		if had {
			t.s.allowances[k] = prev
		} else {
			delete(t.s.allowances, k)
		}
	})

	return nil
}

func (t *tx) TotalSupply(context.Context) (int64, error) {
	return t.s.supply, nil
}

func (t *tx) AddSupply(_ context.Context, delta int64) error {
	err := t.writable()
	if err != nil {
		return err
	}

	prev := t.s.supply
	t.s.supply += delta
	t.undo = append(t.undo, func() { t.s.supply = prev })

	return nil
}

func (t *tx) Active(context.Context) (bool, error) {
	return t.s.active, nil
}

func (t *tx) SetActive(_ context.Context, active bool) error {
	err := t.writable()
	if err != nil {
		return err
	}

	prev := t.s.active
	t.s.active = active
	t.undo = append(t.undo, func() { t.s.active = prev })

	return nil
}

func (t *tx) Session(_ context.Context, acct gumball.Account) (gumball.Session, error) {
	return copySession(t.s.sessions[acct]), nil
}

func (t *tx) PutSession(_ context.Context, acct gumball.Account, sess gumball.Session) error {
	err := t.writable()
	if err != nil {
		return err
	}

	prev, had := t.s.sessions[acct]

	t.s.sessions[acct] = copySession(sess)
	t.undo = append(t.undo, func() {
		if had {
			t.s.sessions[acct] = prev
		} else {
			delete(t.s.sessions, acct)
		}
	})

	return nil
}

func (t *tx) CrankedBefore(_ context.Context, commit uint64) ([]gumball.Account, error) {
	var out []gumball.Account

	for acct, sess := range t.s.sessions {
		if sess.Phase == gumball.PhaseCranked && sess.CommitBlock < commit {
			out = append(out, acct)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

func (t *tx) RecordOperation(_ context.Context, id string, _ gumball.Account, _ string) error {
	err := t.writable()
	if err != nil {
		return err
	}

	if _, dup := t.s.operations[id]; dup {
		return gumball.ErrDuplicateOperation
	}

	t.s.operations[id] = struct{}{}
	t.undo = append(t.undo, func() { delete(t.s.operations, id) })

	return nil
}

func (t *tx) SlotCount(context.Context) (int, error) {
	return len(t.s.slots), nil
}

func (t *tx) SlotAt(_ context.Context, index int) (gumball.Item, error) {
	if index < 0 || index >= len(t.s.slots) {
		return gumball.Item{}, fmt.Errorf("%w: slot %d", gumball.ErrItemNotFound, index)
	}

	return t.s.slots[index], nil
}

func (t *tx) SetSlot(_ context.Context, index int, item gumball.Item) error {
	err := t.writable()
	if err != nil {
		return err
	}

	if index < 0 || index >= len(t.s.slots) {
		return fmt.Errorf("%w: slot %d", gumball.ErrItemNotFound, index)
	}

	if _, dup := t.s.index[item]; dup {
		return fmt.Errorf("%w: %s", gumball.ErrDuplicateItem, item)
	}

	prev := t.s.slots[index]

	delete(t.s.index, prev)
	t.s.slots[index] = item
	t.s.index[item] = index

	t.undo = append(t.undo, func() {
		delete(t.s.index, item)
		t.s.slots[index] = prev
		t.s.index[prev] = index
	})

	return nil
}

func (t *tx) AppendSlot(_ context.Context, item gumball.Item) error {
	err := t.writable()
	if err != nil {
		return err
	}

	if _, dup := t.s.index[item]; dup {
		return fmt.Errorf("%w: %s", gumball.ErrDuplicateItem, item)
	}

	t.s.slots = append(t.s.slots, item)
	t.s.index[item] = len(t.s.slots) - 1

	t.undo = append(t.undo, func() {
		delete(t.s.index, item)
		t.s.slots = t.s.slots[:len(t.s.slots)-1]
	})

	return nil
}

func (t *tx) PopSlot(context.Context) (gumball.Item, error) {
	err := t.writable()
	if err != nil {
		return gumball.Item{}, err
	}

	n := len(t.s.slots)
	if n == 0 {
		return gumball.Item{}, gumball.ErrEmptyReservoir
	}

	last := t.s.slots[n-1]

	delete(t.s.index, last)
	t.s.slots = t.s.slots[:n-1]

	t.undo = append(t.undo, func() {
		t.s.slots = append(t.s.slots, last)
		t.s.index[last] = len(t.s.slots) - 1
	})

	return last, nil
}

func (t *tx) SlotOf(_ context.Context, item gumball.Item) (int, error) {
	idx, ok := t.s.index[item]
	if !ok {
		return -1, nil
	}

	return idx, nil
}

func (t *tx) ListSlots(_ context.Context, offset, limit int) ([]gumball.Item, error) {
	if offset >= len(t.s.slots) {
		return []gumball.Item{}, nil
	}

	end := offset + min(limit, len(t.s.slots)-offset)
	out := make([]gumball.Item, end-offset)
	copy(out, t.s.slots[offset:end])

	return out, nil
}

func copySession(s gumball.Session) gumball.Session {
	if s.LastDraw != nil {
		item := *s.LastDraw
		s.LastDraw = &item
	}

	return s
}
