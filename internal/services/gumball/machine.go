package gumball

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Dispenser is the vending side of the machine.
type Dispenser interface {
	AcquireCredits(ctx context.Context, acct Account, deposit int64) (int64, error)
	ContributeItem(ctx context.Context, acct Account, item Item) error
	Insert(ctx context.Context, acct Account) error
	Crank(ctx context.Context, acct Account) (uint64, error)
	Reveal(ctx context.Context, acct Account) (Item, error)

	LastDraw(ctx context.Context, acct Account) (Item, bool, error)
	Session(ctx context.Context, acct Account) (Session, error)
	ReservoirSize(ctx context.Context) (int, error)
	IsActive(ctx context.Context) (bool, error)
	Items(ctx context.Context, offset, limit int) ([]Item, error)
	Status(ctx context.Context) (Status, error)
	Params() Params
}

var (
	_ Dispenser    = (*Machine)(nil)
	_ CreditLedger = (*Machine)(nil)
)

type Config struct {
	Params    Params
	Store     Store
	Reference ReferenceToken
	Custody   ItemCustody
	Chain     Chain

	// Optional.
	Events EventSink
	Logger *slog.Logger
	Now    func() time.Time
}

// Machine implements Dispenser and CreditLedger over a Store. All mutating
// calls go through Store.Update, which serializes them.
type Machine struct {
	params    Params
	store     Store
	reference ReferenceToken
	custody   ItemCustody
	chain     Chain
	events    EventSink
	log       *slog.Logger
	now       func() time.Time
}

func New(cfg Config) (*Machine, error) {
	err := cfg.Params.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate params: %w", err)
	}

	if cfg.Store == nil || cfg.Reference == nil || cfg.Custody == nil || cfg.Chain == nil {
		return nil, errors.New("store, reference token, custody and chain are required")
	}

	m := &Machine{
		params:    cfg.Params,
		store:     cfg.Store,
		reference: cfg.Reference,
		custody:   cfg.Custody,
		chain:     cfg.Chain,
		events:    cfg.Events,
		log:       cfg.Logger,
		now:       cfg.Now,
	}

	if m.events == nil {
		m.events = nopSink{}
	}

	if m.log == nil {
		m.log = slog.Default()
	}

	if m.now == nil {
		m.now = time.Now
	}

	return m, nil
}

func (m *Machine) Params() Params {
	return m.params
}

type opIDKey struct{}

// WithOperationID tags ctx with a caller-chosen id. A mutating call carrying
// an id that was already committed fails with ErrDuplicateOperation.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, opIDKey{}, id)
}

func OperationID(ctx context.Context) string {
	id, _ := ctx.Value(opIDKey{}).(string)

	return id
}

// emitter collects events inside a transaction; they are published only
// after the commit.
type emitter struct {
	now    time.Time
	events []Event
}

func (e *emitter) emit(ev Event) {
	ev.At = e.now
	e.events = append(e.events, ev)
}

func (m *Machine) update(ctx context.Context, acct Account, kind string,
	fn func(ctx context.Context, tx Tx, em *emitter) error,
) error {
	var em emitter

	err := m.store.Update(ctx, func(ctx context.Context, tx Tx) error {
		em = emitter{now: m.now()}

		id := OperationID(ctx)
		if id != "" && kind != "" {
			err := tx.RecordOperation(ctx, id, acct, kind)
			if err != nil {
				return fmt.Errorf("record operation %q: %w", id, err)
			}
		}

		return fn(ctx, tx, &em)
	})
	if err != nil {
		return err
	}

	for _, ev := range em.events {
		m.events.Publish(ev)
	}

	return nil
}

func (m *Machine) view(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return m.store.View(ctx, fn)
}

// settleActivation recomputes the activation flag after a reservoir change.
func (m *Machine) settleActivation(ctx context.Context, tx Tx, total int, em *emitter) error {
	active, err := tx.Active(ctx)
	if err != nil {
		return fmt.Errorf("read active: %w", err)
	}

	next := m.params.Thresholds.Next(active, total)
	if next == active {
		return nil
	}

	err = tx.SetActive(ctx, next)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}

	kind := EventMachineDeactivated
	if next {
		kind = EventMachineActivated
	}

	em.emit(Event{Kind: kind})

	return nil
}

// AcquireCredits exchanges reference tokens for GUM at the best tier the
// deposit qualifies for. Only the tier's From amount is pulled from acct.
func (m *Machine) AcquireCredits(ctx context.Context, acct Account, deposit int64) (int64, error) {
	err := acct.Validate()
	if err != nil {
		return 0, err
	}

	tier, err := m.params.Tiers.Select(deposit)
	if err != nil {
		return 0, err
	}

	err = m.update(ctx, acct, "acquire_credits", func(ctx context.Context, tx Tx, em *emitter) error {
		err := tx.AddBalance(ctx, acct, tier.To)
		if err != nil {
			return fmt.Errorf("credit balance: %w", err)
		}

		err = tx.AddSupply(ctx, tier.To)
		if err != nil {
			return fmt.Errorf("increase supply: %w", err)
		}

		// External transfer last: nothing after it can fail in this tx.
		err = m.reference.TransferFrom(ctx, m.params.Custodian, acct, m.params.Custodian, tier.From)
		if err != nil {
			return fmt.Errorf("pull deposit: %w", err)
		}

		em.emit(Event{Kind: EventGumMinted, Account: acct, Amount: tier.To})

		return nil
	})
	if err != nil {
		m.log.Debug("acquire credits rejected", "account", acct, "deposit", deposit, "error", err)

		return 0, fmt.Errorf("acquire credits: %w", err)
	}

	m.log.Info("gum minted", "account", acct, "deposit", tier.From, "minted", tier.To)

	return tier.To, nil
}

// ContributeItem takes custody of item from acct and adds it to the reservoir.
func (m *Machine) ContributeItem(ctx context.Context, acct Account, item Item) error {
	err := acct.Validate()
	if err != nil {
		return err
	}

	err = item.Validate()
	if err != nil {
		return err
	}

	var size int

	err = m.update(ctx, acct, "contribute_item", func(ctx context.Context, tx Tx, em *emitter) error {
		n, err := reservoir{slots: tx}.add(ctx, item)
		if err != nil {
			return err
		}

		err = m.settleActivation(ctx, tx, n, em)
		if err != nil {
			return err
		}

		err = m.custody.TransferFrom(ctx, m.params.Custodian, acct, m.params.Custodian, item)
		if err != nil {
			return fmt.Errorf("take custody: %w", err)
		}

		em.emit(Event{Kind: EventGumballAdded, Account: acct, Item: &item})
		size = n

		return nil
	})
	if err != nil {
		m.log.Debug("contribution rejected", "account", acct, "item", item.String(), "error", err)

		return fmt.Errorf("contribute item: %w", err)
	}

	m.log.Info("gumball added", "account", acct, "item", item.String(), "reservoir_size", size)

	return nil
}

// Insert burns the entry price and moves the session to Inserted.
func (m *Machine) Insert(ctx context.Context, acct Account) error {
	err := acct.Validate()
	if err != nil {
		return err
	}

	err = m.update(ctx, acct, "insert", func(ctx context.Context, tx Tx, em *emitter) error {
		s, err := tx.Session(ctx, acct)
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}

		next, err := s.insert()
		if err != nil {
			return err
		}

		active, err := tx.Active(ctx)
		if err != nil {
			return fmt.Errorf("read active: %w", err)
		}

		if !active {
			return ErrMachineInactive
		}

		balance, err := tx.Balance(ctx, acct)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		if balance < m.params.Price {
			return fmt.Errorf("%w: have %d, price %d", ErrInsufficientCredits, balance, m.params.Price)
		}

		err = tx.AddBalance(ctx, acct, -m.params.Price)
		if err != nil {
			return fmt.Errorf("debit price: %w", err)
		}

		err = tx.AddSupply(ctx, -m.params.Price)
		if err != nil {
			return fmt.Errorf("burn price: %w", err)
		}

		err = tx.PutSession(ctx, acct, next)
		if err != nil {
			return fmt.Errorf("write session: %w", err)
		}

		em.emit(Event{Kind: EventGumInserted, Account: acct, Amount: m.params.Price})

		return nil
	})
	if err != nil {
		m.log.Debug("insert rejected", "account", acct, "error", err)

		return fmt.Errorf("insert: %w", err)
	}

	m.log.Info("gum inserted", "account", acct, "price", m.params.Price)

	return nil
}

// Crank commits the session to a block BufferBlocks ahead of the current
// height and returns it. The height is read under the store's writer lock,
// and the crank is refused if the commit block exists by the time it lands.
func (m *Machine) Crank(ctx context.Context, acct Account) (uint64, error) {
	err := acct.Validate()
	if err != nil {
		return 0, err
	}

	var height, commit uint64

	err = m.update(ctx, acct, "crank", func(ctx context.Context, tx Tx, em *emitter) error {
		s, err := tx.Session(ctx, acct)
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}

		height, err = m.chain.Height(ctx)
		if err != nil {
			return fmt.Errorf("read height: %w", err)
		}

		commit = m.params.Window.Commit(height)

		next, err := s.crank(commit)
		if err != nil {
			return err
		}

		err = tx.PutSession(ctx, acct, next)
		if err != nil {
			return fmt.Errorf("write session: %w", err)
		}

		_, err = m.chain.BlockHash(ctx, commit)
		switch {
		case err == nil:
			return fmt.Errorf("%w: block %d", ErrCommitBlockPassed, commit)
		case !errors.Is(err, ErrBlockUnavailable):
			return fmt.Errorf("look up commit block: %w", err)
		}

		em.emit(Event{Kind: EventLeverCranked, Account: acct, Block: commit})

		return nil
	})
	if err != nil {
		m.log.Debug("crank rejected", "account", acct, "error", err)

		return 0, fmt.Errorf("crank: %w", err)
	}

	m.log.Info("lever cranked", "account", acct, "height", height, "commit_block", commit)

	return commit, nil
}

// Reveal draws an item for a cranked session whose window is open.
//
// A closed window resets the session to Idle (the price stays burned) and
// returns ErrWindowExpired; that reset is committed.
func (m *Machine) Reveal(ctx context.Context, acct Account) (Item, error) {
	err := acct.Validate()
	if err != nil {
		return Item{}, err
	}

	var (
		drawn   Item
		height  uint64
		commit  uint64
		expired error
	)

	err = m.update(ctx, acct, "reveal", func(ctx context.Context, tx Tx, em *emitter) error {
		expired = nil

		s, err := tx.Session(ctx, acct)
		if err != nil {
			return fmt.Errorf("read session: %w", err)
		}

		if s.Phase != PhaseCranked {
			return fmt.Errorf("%w: reveal from %s", ErrWrongPhase, s.Phase)
		}

		height, err = m.chain.Height(ctx)
		if err != nil {
			return fmt.Errorf("read height: %w", err)
		}

		commit = s.CommitBlock

		windowErr := m.params.Window.Check(commit, height)
		if errors.Is(windowErr, ErrWindowExpired) {
			err = tx.PutSession(ctx, acct, s.reset())
			if err != nil {
				return fmt.Errorf("reset session: %w", err)
			}

			em.emit(Event{Kind: EventSessionExpired, Account: acct, Block: commit})
			expired = windowErr

			return nil
		}

		if windowErr != nil {
			return windowErr
		}

		hash, err := m.chain.BlockHash(ctx, commit)
		if err != nil {
			return fmt.Errorf("commit block hash: %w", err)
		}

		rsv := reservoir{slots: tx}

		n, err := tx.SlotCount(ctx)
		if err != nil {
			return fmt.Errorf("count slots: %w", err)
		}

		if n == 0 {
			return ErrEmptyReservoir
		}

		item, remaining, err := rsv.drawAndRemove(ctx, drawIndex(hash, acct, commit, n))
		if err != nil {
			return err
		}

		err = m.settleActivation(ctx, tx, remaining, em)
		if err != nil {
			return err
		}

		next, err := s.reveal(item)
		if err != nil {
			return err
		}

		err = tx.PutSession(ctx, acct, next)
		if err != nil {
			return fmt.Errorf("write session: %w", err)
		}

		err = m.custody.TransferFrom(ctx, m.params.Custodian, m.params.Custodian, acct, item)
		if err != nil {
			return fmt.Errorf("release item: %w", err)
		}

		em.emit(Event{Kind: EventGumballDispensed, Account: acct, Item: &item, Block: commit})
		drawn = item

		return nil
	})
	if err != nil {
		m.log.Debug("reveal rejected", "account", acct, "height", height, "error", err)

		return Item{}, fmt.Errorf("reveal: %w", err)
	}

	if expired != nil {
		m.log.Info("session expired", "account", acct, "commit_block", commit, "height", height)

		return Item{}, fmt.Errorf("reveal: %w", expired)
	}

	m.log.Info("gumball dispensed", "account", acct, "item", drawn.String(),
		"commit_block", commit, "height", height)

	return drawn, nil
}

func (m *Machine) LastDraw(ctx context.Context, acct Account) (Item, bool, error) {
	s, err := m.Session(ctx, acct)
	if err != nil {
		return Item{}, false, err
	}

	if s.LastDraw == nil {
		return Item{}, false, nil
	}

	return *s.LastDraw, true, nil
}

func (m *Machine) Session(ctx context.Context, acct Account) (Session, error) {
	err := acct.Validate()
	if err != nil {
		return Session{}, err
	}

	var s Session

	err = m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		s, err = tx.Session(ctx, acct)

		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	return s, nil
}

func (m *Machine) ReservoirSize(ctx context.Context) (int, error) {
	var n int

	err := m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		n, err = tx.SlotCount(ctx)

		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reservoir size: %w", err)
	}

	return n, nil
}

func (m *Machine) IsActive(ctx context.Context) (bool, error) {
	var active bool

	err := m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		active, err = tx.Active(ctx)

		return err
	})
	if err != nil {
		return false, fmt.Errorf("read active: %w", err)
	}

	return active, nil
}

// MaxItemsPage caps one Items call.
const MaxItemsPage = 500

// Items lists reservoir contents in slot order. Limits above MaxItemsPage
// are clamped.
func (m *Machine) Items(ctx context.Context, offset, limit int) ([]Item, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset %d, limit %d", ErrInvalidAmount, offset, limit)
	}

	limit = min(limit, MaxItemsPage)

	var items []Item

	err := m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		items, err = tx.ListSlots(ctx, offset, limit)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return items, nil
}

func (m *Machine) Status(ctx context.Context) (Status, error) {
	height, err := m.chain.Height(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read height: %w", err)
	}

	st := Status{Height: height}

	err = m.view(ctx, func(ctx context.Context, tx Tx) error {
		var err error

		st.Active, err = tx.Active(ctx)
		if err != nil {
			return err
		}

		st.ReservoirSize, err = tx.SlotCount(ctx)
		if err != nil {
			return err
		}

		st.TotalSupply, err = tx.TotalSupply(ctx)

		return err
	})
	if err != nil {
		return Status{}, fmt.Errorf("read status: %w", err)
	}

	return st, nil
}
