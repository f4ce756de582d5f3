package gumball_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/gumball/internal/ledgers/memledger"
	"github.com/fastprodman/gumball/internal/repos/memory"
	"github.com/fastprodman/gumball/internal/services/gumball"
)

const contributor gumball.Account = "contributor"

// fakeChain lets tests move the height; block hashes are a pure function of
// the height.
type fakeChain struct {
	mu     sync.Mutex
	height uint64

	// afterHeight runs once a height has been read, outside the lock.
	afterHeight func(c *fakeChain)
}

func (c *fakeChain) Height(context.Context) (uint64, error) {
	c.mu.Lock()
	h, hook := c.height, c.afterHeight
	c.mu.Unlock()

	if hook != nil {
		hook(c)
	}

	return h, nil
}

func (c *fakeChain) setAfterHeight(fn func(c *fakeChain)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.afterHeight = fn
}

func (c *fakeChain) current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.height
}

func (c *fakeChain) BlockHash(_ context.Context, height uint64) (chainhash.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if height > c.height {
		return chainhash.Hash{}, gumball.ErrBlockUnavailable
	}

	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)

	return chainhash.HashH(b[:]), nil
}

func (c *fakeChain) advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.height += n
}

type recordingSink struct {
	mu     sync.Mutex
	events []gumball.Event
}

func (s *recordingSink) Publish(ev gumball.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []gumball.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]gumball.EventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}

	return out
}

func (s *recordingSink) last(kind gumball.EventKind) (gumball.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Kind == kind {
			return s.events[i], true
		}
	}

	return gumball.Event{}, false
}

type harness struct {
	m      *gumball.Machine
	params gumball.Params
	ref    *memledger.Fungible
	items  *memledger.Collectibles
	chain  *fakeChain
	sink   *recordingSink
	minted int64
	spent  int64
}

func newHarness(t *testing.T, mutate ...func(p *gumball.Params)) *harness {
	t.Helper()

	return newHarnessWithStore(t, func(*fakeChain) gumball.Store { return memory.New() }, mutate...)
}

// newHarnessWithStore lets a test wrap the store, e.g. to move the chain
// while an operation waits for the writer lock.
func newHarnessWithStore(t *testing.T, store func(c *fakeChain) gumball.Store, mutate ...func(p *gumball.Params)) *harness {
	t.Helper()

	params := gumball.DefaultParams()
	for _, fn := range mutate {
		fn(&params)
	}

	h := &harness{
		params: params,
		ref:    memledger.NewFungible(),
		items:  memledger.NewCollectibles(),
		chain:  &fakeChain{height: 1_000},
		sink:   &recordingSink{},
	}

	m, err := gumball.New(gumball.Config{
		Params:    params,
		Store:     store(h.chain),
		Reference: h.ref,
		Custody:   h.items,
		Chain:     h.chain,
		Events:    h.sink,
	})
	require.NoError(t, err)

	h.m = m

	return h
}

// fund gives acct enough reference tokens and allowance for n base-tier
// exchanges and performs them.
func (h *harness) fund(t *testing.T, acct gumball.Account, n int) {
	t.Helper()

	base := h.params.Tiers[0]

	require.NoError(t, h.ref.Mint(acct, base.From*int64(n)))
	require.NoError(t, h.ref.Approve(acct, h.params.Custodian, base.From*int64(n)))

	for range n {
		minted, err := h.m.AcquireCredits(t.Context(), acct, base.From)
		require.NoError(t, err)
		require.Equal(t, base.To, minted)

		h.minted += minted
	}
}

func (h *harness) stock(t *testing.T, n int) []gumball.Item {
	t.Helper()

	h.items.SetApprovalForAll(contributor, h.params.Custodian, true)

	out := make([]gumball.Item, 0, n)

	for range n {
		item, err := h.items.Mint("kittens", contributor)
		require.NoError(t, err)
		require.NoError(t, h.m.ContributeItem(t.Context(), contributor, item))

		out = append(out, item)
	}

	return out
}

func (h *harness) insert(t *testing.T, acct gumball.Account) {
	t.Helper()

	require.NoError(t, h.m.Insert(t.Context(), acct))

	h.spent += h.params.Price
}

// play runs a full insert, crank, reveal cycle for an already funded account.
func (h *harness) play(t *testing.T, acct gumball.Account) gumball.Item {
	t.Helper()

	h.insert(t, acct)

	_, err := h.m.Crank(t.Context(), acct)
	require.NoError(t, err)

	h.chain.advance(h.params.Window.BufferBlocks + 1)

	item, err := h.m.Reveal(t.Context(), acct)
	require.NoError(t, err)

	return item
}

func (h *harness) size(t *testing.T) int {
	t.Helper()

	n, err := h.m.ReservoirSize(t.Context())
	require.NoError(t, err)

	return n
}

func (h *harness) active(t *testing.T) bool {
	t.Helper()

	active, err := h.m.IsActive(t.Context())
	require.NoError(t, err)

	return active
}

func (h *harness) balance(t *testing.T, acct gumball.Account) int64 {
	t.Helper()

	b, err := h.m.BalanceOf(t.Context(), acct)
	require.NoError(t, err)

	return b
}

func accountN(i int) gumball.Account {
	return gumball.Account(fmt.Sprintf("acct-%02d", i))
}
