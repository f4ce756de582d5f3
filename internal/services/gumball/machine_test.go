package gumball_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

func TestMachine_EndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	stocked := h.stock(t, 20)
	require.True(t, h.active(t))

	const buyer gumball.Account = "buyer"

	base := h.params.Tiers[0]
	require.NoError(t, h.ref.Mint(buyer, base.From))
	require.NoError(t, h.ref.Approve(buyer, h.params.Custodian, base.From))

	minted, err := h.m.AcquireCredits(t.Context(), buyer, base.From)
	require.NoError(t, err)
	require.Equal(t, base.To, minted)
	require.Equal(t, base.To, h.balance(t, buyer))
	require.Zero(t, h.ref.BalanceOf(buyer))
	require.Equal(t, base.From, h.ref.BalanceOf(h.params.Custodian))

	require.NoError(t, h.m.Insert(t.Context(), buyer))
	require.Equal(t, base.To-h.params.Price, h.balance(t, buyer))

	commit, err := h.m.Crank(t.Context(), buyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000)+h.params.Window.BufferBlocks, commit)

	h.chain.advance(h.params.Window.BufferBlocks + 5)

	before := h.size(t)

	item, err := h.m.Reveal(t.Context(), buyer)
	require.NoError(t, err)
	require.Contains(t, stocked, item)
	require.Equal(t, before-1, h.size(t))

	last, ok, err := h.m.LastDraw(t.Context(), buyer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, item, last)

	owner, err := h.items.OwnerOf(item)
	require.NoError(t, err)
	require.Equal(t, buyer, owner)

	sess, err := h.m.Session(t.Context(), buyer)
	require.NoError(t, err)
	require.Equal(t, gumball.PhaseIdle, sess.Phase)

	ev, ok := h.sink.last(gumball.EventGumballDispensed)
	require.True(t, ok)
	require.Equal(t, buyer, ev.Account)
	require.Equal(t, item, *ev.Item)
	require.Equal(t, commit, ev.Block)

	minted2, ok := h.sink.last(gumball.EventGumMinted)
	require.True(t, ok)
	require.Equal(t, buyer, minted2.Account)
	require.Equal(t, base.To, minted2.Amount)
}

func TestMachine_AcquireCredits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		minted     int64
		allowance  int64
		deposit    int64
		wantCredit int64
		wantPulled int64
		wantErr    error
	}{
		{name: "base_tier", minted: 1_000, allowance: 1_000, deposit: 100, wantCredit: 200, wantPulled: 100},
		{name: "between_tiers_uses_base", minted: 1_000, allowance: 1_000, deposit: 150, wantCredit: 200, wantPulled: 100},
		{name: "deal_tier", minted: 1_000, allowance: 1_000, deposit: 200, wantCredit: 500, wantPulled: 200},
		{name: "above_deal_pulls_only_deal", minted: 1_000, allowance: 1_000, deposit: 900, wantCredit: 500, wantPulled: 200},
		{name: "below_minimum", minted: 1_000, allowance: 1_000, deposit: 50, wantErr: gumball.ErrBelowMinimumDeposit},
		{name: "no_allowance", minted: 1_000, allowance: 0, deposit: 100, wantErr: gumball.ErrInsufficientAllowance},
		{name: "no_funds", minted: 10, allowance: 1_000, deposit: 100, wantErr: gumball.ErrInsufficientFunds},
		{name: "zero", minted: 1_000, allowance: 1_000, deposit: 0, wantErr: gumball.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			require.NoError(t, h.ref.Mint("alice", tt.minted))
			require.NoError(t, h.ref.Approve("alice", h.params.Custodian, tt.allowance))

			got, err := h.m.AcquireCredits(t.Context(), "alice", tt.deposit)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Zero(t, h.balance(t, "alice"))
				require.Equal(t, tt.minted, h.ref.BalanceOf("alice"))

				supply, err := h.m.TotalSupply(t.Context())
				require.NoError(t, err)
				require.Zero(t, supply)

				_, emitted := h.sink.last(gumball.EventGumMinted)
				require.False(t, emitted)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantCredit, got)
			require.Equal(t, tt.wantCredit, h.balance(t, "alice"))
			require.Equal(t, tt.minted-tt.wantPulled, h.ref.BalanceOf("alice"))
			require.Equal(t, tt.wantPulled, h.ref.BalanceOf(h.params.Custodian))
		})
	}
}

func TestMachine_ReservoirCountsContributionsMinusReveals(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fund(t, "alice", 10)

	require.Zero(t, h.size(t))

	h.stock(t, 15)
	require.Equal(t, 15, h.size(t))

	for i := range 5 {
		h.play(t, "alice")
		require.Equal(t, 15-(i+1), h.size(t))
	}

	h.stock(t, 3)
	require.Equal(t, 13, h.size(t))
}

func TestMachine_ActivationHysteresis(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fund(t, "alice", 20)

	th := h.params.Thresholds

	h.stock(t, th.ActivateAt-1)
	require.False(t, h.active(t), "below activateAt")

	h.stock(t, 1)
	require.True(t, h.active(t), "reached activateAt")

	// Down to just above deactivateAt: still active.
	for h.size(t) > th.DeactivateAt+1 {
		h.play(t, "alice")
	}

	require.Equal(t, th.DeactivateAt+1, h.size(t))
	require.True(t, h.active(t))

	h.play(t, "alice")
	require.Equal(t, th.DeactivateAt, h.size(t))
	require.False(t, h.active(t), "reached deactivateAt")

	err := h.m.Insert(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrMachineInactive)

	// Refill inside the band: stays off until activateAt.
	h.stock(t, th.ActivateAt-th.DeactivateAt-1)
	require.Equal(t, th.ActivateAt-1, h.size(t))
	require.False(t, h.active(t))

	h.stock(t, 1)
	require.True(t, h.active(t))

	assert.Equal(t, []gumball.EventKind{
		gumball.EventMachineActivated,
		gumball.EventMachineDeactivated,
		gumball.EventMachineActivated,
	}, filterKinds(h.sink.kinds(), gumball.EventMachineActivated, gumball.EventMachineDeactivated))
}

func TestMachine_InsertInactiveAtDeactivateThreshold(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.fund(t, "alice", 1)
	h.stock(t, h.params.Thresholds.DeactivateAt)

	require.Equal(t, h.params.Thresholds.DeactivateAt, h.size(t))

	err := h.m.Insert(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrMachineInactive)
	require.Equal(t, h.params.Tiers[0].To, h.balance(t, "alice"))
}

func TestMachine_PhaseOrdering(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stock(t, 12)
	h.fund(t, "alice", 2)

	_, err := h.m.Crank(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrWrongPhase, "crank without insert")

	_, err = h.m.Reveal(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrWrongPhase, "reveal without crank")

	h.insert(t, "alice")
	balance := h.balance(t, "alice")

	err = h.m.Insert(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrWrongPhase, "double insert")
	require.Equal(t, balance, h.balance(t, "alice"), "rejected insert must not debit")

	_, err = h.m.Reveal(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrWrongPhase, "reveal before crank")

	_, err = h.m.Crank(t.Context(), "alice")
	require.NoError(t, err)

	_, err = h.m.Crank(t.Context(), "alice")
	require.ErrorIs(t, err, gumball.ErrWrongPhase, "double crank")

	// Another account's session is independent.
	_, err = h.m.Crank(t.Context(), "bob")
	require.ErrorIs(t, err, gumball.ErrWrongPhase)

	sess, err := h.m.Session(t.Context(), "alice")
	require.NoError(t, err)
	require.Equal(t, gumball.PhaseCranked, sess.Phase)
}

func TestMachine_InsufficientCredits(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stock(t, 12)

	err := h.m.Insert(t.Context(), "broke")
	require.ErrorIs(t, err, gumball.ErrInsufficientCredits)

	sess, err := h.m.Session(t.Context(), "broke")
	require.NoError(t, err)
	require.Equal(t, gumball.PhaseIdle, sess.Phase)
}

func TestMachine_RevealTooEarly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stock(t, 12)
	h.fund(t, "alice", 1)
	h.insert(t, "alice")

	commit, err := h.m.Crank(t.Context(), "alice")
	require.NoError(t, err)

	// At the crank height and at the commit block itself.
	for range 2 {
		_, err = h.m.Reveal(t.Context(), "alice")
		require.ErrorIs(t, err, gumball.ErrTooEarly)

		h.chain.advance(1)
	}

	height, err := h.chain.Height(t.Context())
	require.NoError(t, err)
	require.Equal(t, commit+1, height)

	sizeBefore := h.size(t)

	_, err = h.m.Reveal(t.Context(), "alice")
	require.NoError(t, err)
	require.Equal(t, sizeBefore-1, h.size(t))
}

func TestMachine_RevealWindowBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		advance func(p gumball.Params) uint64
		wantErr error
	}{
		{
			name:    "last_block_of_window",
			advance: func(p gumball.Params) uint64 { return p.Window.BufferBlocks + p.Window.MaxBlocks },
		},
		{
			name:    "first_block_after_window",
			advance: func(p gumball.Params) uint64 { return p.Window.BufferBlocks + p.Window.MaxBlocks + 1 },
			wantErr: gumball.ErrWindowExpired,
		},
		{
			name:    "long_after_window",
			advance: func(p gumball.Params) uint64 { return 10 * p.Window.MaxBlocks },
			wantErr: gumball.ErrWindowExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.stock(t, 12)
			h.fund(t, "alice", 1)
			h.insert(t, "alice")

			_, err := h.m.Crank(t.Context(), "alice")
			require.NoError(t, err)

			h.chain.advance(tt.advance(h.params))

			balance := h.balance(t, "alice")

			_, err = h.m.Reveal(t.Context(), "alice")
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.Equal(t, 11, h.size(t))

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, 12, h.size(t), "expired reveal must not draw")
			require.Equal(t, balance, h.balance(t, "alice"), "expired reveal forfeits, no refund")

			sess, err := h.m.Session(t.Context(), "alice")
			require.NoError(t, err)
			require.Equal(t, gumball.PhaseIdle, sess.Phase)

			_, ok, err := h.m.LastDraw(t.Context(), "alice")
			require.NoError(t, err)
			require.False(t, ok)

			_, err = h.m.Reveal(t.Context(), "alice")
			require.ErrorIs(t, err, gumball.ErrWrongPhase)

			_, emitted := h.sink.last(gumball.EventSessionExpired)
			require.True(t, emitted)
		})
	}
}

func TestMachine_DrawsEveryItemExactlyOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(p *gumball.Params) {
		p.Thresholds = gumball.Thresholds{ActivateAt: 5, DeactivateAt: 0}
	})

	stocked := h.stock(t, 16)
	h.fund(t, "alice", 8)

	drawn := make([]gumball.Item, 0, len(stocked))
	for range stocked {
		drawn = append(drawn, h.play(t, "alice"))
	}

	require.ElementsMatch(t, stocked, drawn)
	require.Zero(t, h.size(t))
	require.False(t, h.active(t))
}

func TestMachine_EmptyReservoirLeavesSessionCranked(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(p *gumball.Params) {
		p.Thresholds = gumball.Thresholds{ActivateAt: 1, DeactivateAt: 0}
	})

	h.stock(t, 1)
	h.fund(t, "alice", 1)
	h.fund(t, "bob", 1)

	for _, acct := range []gumball.Account{"alice", "bob"} {
		h.insert(t, acct)

		_, err := h.m.Crank(t.Context(), acct)
		require.NoError(t, err)
	}

	h.chain.advance(h.params.Window.BufferBlocks + 1)

	_, err := h.m.Reveal(t.Context(), "alice")
	require.NoError(t, err)

	_, err = h.m.Reveal(t.Context(), "bob")
	require.ErrorIs(t, err, gumball.ErrEmptyReservoir)

	sess, err := h.m.Session(t.Context(), "bob")
	require.NoError(t, err)
	require.Equal(t, gumball.PhaseCranked, sess.Phase)

	// Restocking inside the window lets bob finish.
	item, err := h.items.Mint("late", contributor)
	require.NoError(t, err)
	require.NoError(t, h.m.ContributeItem(t.Context(), contributor, item))

	got, err := h.m.Reveal(t.Context(), "bob")
	require.NoError(t, err)
	require.Equal(t, item, got)
}

func TestMachine_ContributeRollsBackOnCustodyFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(p *gumball.Params) {
		p.Thresholds = gumball.Thresholds{ActivateAt: 1, DeactivateAt: 0}
	})

	item, err := h.items.Mint("kittens", contributor)
	require.NoError(t, err)

	err = h.m.ContributeItem(t.Context(), contributor, item)
	require.ErrorIs(t, err, gumball.ErrNotApproved)
	require.Zero(t, h.size(t))
	require.False(t, h.active(t), "activation must roll back with the reservoir")

	h.items.SetApprovalForAll(contributor, h.params.Custodian, true)
	require.NoError(t, h.m.ContributeItem(t.Context(), contributor, item))
	require.True(t, h.active(t))

	err = h.m.ContributeItem(t.Context(), contributor, item)
	require.ErrorIs(t, err, gumball.ErrDuplicateItem)
	require.Equal(t, 1, h.size(t))

	err = h.m.ContributeItem(t.Context(), "", item)
	require.ErrorIs(t, err, gumball.ErrInvalidAccount)
}

func TestMachine_DuplicateOperationID(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.ref.Mint("alice", 1_000))
	require.NoError(t, h.ref.Approve("alice", h.params.Custodian, 1_000))

	ctx := gumball.WithOperationID(t.Context(), "op-1")

	_, err := h.m.AcquireCredits(ctx, "alice", 100)
	require.NoError(t, err)

	_, err = h.m.AcquireCredits(ctx, "alice", 100)
	require.ErrorIs(t, err, gumball.ErrDuplicateOperation)
	require.Equal(t, int64(200), h.balance(t, "alice"))
	require.Equal(t, int64(900), h.ref.BalanceOf("alice"))

	// A failed operation does not burn its id.
	ctx2 := gumball.WithOperationID(t.Context(), "op-2")

	err = h.m.Insert(ctx2, "alice")
	require.ErrorIs(t, err, gumball.ErrMachineInactive)

	h.stock(t, 10)
	require.NoError(t, h.m.Insert(ctx2, "alice"))
}

func TestMachine_Conservation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stock(t, 40)

	accts := []gumball.Account{accountN(1), accountN(2), accountN(3), accountN(4)}
	for i, a := range accts {
		h.fund(t, a, i+2)
	}

	// Interleave sessions across accounts.
	for round := range 3 {
		for i, a := range accts {
			if i%2 == round%2 {
				h.play(t, a)

				continue
			}

			h.insert(t, a)

			_, err := h.m.Crank(t.Context(), a)
			require.NoError(t, err)
		}

		h.chain.advance(h.params.Window.BufferBlocks + 1)

		for i, a := range accts {
			if i%2 != round%2 {
				_, err := h.m.Reveal(t.Context(), a)
				require.NoError(t, err)
			}
		}
	}

	require.NoError(t, h.m.Transfer(t.Context(), accts[0], accts[1], 50))

	var sum int64
	for _, a := range accts {
		sum += h.balance(t, a)
	}

	supply, err := h.m.TotalSupply(t.Context())
	require.NoError(t, err)

	require.Equal(t, h.minted-h.spent, sum)
	require.Equal(t, sum, supply)
	require.Equal(t, 40-12, h.size(t))
}

func TestMachine_ItemsAndStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	stocked := h.stock(t, 12)

	page, err := h.m.Items(t.Context(), 0, 5)
	require.NoError(t, err)
	require.Equal(t, stocked[:5], page)

	page, err = h.m.Items(t.Context(), 10, 5)
	require.NoError(t, err)
	require.Equal(t, stocked[10:], page)

	page, err = h.m.Items(t.Context(), 3, math.MaxInt)
	require.NoError(t, err)
	require.Equal(t, stocked[3:], page)

	_, err = h.m.Items(t.Context(), -1, 5)
	require.ErrorIs(t, err, gumball.ErrInvalidAmount)

	st, err := h.m.Status(t.Context())
	require.NoError(t, err)
	require.Equal(t, gumball.Status{Active: true, ReservoirSize: 12, Height: 1_000}, st)
}

func TestNew_RejectsInvalidParams(t *testing.T) {
	t.Parallel()

	params := gumball.DefaultParams()
	params.Window.BufferBlocks = 0

	_, err := gumball.New(gumball.Config{Params: params})
	require.ErrorIs(t, err, gumball.ErrInvalidParams)
}

func filterKinds(kinds []gumball.EventKind, keep ...gumball.EventKind) []gumball.EventKind {
	var out []gumball.EventKind

	for _, k := range kinds {
		for _, want := range keep {
			if k == want {
				out = append(out, k)
			}
		}
	}

	return out
}
