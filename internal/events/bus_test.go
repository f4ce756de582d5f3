package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

func TestBus_FanOut(t *testing.T) {
	t.Parallel()

	b := NewBus(nil)

	a, cancelA := b.Subscribe(4)
	defer cancelA()

	c, cancelC := b.Subscribe(4)
	defer cancelC()

	require.Equal(t, 2, b.Subscribers())

	b.Publish(gumball.Event{Kind: gumball.EventGumMinted, Account: "alice", Amount: 200})

	for _, ch := range []<-chan gumball.Event{a, c} {
		ev := <-ch
		require.Equal(t, gumball.EventGumMinted, ev.Kind)
		require.Equal(t, gumball.Account("alice"), ev.Account)
	}
}

func TestBus_SlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	b := NewBus(nil)

	slow, cancel := b.Subscribe(1)
	defer cancel()

	b.Publish(gumball.Event{Kind: gumball.EventLeverCranked, Block: 1})
	b.Publish(gumball.Event{Kind: gumball.EventLeverCranked, Block: 2})

	require.Equal(t, uint64(1), b.Dropped())

	ev := <-slow
	require.Equal(t, uint64(1), ev.Block, "oldest event is kept")
}

func TestBus_CancelClosesAndUnregisters(t *testing.T) {
	t.Parallel()

	b := NewBus(nil)

	ch, cancel := b.Subscribe(0)
	cancel()
	cancel()

	_, open := <-ch
	require.False(t, open)
	require.Zero(t, b.Subscribers())

	// Publishing with no subscribers is a no-op.
	b.Publish(gumball.Event{Kind: gumball.EventMachineActivated})
	require.Zero(t, b.Dropped())
}
