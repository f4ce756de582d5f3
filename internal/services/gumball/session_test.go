package gumball

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_Transitions(t *testing.T) {
	t.Parallel()

	prize := Item{Collection: "c", TokenID: 7}

	s, err := Session{}.insert()
	require.NoError(t, err)
	require.Equal(t, PhaseInserted, s.Phase)

	_, err = s.insert()
	require.ErrorIs(t, err, ErrWrongPhase)

	_, err = s.reveal(prize)
	require.ErrorIs(t, err, ErrWrongPhase)

	s, err = s.crank(42)
	require.NoError(t, err)
	require.Equal(t, PhaseCranked, s.Phase)
	require.Equal(t, uint64(42), s.CommitBlock)

	_, err = s.crank(43)
	require.ErrorIs(t, err, ErrWrongPhase)

	_, err = s.insert()
	require.ErrorIs(t, err, ErrWrongPhase)

	s, err = s.reveal(prize)
	require.NoError(t, err)
	require.Equal(t, Session{Phase: PhaseIdle, LastDraw: &prize}, s)

	_, err = Session{}.crank(1)
	require.ErrorIs(t, err, ErrWrongPhase)

	// The last draw survives the next attempt.
	s, err = s.insert()
	require.NoError(t, err)
	require.Equal(t, &prize, s.LastDraw)
}
