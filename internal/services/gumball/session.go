package gumball

import "fmt"

func (s Session) insert() (Session, error) {
	if s.Phase != PhaseIdle {
		return s, fmt.Errorf("%w: insert from %s", ErrWrongPhase, s.Phase)
	}

	return Session{Phase: PhaseInserted, LastDraw: s.LastDraw}, nil
}

func (s Session) crank(commit uint64) (Session, error) {
	if s.Phase != PhaseInserted {
		return s, fmt.Errorf("%w: crank from %s", ErrWrongPhase, s.Phase)
	}

	return Session{Phase: PhaseCranked, CommitBlock: commit, LastDraw: s.LastDraw}, nil
}

// reveal passes through Revealed and lands back on Idle in the same step.
func (s Session) reveal(item Item) (Session, error) {
	if s.Phase != PhaseCranked {
		return s, fmt.Errorf("%w: reveal from %s", ErrWrongPhase, s.Phase)
	}

	revealed := Session{Phase: PhaseRevealed, CommitBlock: s.CommitBlock, LastDraw: &item}

	return revealed.reset(), nil
}

func (s Session) reset() Session {
	return Session{Phase: PhaseIdle, LastDraw: s.LastDraw}
}
