package gumball

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/ticker"
)

// SweepExpired resets every cranked session whose reveal window has closed.
// The burned price is not refunded.
func (m *Machine) SweepExpired(ctx context.Context) (int, error) {
	var swept int

	err := m.update(ctx, "", "", func(ctx context.Context, tx Tx, em *emitter) error {
		swept = 0

		height, err := m.chain.Height(ctx)
		if err != nil {
			return fmt.Errorf("read height: %w", err)
		}

		// commit + MaxBlocks < height  <=>  commit < height - MaxBlocks
		if height <= m.params.Window.MaxBlocks {
			return nil
		}

		cutoff := height - m.params.Window.MaxBlocks

		accts, err := tx.CrankedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("list expired: %w", err)
		}

		for _, acct := range accts {
			s, err := tx.Session(ctx, acct)
			if err != nil {
				return fmt.Errorf("read session %s: %w", acct, err)
			}

			err = tx.PutSession(ctx, acct, s.reset())
			if err != nil {
				return fmt.Errorf("reset session %s: %w", acct, err)
			}

			em.emit(Event{Kind: EventSessionExpired, Account: acct, Block: s.CommitBlock})
		}

		swept = len(accts)

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}

	return swept, nil
}

// RunJanitor sweeps on every tick until ctx is done.
func (m *Machine) RunJanitor(ctx context.Context, t ticker.Ticker) {
	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Ticks():
			n, err := m.SweepExpired(ctx)
			if err != nil {
				m.log.Error("sweep expired sessions", "error", err)

				continue
			}

			if n > 0 {
				m.log.Info("swept expired sessions", "count", n)
			}
		}
	}
}
