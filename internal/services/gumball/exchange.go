package gumball

import (
	"fmt"
)

// Schedule is the tier table, ordered by ascending From.
type Schedule []Tier

func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: no exchange tiers", ErrInvalidParams)
	}

	for i, t := range s {
		if t.From <= 0 || t.To <= 0 {
			return fmt.Errorf("%w: tier %d: amounts must be > 0", ErrInvalidParams, i)
		}

		if i > 0 && t.From <= s[i-1].From {
			return fmt.Errorf("%w: tier %d: from must be strictly ascending", ErrInvalidParams, i)
		}
	}

	return nil
}

// Select returns the highest tier whose From does not exceed deposit.
// Amounts between two thresholds resolve to the lower one.
func (s Schedule) Select(deposit int64) (Tier, error) {
	if deposit <= 0 {
		return Tier{}, fmt.Errorf("%w: deposit must be > 0", ErrInvalidAmount)
	}

	found := -1
	for i, t := range s {
		if t.From > deposit {
			break
		}

		found = i
	}

	if found < 0 {
		return Tier{}, fmt.Errorf("%w: %d", ErrBelowMinimumDeposit, deposit)
	}

	return s[found], nil
}
