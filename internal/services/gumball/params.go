package gumball

import (
	"fmt"
)

// Tier is one published exchange rate: depositing From reference units
// mints To GUM units.
type Tier struct {
	From int64 `yaml:"from" json:"from"`
	To   int64 `yaml:"to" json:"to"`
}

// Thresholds drive the activation hysteresis.
type Thresholds struct {
	ActivateAt   int `yaml:"activate_at" json:"activateAt"`
	DeactivateAt int `yaml:"deactivate_at" json:"deactivateAt"`
}

// Params is the fixed configuration of a machine.
type Params struct {
	// Price is the entry fee in GUM minor units, burned on insert.
	Price      int64      `yaml:"price" json:"price"`
	Thresholds Thresholds `yaml:"thresholds" json:"thresholds"`
	Window     Window     `yaml:"window" json:"window"`
	Tiers      Schedule   `yaml:"tiers" json:"tiers"`
	// Custodian is the machine's own account on the reference-token and
	// item ledgers. Deposits and contributed items are held there.
	Custodian Account `yaml:"custodian" json:"custodian"`
}

// DefaultParams is the stock machine: 1.00 GUM per play, tiers 1.00->2.00
// and 2.00->5.00.
func DefaultParams() Params {
	return Params{
		Price: 100,
		Thresholds: Thresholds{
			ActivateAt:   10,
			DeactivateAt: 2,
		},
		Window: Window{
			BufferBlocks: 1,
			MaxBlocks:    250,
		},
		Tiers: Schedule{
			{From: 100, To: 200},
			{From: 200, To: 500},
		},
		Custodian: "gumball-machine",
	}
}

func (p Params) Validate() error {
	if p.Price <= 0 {
		return fmt.Errorf("%w: price must be > 0", ErrInvalidParams)
	}

	err := p.Thresholds.Validate()
	if err != nil {
		return err
	}

	err = p.Window.Validate()
	if err != nil {
		return err
	}

	err = p.Tiers.Validate()
	if err != nil {
		return err
	}

	err = p.Custodian.Validate()
	if err != nil {
		return fmt.Errorf("%w: custodian: %w", ErrInvalidParams, err)
	}

	return nil
}

func (t Thresholds) Validate() error {
	if t.DeactivateAt < 0 {
		return fmt.Errorf("%w: deactivate_at must be >= 0", ErrInvalidParams)
	}

	if t.ActivateAt <= t.DeactivateAt {
		return fmt.Errorf("%w: activate_at (%d) must exceed deactivate_at (%d)",
			ErrInvalidParams, t.ActivateAt, t.DeactivateAt)
	}

	return nil
}

// Next returns the activation flag after the reservoir reached total items.
// An inactive machine turns on at ActivateAt; an active one turns off at or
// below DeactivateAt. Between the two the previous state is kept.
func (t Thresholds) Next(active bool, total int) bool {
	if active {
		return total > t.DeactivateAt
	}

	return total >= t.ActivateAt
}
