package gumball

import (
	"fmt"
	"strings"
	"time"
)

// Account is an external identity. Accounts are opaque strings; the host
// ledger is responsible for authenticating them.
type Account string

func (a Account) Validate() error {
	s := string(a)
	if strings.TrimSpace(s) == "" || s != strings.TrimSpace(s) || len(s) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidAccount, s)
	}

	return nil
}

// Item identifies one unique collectible.
type Item struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

func (i Item) String() string {
	return fmt.Sprintf("%s/%d", i.Collection, i.TokenID)
}

func (i Item) Validate() error {
	if strings.TrimSpace(i.Collection) == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidItem)
	}

	return nil
}

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseInserted
	PhaseCranked
	PhaseRevealed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInserted:
		return "inserted"
	case PhaseCranked:
		return "cranked"
	case PhaseRevealed:
		return "revealed"
	default:
		return fmt.Sprintf("phase(%d)", p)
	}
}

// Session is one account's progress through insert, crank and reveal.
// LastDraw survives resets; everything else is cleared on return to Idle.
type Session struct {
	Phase       Phase
	CommitBlock uint64
	LastDraw    *Item
}

type EventKind string

const (
	EventGumMinted          EventKind = "GumMinted"
	EventTransfer           EventKind = "Transfer"
	EventApproval           EventKind = "Approval"
	EventGumballAdded       EventKind = "GumballAdded"
	EventGumInserted        EventKind = "GumInserted"
	EventLeverCranked       EventKind = "LeverCranked"
	EventGumballDispensed   EventKind = "GumballDispensed"
	EventSessionExpired     EventKind = "SessionExpired"
	EventMachineActivated   EventKind = "MachineActivated"
	EventMachineDeactivated EventKind = "MachineDeactivated"
)

// Event describes a committed state change. Fields that do not apply to a
// kind are left zero.
type Event struct {
	Kind        EventKind `json:"kind"`
	Account     Account   `json:"account,omitempty"`
	Counterpart Account   `json:"counterpart,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Item        *Item     `json:"item,omitempty"`
	Block       uint64    `json:"block,omitempty"`
	At          time.Time `json:"at"`
}

// Status is a point-in-time snapshot of the machine.
type Status struct {
	Active        bool   `json:"active"`
	ReservoirSize int    `json:"reservoirSize"`
	Height        uint64 `json:"height"`
	TotalSupply   int64  `json:"totalSupply"`
}
