package gumball

import "errors"

// Funds.
var (
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientCredits   = errors.New("insufficient credits")
	ErrInsufficientFunds     = errors.New("insufficient reference token balance")
	ErrBelowMinimumDeposit   = errors.New("deposit below lowest exchange tier")
)

// Dispensing.
var (
	ErrMachineInactive = errors.New("machine inactive")
	ErrWrongPhase      = errors.New("wrong session phase")
	ErrTooEarly        = errors.New("reveal window not open yet")
	ErrWindowExpired   = errors.New("reveal window expired")
	ErrEmptyReservoir  = errors.New("reservoir is empty")

	// ErrCommitBlockPassed means the chain produced the commit block while
	// the crank was in flight. The crank is rolled back; cranking again is
	// safe.
	ErrCommitBlockPassed = errors.New("commit block already produced")
)

// Inventory and custody.
var (
	ErrDuplicateItem = errors.New("item already in reservoir")
	ErrItemNotFound  = errors.New("item not found")
	ErrInvalidItem   = errors.New("invalid item")
	ErrNotApproved   = errors.New("custody transfer not approved")
	ErrNotOwner      = errors.New("item not owned by sender")
)

// Input and infrastructure.
var (
	ErrInvalidAccount     = errors.New("invalid account")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidParams      = errors.New("invalid machine parameters")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrBlockUnavailable   = errors.New("block unavailable")
)
