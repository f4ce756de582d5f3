package memledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

var _ gumball.ItemCustody = (*Collectibles)(nil)

type operatorKey struct {
	owner, operator gumball.Account
}

// Collectibles tracks ownership of unique items across any number of
// collections, with per-item and operator-wide approvals.
type Collectibles struct {
	mu        sync.Mutex
	owners    map[gumball.Item]gumball.Account
	approvals map[gumball.Item]gumball.Account
	operators map[operatorKey]bool
	nextID    map[string]uint64
}

func NewCollectibles() *Collectibles {
	return &Collectibles{
		owners:    make(map[gumball.Item]gumball.Account),
		approvals: make(map[gumball.Item]gumball.Account),
		operators: make(map[operatorKey]bool),
		nextID:    make(map[string]uint64),
	}
}

// Mint creates the next token of collection, numbering from zero.
func (c *Collectibles) Mint(collection string, to gumball.Account) (gumball.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := gumball.Item{Collection: collection, TokenID: c.nextID[collection]}

	err := item.Validate()
	if err != nil {
		return gumball.Item{}, err
	}

	c.nextID[collection]++
	c.owners[item] = to

	return item, nil
}

func (c *Collectibles) SetApprovalForAll(owner, operator gumball.Account, approved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operators[operatorKey{owner, operator}] = approved
}

func (c *Collectibles) Approve(owner, to gumball.Account, item gumball.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owners[item] != owner {
		return fmt.Errorf("%w: %s", gumball.ErrNotOwner, item)
	}

	c.approvals[item] = to

	return nil
}

func (c *Collectibles) OwnerOf(item gumball.Item) (gumball.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, ok := c.owners[item]
	if !ok {
		return "", fmt.Errorf("%w: %s", gumball.ErrItemNotFound, item)
	}

	return owner, nil
}

func (c *Collectibles) TransferFrom(_ context.Context, operator, from, to gumball.Account, item gumball.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	owner, ok := c.owners[item]
	if !ok {
		return fmt.Errorf("%w: %s", gumball.ErrItemNotFound, item)
	}

	if owner != from {
		return fmt.Errorf("%w: %s is held by %s", gumball.ErrNotOwner, item, owner)
	}

	if operator != from && c.approvals[item] != operator && !c.operators[operatorKey{from, operator}] {
		return fmt.Errorf("%w: %s may not move %s", gumball.ErrNotApproved, operator, item)
	}

	delete(c.approvals, item)
	c.owners[item] = to

	return nil
}
