package gumball

import (
	"context"
	"fmt"
)

// Slots is dense slot storage 0..n-1 for reservoir items.
type Slots interface {
	SlotCount(ctx context.Context) (int, error)
	SlotAt(ctx context.Context, index int) (Item, error)
	SetSlot(ctx context.Context, index int, item Item) error
	AppendSlot(ctx context.Context, item Item) error
	// PopSlot removes and returns the last slot.
	PopSlot(ctx context.Context) (Item, error)
	// SlotOf returns the index of item, or -1.
	SlotOf(ctx context.Context, item Item) (int, error)
	ListSlots(ctx context.Context, offset, limit int) ([]Item, error)
}

// reservoir implements add and swap-and-pop removal on top of Slots.
// Indices are not stable across removals.
type reservoir struct {
	slots Slots
}

// add appends item and returns the new size.
func (r reservoir) add(ctx context.Context, item Item) (int, error) {
	idx, err := r.slots.SlotOf(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("lookup slot: %w", err)
	}

	if idx >= 0 {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateItem, item)
	}

	err = r.slots.AppendSlot(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("append slot: %w", err)
	}

	n, err := r.slots.SlotCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}

	return n, nil
}

// drawAndRemove removes the item at index, moving the last item into its
// place. It returns the drawn item and the new size.
func (r reservoir) drawAndRemove(ctx context.Context, index int) (Item, int, error) {
	n, err := r.slots.SlotCount(ctx)
	if err != nil {
		return Item{}, 0, fmt.Errorf("count slots: %w", err)
	}

	if n == 0 {
		return Item{}, 0, ErrEmptyReservoir
	}

	if index < 0 || index >= n {
		return Item{}, 0, fmt.Errorf("draw index %d out of range [0,%d)", index, n)
	}

	drawn, err := r.slots.SlotAt(ctx, index)
	if err != nil {
		return Item{}, 0, fmt.Errorf("read slot %d: %w", index, err)
	}

	// Pop first so the last item is never present twice.
	last, err := r.slots.PopSlot(ctx)
	if err != nil {
		return Item{}, 0, fmt.Errorf("pop slot: %w", err)
	}

	if index != n-1 {
		err = r.slots.SetSlot(ctx, index, last)
		if err != nil {
			return Item{}, 0, fmt.Errorf("move slot %d to %d: %w", n-1, index, err)
		}
	}

	return drawn, n - 1, nil
}
