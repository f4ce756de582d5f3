package gumball

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sliceSlots struct {
	items []Item
}

func (s *sliceSlots) SlotCount(context.Context) (int, error) { return len(s.items), nil }

func (s *sliceSlots) SlotAt(_ context.Context, i int) (Item, error) { return s.items[i], nil }

func (s *sliceSlots) SetSlot(_ context.Context, i int, item Item) error {
	for _, it := range s.items {
		if it == item {
			return errors.New("item stored twice")
		}
	}

	s.items[i] = item

	return nil
}

func (s *sliceSlots) AppendSlot(_ context.Context, item Item) error {
	s.items = append(s.items, item)

	return nil
}

func (s *sliceSlots) PopSlot(context.Context) (Item, error) {
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]

	return last, nil
}

func (s *sliceSlots) SlotOf(_ context.Context, item Item) (int, error) {
	for i, it := range s.items {
		if it == item {
			return i, nil
		}
	}

	return -1, nil
}

func (s *sliceSlots) ListSlots(_ context.Context, offset, limit int) ([]Item, error) {
	return s.items[offset:min(offset+limit, len(s.items))], nil
}

func items(ids ...uint64) []Item {
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, Item{Collection: "c", TokenID: id})
	}

	return out
}

func TestReservoir_Add(t *testing.T) {
	t.Parallel()

	slots := &sliceSlots{}
	r := reservoir{slots: slots}

	for i, it := range items(0, 1, 2) {
		n, err := r.add(t.Context(), it)
		require.NoError(t, err)
		require.Equal(t, i+1, n)
	}

	_, err := r.add(t.Context(), Item{Collection: "c", TokenID: 1})
	require.ErrorIs(t, err, ErrDuplicateItem)
	require.Len(t, slots.items, 3)
}

func TestReservoir_DrawAndRemove(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		start     []Item
		index     int
		wantDrawn Item
		wantLeft  []Item
		wantErr   error
	}{
		{
			name:      "middle_swaps_last_in",
			start:     items(0, 1, 2, 3),
			index:     1,
			wantDrawn: Item{Collection: "c", TokenID: 1},
			wantLeft:  items(0, 3, 2),
		},
		{
			name:      "last_just_pops",
			start:     items(0, 1, 2),
			index:     2,
			wantDrawn: Item{Collection: "c", TokenID: 2},
			wantLeft:  items(0, 1),
		},
		{
			name:      "single_item",
			start:     items(9),
			index:     0,
			wantDrawn: Item{Collection: "c", TokenID: 9},
			wantLeft:  []Item{},
		},
		{
			name:    "empty",
			start:   nil,
			index:   0,
			wantErr: ErrEmptyReservoir,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			slots := &sliceSlots{items: append([]Item{}, tt.start...)}

			drawn, left, err := reservoir{slots: slots}.drawAndRemove(t.Context(), tt.index)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantDrawn, drawn)
			require.Equal(t, len(tt.wantLeft), left)
			require.Equal(t, tt.wantLeft, append([]Item{}, slots.items...))
		})
	}
}

func TestReservoir_DrawOutOfRange(t *testing.T) {
	t.Parallel()

	slots := &sliceSlots{items: items(0, 1)}

	_, _, err := reservoir{slots: slots}.drawAndRemove(t.Context(), 2)
	require.Error(t, err)
	require.Len(t, slots.items, 2)
}
