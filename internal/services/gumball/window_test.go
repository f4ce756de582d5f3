package gumball

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestWindow_Check(t *testing.T) {
	t.Parallel()

	w := Window{BufferBlocks: 1, MaxBlocks: 250}
	commit := w.Commit(100)
	require.Equal(t, uint64(101), commit)

	tests := []struct {
		height  uint64
		wantErr error
	}{
		{height: 100, wantErr: ErrTooEarly},
		{height: 101, wantErr: ErrTooEarly},
		{height: 102},
		{height: 351},
		{height: 352, wantErr: ErrWindowExpired},
		{height: 10_000, wantErr: ErrWindowExpired},
	}

	for _, tt := range tests {
		err := w.Check(commit, tt.height)
		if tt.wantErr == nil {
			require.NoError(t, err, "height %d", tt.height)

			continue
		}

		require.ErrorIs(t, err, tt.wantErr, "height %d", tt.height)
	}
}

func TestDrawIndex(t *testing.T) {
	t.Parallel()

	hash := chainhash.HashH([]byte("block 101"))

	for n := 1; n <= 64; n++ {
		idx := drawIndex(hash, "alice", 101, n)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, n)
		require.Equal(t, idx, drawIndex(hash, "alice", 101, n))
	}

	// Different accounts committed to the same block should not all land on
	// the same index.
	seen := make(map[int]bool)
	for _, acct := range []Account{"a", "b", "c", "d", "e", "f", "g", "h"} {
		seen[drawIndex(hash, acct, 101, 1_000)] = true
	}

	require.Greater(t, len(seen), 1)
}
