package gumball

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/crypto/sha3"
)

// Window bounds when a cranked session may reveal.
//
// Cranking at height h commits to block c = h + BufferBlocks. The reveal is
// accepted while c < height <= c + MaxBlocks.
type Window struct {
	BufferBlocks uint64 `yaml:"buffer_blocks" json:"bufferBlocks"`
	MaxBlocks    uint64 `yaml:"max_blocks" json:"maxBlocks"`
}

// MaxWindowBlocks bounds both window constants, which keeps commit
// arithmetic far from overflow and the host's block history finite.
const MaxWindowBlocks = 1 << 16

func (w Window) Validate() error {
	// The block at the current height is already public, so the commitment
	// has to point at least one block ahead.
	if w.BufferBlocks < 1 {
		return fmt.Errorf("%w: buffer_blocks must be >= 1", ErrInvalidParams)
	}

	if w.MaxBlocks < 1 {
		return fmt.Errorf("%w: max_blocks must be >= 1", ErrInvalidParams)
	}

	if w.BufferBlocks > MaxWindowBlocks || w.MaxBlocks > MaxWindowBlocks {
		return fmt.Errorf("%w: buffer_blocks and max_blocks must be <= %d",
			ErrInvalidParams, MaxWindowBlocks)
	}

	return nil
}

// Span is how many recent block hashes the host must retain so a reveal
// anywhere in the window can read its commit block.
func (w Window) Span() uint64 {
	return w.BufferBlocks + w.MaxBlocks + 1
}

// Commit returns the block a crank at height commits to.
func (w Window) Commit(height uint64) uint64 {
	return height + w.BufferBlocks
}

// Check reports whether a reveal at height is valid for commit.
func (w Window) Check(commit, height uint64) error {
	if height <= commit {
		return fmt.Errorf("%w: commit block %d, height %d", ErrTooEarly, commit, height)
	}

	if w.Expired(commit, height) {
		return fmt.Errorf("%w: commit block %d, closed at %d, height %d",
			ErrWindowExpired, commit, commit+w.MaxBlocks, height)
	}

	return nil
}

func (w Window) Expired(commit, height uint64) bool {
	return height > commit+w.MaxBlocks
}

// drawIndex reduces Keccak256(blockHash || account || commit) modulo n.
func drawIndex(hash chainhash.Hash, acct Account, commit uint64, n int) int {
	var c [8]byte
	binary.BigEndian.PutUint64(c[:], commit)

	h := sha3.NewLegacyKeccak256()
	h.Write(hash[:])
	h.Write([]byte(acct))
	h.Write(c[:])

	seed := new(big.Int).SetBytes(h.Sum(nil))

	return int(seed.Mod(seed, big.NewInt(int64(n))).Int64())
}
