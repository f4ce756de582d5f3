// Package chain simulates the host ledger the machine draws its randomness
// from. Blocks are produced on a clock; nothing can set the height directly.
package chain

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

// DefaultHistoryDepth matches how far back an EVM BLOCKHASH can look.
const DefaultHistoryDepth = 256

var _ gumball.Chain = (*SimChain)(nil)

// HistoryDepthFor returns a history depth that keeps every commit block of
// w readable until its window closes.
func HistoryDepthFor(w gumball.Window) int {
	return max(DefaultHistoryDepth, int(w.Span()))
}

type Config struct {
	// Ticker paces block production. Required.
	Ticker ticker.Ticker

	HistoryDepth int
	Entropy      io.Reader
	Now          func() time.Time
	Logger       *slog.Logger
}

// SimChain produces one block per tick. Each block hash commits to the
// previous hash, the height, the production time and fresh entropy, so it
// cannot be known before the block exists.
type SimChain struct {
	cfg Config

	mu     sync.RWMutex
	height uint64
	hashes []chainhash.Hash

	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewSimChain(cfg Config) (*SimChain, error) {
	if cfg.Ticker == nil {
		return nil, errors.New("ticker is required")
	}

	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = DefaultHistoryDepth
	}

	if cfg.Entropy == nil {
		cfg.Entropy = rand.Reader
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &SimChain{
		cfg:    cfg,
		hashes: make([]chainhash.Hash, cfg.HistoryDepth),
		quit:   make(chan struct{}),
	}

	genesis, err := c.nextHash(chainhash.Hash{}, 0, cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	c.hashes[0] = genesis

	return c, nil
}

func (c *SimChain) Start() {
	c.cfg.Ticker.Resume()

	c.wg.Add(1)

	go c.run()
}

func (c *SimChain) Stop() {
	c.stopOnce.Do(func() {
		close(c.quit)
		c.wg.Wait()
		c.cfg.Ticker.Stop()
	})
}

func (c *SimChain) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.quit:
			return
		case now := <-c.cfg.Ticker.Ticks():
			height, hash, err := c.produce(now)
			if err != nil {
				c.cfg.Logger.Error("produce block", "error", err)

				continue
			}

			c.cfg.Logger.Debug("block produced", "height", height, "hash", hash.String())
		}
	}
}

func (c *SimChain) produce(now time.Time) (uint64, chainhash.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.hashes[c.height%uint64(len(c.hashes))]
	height := c.height + 1

	hash, err := c.nextHash(prev, height, now)
	if err != nil {
		return 0, chainhash.Hash{}, err
	}

	c.hashes[height%uint64(len(c.hashes))] = hash
	c.height = height

	return height, hash, nil
}

func (c *SimChain) nextHash(prev chainhash.Hash, height uint64, now time.Time) (chainhash.Hash, error) {
	buf := make([]byte, 0, chainhash.HashSize+8+8+32)
	buf = append(buf, prev[:]...)
	buf = binary.BigEndian.AppendUint64(buf, height)
	buf = binary.BigEndian.AppendUint64(buf, uint64(now.UnixNano()))

	var salt [32]byte

	_, err := io.ReadFull(c.cfg.Entropy, salt[:])
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("read entropy: %w", err)
	}

	buf = append(buf, salt[:]...)

	return chainhash.DoubleHashH(buf), nil
}

func (c *SimChain) Height(context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.height, nil
}

// BlockHash returns the hash of a produced block still inside the history.
func (c *SimChain) BlockHash(_ context.Context, height uint64) (chainhash.Hash, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if height > c.height {
		return chainhash.Hash{}, fmt.Errorf("%w: %d is ahead of tip %d",
			gumball.ErrBlockUnavailable, height, c.height)
	}

	if c.height-height >= uint64(len(c.hashes)) {
		return chainhash.Hash{}, fmt.Errorf("%w: %d is older than the last %d blocks",
			gumball.ErrBlockUnavailable, height, len(c.hashes))
	}

	return c.hashes[height%uint64(len(c.hashes))], nil
}
