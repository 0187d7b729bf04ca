// Package seenset implements the two bounded deduplication sets of spec
// §4.2: recently observed full block identities, and recently observed
// miner wallets. Both are backed by hashicorp/golang-lru/v2's expirable LRU,
// which is exactly "a bounded map with timestamped eviction" — the data
// structure the spec calls for, rather than a hand-rolled map+janitor.
package seenset

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// overscanFactor approximates spec §4.2's "O(chain_window × overscan)"
// sizing for seen_blocks: gossip echoes arrive in multiples of the window,
// not just once per block.
const overscanFactor = 4

// Blocks is the seen_blocks set: keyed by full_id = (id, nonce, extra_nonce).
type Blocks struct {
	mu    sync.Mutex
	cache *expirable.LRU[types.FullID, struct{}]
}

// NewBlocks builds a seen_blocks set sized and aged off the chain window.
func NewBlocks(chainWindowSize uint64, targetBlockTime uint64) *Blocks {
	size := int(chainWindowSize) * overscanFactor
	ttl := time.Duration(chainWindowSize*targetBlockTime) * time.Second
	return &Blocks{cache: expirable.NewLRU[types.FullID, struct{}](size, nil, ttl)}
}

// CheckAndMark records fullID as seen and reports whether it was new. Used
// to drop gossip echoes cheaply before validation (spec §4.2).
func (b *Blocks) CheckAndMark(id types.FullID) (wasNew bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.cache.Get(id); ok {
		return false
	}
	b.cache.Add(id, struct{}{})
	return true
}

// Unmark removes fullID so a block rejected post-seen can be retried (spec
// §4.2).
func (b *Blocks) Unmark(id types.FullID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Remove(id)
}

// Len reports how many full ids are currently tracked.
func (b *Blocks) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Len()
}

// Wallets is the seen_wallets set: keyed by wallet, recording first-seen
// time. Used by the Validator to penalize or throttle never-before-seen
// wallets appearing at the tip (spec §4.2).
type Wallets struct {
	mu    sync.Mutex
	cache *expirable.LRU[types.Wallet, uint64]
}

// NewWallets builds a seen_wallets set evicted by age over the window's
// time span.
func NewWallets(chainWindowSize uint64, targetBlockTime uint64) *Wallets {
	size := int(chainWindowSize) * overscanFactor
	ttl := time.Duration(chainWindowSize*targetBlockTime) * time.Second
	return &Wallets{cache: expirable.NewLRU[types.Wallet, uint64](size, nil, ttl)}
}

// Observe records wallet's first-seen timestamp if not already known, and
// reports whether it had been seen before.
func (w *Wallets) Observe(wallet types.Wallet, now uint64) (alreadySeen bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.cache.Get(wallet); ok {
		return true
	}
	w.cache.Add(wallet, now)
	return false
}

// FirstSeen returns when wallet was first observed, if it's still tracked.
func (w *Wallets) FirstSeen(wallet types.Wallet) (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cache.Get(wallet)
}

// Len reports how many wallets are currently tracked.
func (w *Wallets) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cache.Len()
}
