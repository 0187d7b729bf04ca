// Package store implements the Block DAG Store (spec §4.1): an in-memory
// directed graph of sidechain blocks keyed by id, secondarily indexed by
// height.
//
// Store holds no lock of its own. Spec §5 requires exactly one lock over
// the DAG (the Coordinator's single writer/reader lock); every exported
// method here assumes the caller already holds the appropriate lock, the
// same way the teacher's Chain protected its map with a single mutex, just
// moved up one layer per DESIGN NOTES' "Coordinator holding owned handles".
package store

import (
	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// InsertResult reports what Insert did.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyPresent
)

// Store is the block DAG: id -> owned block, and height -> blocks at that
// height, as spec §4.1 prescribes.
type Store struct {
	byID     map[types.Hash]*types.PoolBlock
	byHeight map[types.Height][]*types.PoolBlock
	arrival  uint64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:     make(map[types.Hash]*types.PoolBlock),
		byHeight: make(map[types.Height][]*types.PoolBlock),
	}
}

// Insert adds block to the DAG, assigning it the next local-arrival
// sequence number. Returns AlreadyPresent without modifying the stored
// copy if the id is already known.
func (s *Store) Insert(block *types.PoolBlock) InsertResult {
	if _, ok := s.byID[block.ID]; ok {
		return AlreadyPresent
	}
	s.arrival++
	block.SetArrivalSeq(s.arrival)
	s.byID[block.ID] = block
	s.byHeight[block.Height] = append(s.byHeight[block.Height], block)
	return Inserted
}

// Find looks up a block by id.
func (s *Store) Find(id types.Hash) (*types.PoolBlock, bool) {
	b, ok := s.byID[id]
	return b, ok
}

// AtHeight returns every block the Store holds at height h.
func (s *Store) AtHeight(h types.Height) []*types.PoolBlock {
	return s.byHeight[h]
}

// ParentOf resolves a block's parent, if still present in the Store.
func (s *Store) ParentOf(b *types.PoolBlock) (*types.PoolBlock, bool) {
	if b.Height == 0 {
		return nil, false
	}
	return s.Find(b.ParentID)
}

// Uncles resolves every uncle of b still present in the Store, skipping
// any that have since been pruned.
func (s *Store) Uncles(b *types.PoolBlock) []*types.PoolBlock {
	if len(b.UncleIDs) == 0 {
		return nil
	}
	uncles := make([]*types.PoolBlock, 0, len(b.UncleIDs))
	for _, id := range b.UncleIDs {
		if u, ok := s.Find(id); ok {
			uncles = append(uncles, u)
		}
	}
	return uncles
}

// Len returns the total number of blocks held by the Store.
func (s *Store) Len() int { return len(s.byID) }

// IsAncestor reports whether candidate is an ancestor of b, walking parent
// links up to limit steps (0 = unbounded). Used by uncle validation (I2:
// "u is not an ancestor of b").
func (s *Store) IsAncestor(candidate, b *types.PoolBlock, limit uint64) bool {
	cur := b
	steps := uint64(0)
	for {
		parent, ok := s.ParentOf(cur)
		if !ok {
			return false
		}
		if parent.ID == candidate.ID {
			return true
		}
		cur = parent
		steps++
		if limit != 0 && steps >= limit {
			return false
		}
	}
}

// Prune removes every block at or below height (tip.Height - keepDepth)
// that is not reachable from tip by walking parent and uncle-of-ancestor
// edges *within keepDepth steps of tip* — i.e. every block outside the
// chain window rooted at tip. The walk is bounded to keepDepth steps (the
// same bound selector.IsLongerChain uses), not followed all the way to
// genesis: a best-chain block more than keepDepth behind the tip is itself
// eligible for removal once its consensus contribution is already frozen
// in descendants' cumulative difficulty (spec §3 Lifecycle). Pruning is
// monotone and idempotent (spec §4.1): re-running it with the same tip
// and keepDepth removes nothing further. Returns the number of blocks
// removed.
func (s *Store) Prune(tip *types.PoolBlock, keepDepth uint64) int {
	if tip == nil || tip.Height < keepDepth {
		return 0
	}
	threshold := tip.Height - keepDepth

	reachable := make(map[types.Hash]struct{})
	cur := tip
	reachable[cur.ID] = struct{}{}
	for _, u := range s.Uncles(cur) {
		reachable[u.ID] = struct{}{}
	}
	for i := uint64(0); i < keepDepth; i++ {
		parent, ok := s.ParentOf(cur)
		if !ok {
			break
		}
		cur = parent
		reachable[cur.ID] = struct{}{}
		for _, u := range s.Uncles(cur) {
			reachable[u.ID] = struct{}{}
		}
	}

	removed := 0
	for h, blocks := range s.byHeight {
		if h > threshold {
			continue
		}
		kept := blocks[:0]
		for _, b := range blocks {
			if _, ok := reachable[b.ID]; ok {
				kept = append(kept, b)
				continue
			}
			delete(s.byID, b.ID)
			removed++
		}
		if len(kept) == 0 {
			delete(s.byHeight, h)
		} else {
			s.byHeight[h] = kept
		}
	}
	return removed
}

// GetBlob returns the raw wire bytes the block arrived with, for gossip
// replies (spec §4.7 get_block_blob). Never re-serializes: the bytes are
// byte-identical to what the out-of-scope wire codec handed the Coordinator
// (spec P6).
func (s *Store) GetBlob(id types.Hash) ([]byte, bool) {
	b, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return b.RawBlob, true
}
