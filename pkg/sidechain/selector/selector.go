// Package selector implements the Chain Selector (spec §4.5): tip choice
// across competing chains by cumulative difficulty, with deterministic
// tie-breaking, plus depth bookkeeping so the Store can safely prune.
package selector

import (
	"github.com/duskpool/sidechain/pkg/sidechain/store"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// Outcome reports what Consider decided.
type Outcome int

const (
	// NotTip: block did not become the new tip.
	NotTip Outcome = iota
	// NewTip: block became the new tip; ReorgDepth counts blocks walked
	// back from the old tip to the common ancestor.
	NewTip
)

// Result is Consider's verdict.
type Result struct {
	Outcome    Outcome
	ReorgDepth uint64
}

// Consider decides whether candidate supersedes tip (spec §4.5, I6):
// strictly greater cumulative difficulty wins; on an exact tie, the
// lexicographically smaller id wins; if that's also a tie (practically
// impossible with a strong hash), the earlier local-arrival wins.
//
// tip may be nil (no chain yet), in which case candidate always wins.
func Consider(st *store.Store, tip *types.PoolBlock, candidate *types.PoolBlock) Result {
	if tip == nil {
		return Result{Outcome: NewTip, ReorgDepth: 0}
	}

	becomesTip := false
	switch candidate.CumulativeDifficulty.Cmp(tip.CumulativeDifficulty) {
	case 1:
		becomesTip = true
	case 0:
		becomesTip = tieBreak(tip, candidate)
	default:
		becomesTip = false
	}

	if !becomesTip {
		updateAncestorDepths(st, candidate, 0)
		return Result{Outcome: NotTip}
	}

	depth := reorgDepth(st, tip, candidate)
	updateDepthsAfterReorg(st, candidate)
	return Result{Outcome: NewTip, ReorgDepth: depth}
}

// tieBreak resolves an exact cumulative-difficulty tie: smaller id wins,
// then earlier arrival (I6, spec §9 Open Question — resolved, see
// SPEC_FULL.md).
func tieBreak(tip, candidate *types.PoolBlock) bool {
	if candidate.ID != tip.ID {
		return candidate.ID.Less(tip.ID)
	}
	return candidate.ArrivalSeq() < tip.ArrivalSeq()
}

// reorgDepth walks back from the old tip to the lowest common ancestor with
// the new tip, returning the number of old-branch blocks walked.
func reorgDepth(st *store.Store, oldTip, newTip *types.PoolBlock) uint64 {
	ancestors := make(map[types.Hash]uint64) // old-branch id -> distance from oldTip
	cur := oldTip
	for d := uint64(0); ; d++ {
		ancestors[cur.ID] = d
		parent, ok := st.ParentOf(cur)
		if !ok {
			break
		}
		cur = parent
	}

	cur = newTip
	for {
		if d, ok := ancestors[cur.ID]; ok {
			return d
		}
		parent, ok := st.ParentOf(cur)
		if !ok {
			return 0
		}
		cur = parent
	}
}

// updateDepthsAfterReorg sets Depth=0 on the new tip and propagates
// increasing depth back along its ancestor chain, so Store.Prune can tell
// which blocks are still within the chain window of the current tip.
func updateDepthsAfterReorg(st *store.Store, newTip *types.PoolBlock) {
	cur := newTip
	depth := uint64(0)
	for {
		cur.Depth = depth
		parent, ok := st.ParentOf(cur)
		if !ok {
			return
		}
		depth++
		cur = parent
	}
}

// updateAncestorDepths propagates depth forward from a block that did not
// become the tip but may still shorten a stored ancestor's depth (spec
// §4.5: "update depth of this block's ancestors if it shortens any stored
// depth"). baseDepth is the candidate's own depth relative to the current
// tip, if known.
func updateAncestorDepths(st *store.Store, b *types.PoolBlock, baseDepth uint64) {
	cur := b
	depth := baseDepth
	for {
		parent, ok := st.ParentOf(cur)
		if !ok {
			return
		}
		if parent.Depth <= depth+1 {
			return // already shallower or equal; no improvement to propagate
		}
		parent.Depth = depth + 1
		depth++
		cur = parent
	}
}

// IsLongerChain reports whether candidate's cumulative difficulty exceeds
// current's by at least one sidechain block's worth of difficulty, and
// whether the two chains diverge at all within pruneDepth (spec §4.5
// is_longer_chain).
func IsLongerChain(st *store.Store, current, candidate *types.PoolBlock, minBlockDifficulty types.Difficulty, pruneDepth uint64) (longer bool, alternative bool) {
	threshold := current.CumulativeDifficulty.Add(minBlockDifficulty)
	longer = candidate.CumulativeDifficulty.Cmp(threshold) >= 0

	// Walk back up to pruneDepth steps from each side looking for a common
	// ancestor; if none found within that bound, the fork point is deeper
	// than we can safely reorg across.
	a, b := current, candidate
	seen := make(map[types.Hash]struct{}, pruneDepth*2+2)
	seen[a.ID] = struct{}{}
	seen[b.ID] = struct{}{}
	if a.ID == b.ID {
		return longer, false
	}
	for i := uint64(0); i < pruneDepth; i++ {
		if pa, ok := st.ParentOf(a); ok {
			a = pa
			if _, ok := seen[a.ID]; ok {
				return longer, true
			}
			seen[a.ID] = struct{}{}
		}
		if pb, ok := st.ParentOf(b); ok {
			b = pb
			if _, ok := seen[b.ID]; ok {
				return longer, true
			}
			seen[b.ID] = struct{}{}
		}
	}
	return longer, false
}
