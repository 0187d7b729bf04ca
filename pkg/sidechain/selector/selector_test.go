package selector

import (
	"testing"

	"github.com/duskpool/sidechain/pkg/sidechain/store"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

func hashByte(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func block(id byte, parentID types.Hash, height uint64, cumDiff uint64) *types.PoolBlock {
	return &types.PoolBlock{
		ID:                   hashByte(id),
		ParentID:             parentID,
		Height:               height,
		CumulativeDifficulty: types.NewDifficulty(cumDiff),
	}
}

func TestConsiderNoTipAlwaysWins(t *testing.T) {
	st := store.New()
	candidate := block(1, types.ZeroHash, 0, 1000)
	st.Insert(candidate)

	res := Consider(st, nil, candidate)
	if res.Outcome != NewTip {
		t.Fatalf("Consider(nil tip, candidate) = %v, want NewTip", res.Outcome)
	}
}

func TestConsiderHigherDifficultyWins(t *testing.T) {
	st := store.New()
	tip := block(1, types.ZeroHash, 5, 5000)
	candidate := block(2, types.ZeroHash, 5, 9000)
	st.Insert(tip)
	st.Insert(candidate)

	res := Consider(st, tip, candidate)
	if res.Outcome != NewTip {
		t.Fatalf("Consider = %v, want NewTip", res.Outcome)
	}
}

func TestConsiderLowerDifficultyLoses(t *testing.T) {
	st := store.New()
	tip := block(1, types.ZeroHash, 5, 9000)
	candidate := block(2, types.ZeroHash, 5, 5000)
	st.Insert(tip)
	st.Insert(candidate)

	res := Consider(st, tip, candidate)
	if res.Outcome != NotTip {
		t.Fatalf("Consider = %v, want NotTip", res.Outcome)
	}
}

func TestConsiderTieBreaksBySmallerID(t *testing.T) {
	st := store.New()
	tip := block(5, types.ZeroHash, 5, 5000)   // id byte 5
	candidate := block(2, types.ZeroHash, 5, 5000) // id byte 2, smaller
	st.Insert(tip)
	st.Insert(candidate)

	res := Consider(st, tip, candidate)
	if res.Outcome != NewTip {
		t.Fatalf("Consider(tie, smaller id) = %v, want NewTip", res.Outcome)
	}
}

// TestConsiderForkReorgDepth mirrors spec scenario 3: two chains diverge at
// height 5; A gets 3 more blocks of diff 1000 each (cum 8000), B gets 2 more
// of diff 2000 each (cum 9000). B should win with reorg depth 3 (A's 3
// post-fork blocks get walked back).
func TestConsiderForkReorgDepth(t *testing.T) {
	st := store.New()

	common := block(1, types.ZeroHash, 5, 5000)
	st.Insert(common)

	a1 := block(2, common.ID, 6, 6000)
	a2 := block(3, a1.ID, 7, 7000)
	a3 := block(4, a2.ID, 8, 8000)
	st.Insert(a1)
	st.Insert(a2)
	st.Insert(a3)

	b1 := block(6, common.ID, 6, 7000)
	b2 := block(7, b1.ID, 7, 9000)
	st.Insert(b1)
	st.Insert(b2)

	res := Consider(st, a3, b2)
	if res.Outcome != NewTip {
		t.Fatalf("Consider = %v, want NewTip", res.Outcome)
	}
	if res.ReorgDepth != 3 {
		t.Errorf("ReorgDepth = %d, want 3", res.ReorgDepth)
	}
}
