package seenset

import (
	"testing"

	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

func TestBlocksCheckAndMark(t *testing.T) {
	b := NewBlocks(10, 10)
	id := types.FullID{ID: types.Hash{1}, Nonce: 1, ExtraNonce: 1}

	if !b.CheckAndMark(id) {
		t.Fatal("first CheckAndMark should report wasNew == true")
	}
	if b.CheckAndMark(id) {
		t.Fatal("second CheckAndMark should report wasNew == false")
	}
}

func TestBlocksUnmarkAllowsRetry(t *testing.T) {
	b := NewBlocks(10, 10)
	id := types.FullID{ID: types.Hash{2}, Nonce: 1, ExtraNonce: 1}

	b.CheckAndMark(id)
	b.Unmark(id)
	if !b.CheckAndMark(id) {
		t.Fatal("CheckAndMark after Unmark should report wasNew == true again")
	}
}

func TestWalletsObserveRecordsFirstSeen(t *testing.T) {
	w := NewWallets(10, 10)
	var wallet types.Wallet
	wallet.SpendPub[0] = 1

	if alreadySeen := w.Observe(wallet, 100); alreadySeen {
		t.Fatal("first Observe should report alreadySeen == false")
	}
	if alreadySeen := w.Observe(wallet, 200); !alreadySeen {
		t.Fatal("second Observe should report alreadySeen == true")
	}

	first, ok := w.FirstSeen(wallet)
	if !ok || first != 100 {
		t.Errorf("FirstSeen = %d, %v, want 100, true", first, ok)
	}
}
