package types

import "testing"

func walletWithByte(b byte) Wallet {
	var w Wallet
	w.SpendPub[0] = b
	w.ViewPub[0] = b
	return w
}

func TestSortSharesDescendingWeightThenWallet(t *testing.T) {
	a := walletWithByte(0x01)
	b := walletWithByte(0x02)
	c := walletWithByte(0x03)

	shares := []MinerShare{
		{Wallet: c, Weight: NewDifficulty(100)},
		{Wallet: a, Weight: NewDifficulty(200)},
		{Wallet: b, Weight: NewDifficulty(200)},
	}
	SortShares(shares)

	if shares[0].Wallet != a || shares[1].Wallet != b || shares[2].Wallet != c {
		t.Fatalf("unexpected order: %+v", shares)
	}
}
