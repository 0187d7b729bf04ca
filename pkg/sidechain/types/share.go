package types

import "sort"

// MinerShare is one wallet's accumulated weight within a chain window,
// grounded on original_source/src/side_chain.h's `struct MinerShare`.
type MinerShare struct {
	Wallet Wallet
	Weight Difficulty
}

// SortShares orders shares canonically: descending weight, ties broken by
// wallet byte order (spec §4.4), so that every honest implementation
// produces byte-identical coinbase outputs.
func SortShares(shares []MinerShare) {
	sort.Slice(shares, func(i, j int) bool {
		return sharesLess(shares[i], shares[j])
	})
}

func sharesLess(a, b MinerShare) bool {
	if c := a.Weight.Cmp(b.Weight); c != 0 {
		return c > 0 // descending weight
	}
	return a.Wallet.Less(b.Wallet)
}
