package types

import (
	"encoding/hex"
	"fmt"
)

// Wallet is an opaque miner identity: a CryptoNote-style public address,
// carried as its two public keys (spend, view). Comparable by value — two
// Wallet values are equal iff both keys match byte-for-byte.
type Wallet struct {
	SpendPub Hash
	ViewPub  Hash
}

// ZeroWallet is the absence of a wallet (never a valid payout recipient).
var ZeroWallet Wallet

// IsZero reports whether both keys are all-zero.
func (w Wallet) IsZero() bool {
	return w.SpendPub.IsZero() && w.ViewPub.IsZero()
}

// Bytes returns the 64-byte concatenation spend||view, the canonical byte
// order used for Less and for hashing the wallet into precalc cache keys.
func (w Wallet) Bytes() []byte {
	b := make([]byte, 0, HashSize*2)
	b = append(b, w.SpendPub[:]...)
	b = append(b, w.ViewPub[:]...)
	return b
}

// Less implements the canonical wallet byte order used to break ties in
// share ordering (spec §4.4: "ties broken by wallet byte order").
func (w Wallet) Less(other Wallet) bool {
	if w.SpendPub != other.SpendPub {
		return w.SpendPub.Less(other.SpendPub)
	}
	return w.ViewPub.Less(other.ViewPub)
}

// String renders the wallet as spend:view hex, for logs and stats dumps.
func (w Wallet) String() string {
	return w.SpendPub.Hex() + ":" + w.ViewPub.Hex()
}

// WalletFromHex parses a "spend:view" hex pair into a Wallet.
func WalletFromHex(s string) (Wallet, error) {
	if len(s) != HashSize*2*2+1 || s[HashSize*2] != ':' {
		return Wallet{}, fmt.Errorf("wallet: malformed address %q", s)
	}
	spend, err := hex.DecodeString(s[:HashSize*2])
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet: spend key: %w", err)
	}
	view, err := hex.DecodeString(s[HashSize*2+1:])
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet: view key: %w", err)
	}
	var w Wallet
	copy(w.SpendPub[:], spend)
	copy(w.ViewPub[:], view)
	return w, nil
}
