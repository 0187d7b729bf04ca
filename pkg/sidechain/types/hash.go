package types

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of a block id, PoW hash, or main-chain id.
const HashSize = 32

// Hash is a 32-byte content hash used as a block id, PoW hash, or main-chain
// block id. Comparable by value so it can key a map directly.
type Hash [HashSize]byte

// ZeroHash is the all-zeroes hash, used as the parent_id of the genesis block.
var ZeroHash Hash

// HashFromBytes builds a Hash from a byte slice. Returns an error if len != 32.
func HashFromBytes(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a hex-encoded string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return HashFromBytes(b)
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the lowercase hex-encoded string.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero returns true if every byte is 0x00.
func (h Hash) IsZero() bool { return h == ZeroHash }

// Less provides the lexicographic byte order used for canonical share
// ordering and tip tie-breaking (spec I6: "ties broken by smaller id").
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// MarshalJSON encodes the hash as a hex string for stats dumps and config.
func (h Hash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.Hex() + `"`), nil
}

// UnmarshalJSON decodes a hex string into the hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("hash: invalid JSON string %q", data)
	}
	parsed, err := HashFromHex(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
