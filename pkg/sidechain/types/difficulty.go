package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Difficulty is a 128-bit unsigned magnitude with saturating arithmetic, as
// required by spec §3. We hold it in a uint256.Int (go-ethereum's 256-bit
// fixed-width integer) and saturate every result back down to 2**128-1,
// since the library itself is natively 256 bits wide.
type Difficulty struct {
	v uint256.Int
}

// max128 is 2**128 - 1, the saturation ceiling for every Difficulty value.
var max128 = func() uint256.Int {
	one := uint256.NewInt(1)
	m := new(uint256.Int).Lsh(one, 128)
	m.Sub(m, uint256.NewInt(1))
	return *m
}()

// ZeroDifficulty is the additive identity.
var ZeroDifficulty Difficulty

// NewDifficulty builds a Difficulty from a uint64 magnitude.
func NewDifficulty(x uint64) Difficulty {
	var d Difficulty
	d.v.SetUint64(x)
	return d
}

// DifficultyFromDecimal parses a base-10 string (as config's min_difficulty
// field is specified: "u128 decimal string").
func DifficultyFromDecimal(s string) (Difficulty, error) {
	var v uint256.Int
	if err := v.SetFromDecimal(s); err != nil {
		return Difficulty{}, fmt.Errorf("difficulty: %w", err)
	}
	d := Difficulty{v: v}
	return d.saturated(), nil
}

func (d Difficulty) saturated() Difficulty {
	if d.v.Gt(&max128) {
		d.v = max128
	}
	return d
}

// Add returns d+other, saturating at 2**128-1.
func (d Difficulty) Add(other Difficulty) Difficulty {
	var z uint256.Int
	z.Add(&d.v, &other.v)
	return Difficulty{v: z}.saturated()
}

// Sub returns d-other, floored at zero (difficulty never goes negative).
func (d Difficulty) Sub(other Difficulty) Difficulty {
	if d.v.Lt(&other.v) {
		return ZeroDifficulty
	}
	var z uint256.Int
	z.Sub(&d.v, &other.v)
	return Difficulty{v: z}
}

// Mul returns d*other, saturating at 2**128-1.
func (d Difficulty) Mul(other Difficulty) Difficulty {
	var z uint256.Int
	z.Mul(&d.v, &other.v)
	return Difficulty{v: z}.saturated()
}

// MulUint64 returns d*x, saturating at 2**128-1.
func (d Difficulty) MulUint64(x uint64) Difficulty {
	return d.Mul(NewDifficulty(x))
}

// Div returns d/other. Division by zero returns ZeroDifficulty rather than
// panicking, matching uint256's own div-by-zero behavior.
func (d Difficulty) Div(other Difficulty) Difficulty {
	if other.IsZero() {
		return ZeroDifficulty
	}
	var z uint256.Int
	z.Div(&d.v, &other.v)
	return Difficulty{v: z}
}

// MulDivUint64 computes (d * mul) / div with full 256-bit intermediate
// precision before saturating, the pattern the retarget and reward-split
// math both need to avoid premature overflow.
func (d Difficulty) MulDivUint64(mul, div uint64) Difficulty {
	var z uint256.Int
	z.Mul(&d.v, uint256.NewInt(mul))
	if div == 0 {
		return ZeroDifficulty
	}
	z.Div(&z, uint256.NewInt(div))
	return Difficulty{v: z}.saturated()
}

// MulDivForSplit computes floor((reward * weight) / total) together with
// the exact remainder (reward*weight - quotient*total), using a full
// 256-bit intermediate product that is never routed through the 128-bit
// saturating helpers above. split_reward (spec §4.4) needs this: weight and
// total can each be as large as 2**128-1, so weight*reward can reach
// 2**192 — past Difficulty's saturation ceiling, but still well inside
// uint256's native 256 bits. The quotient is always <= reward, so it fits a
// uint64 exactly; the remainder is always < total, so it fits a Difficulty
// without saturating.
func MulDivForSplit(reward uint64, weight, total Difficulty) (quotient uint64, remainder Difficulty) {
	if total.IsZero() {
		return 0, ZeroDifficulty
	}
	var scaled uint256.Int
	scaled.Mul(&weight.v, uint256.NewInt(reward))

	var q, qt, r uint256.Int
	q.Div(&scaled, &total.v)
	qt.Mul(&q, &total.v)
	r.Sub(&scaled, &qt)

	return q.Uint64(), Difficulty{v: r}
}

// Cmp returns -1, 0, or 1 comparing d to other.
func (d Difficulty) Cmp(other Difficulty) int { return d.v.Cmp(&other.v) }

// Lt reports whether d < other.
func (d Difficulty) Lt(other Difficulty) bool { return d.v.Lt(&other.v) }

// Gt reports whether d > other.
func (d Difficulty) Gt(other Difficulty) bool { return d.v.Gt(&other.v) }

// Eq reports whether d == other.
func (d Difficulty) Eq(other Difficulty) bool { return d.v.Eq(&other.v) }

// IsZero reports whether d is zero.
func (d Difficulty) IsZero() bool { return d.v.IsZero() }

// Uint64 returns the low 64 bits of d, for contexts that only need an
// approximate magnitude (e.g. logging). Truncates silently above 2**64-1.
func (d Difficulty) Uint64() uint64 { return d.v.Uint64() }

// String renders d as a base-10 string.
func (d Difficulty) String() string { return d.v.Dec() }

// MarshalJSON encodes d as a decimal string, matching config's
// min_difficulty field format.
func (d Difficulty) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.v.Dec() + `"`), nil
}

// UnmarshalJSON decodes a decimal string into d.
func (d *Difficulty) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("difficulty: invalid JSON string %q", data)
	}
	parsed, err := DifficultyFromDecimal(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MeetsTarget reports whether powHash, interpreted as a 256-bit
// little-endian integer, satisfies pow_hash * difficulty <= 2**256 - 1
// (spec §4.3 check 7). difficulty == 0 never meets target (guarded
// upstream by MIN_DIFFICULTY, but we don't divide by it here either way).
func (d Difficulty) MeetsTarget(powHash Hash) bool {
	if d.IsZero() {
		return false
	}
	var h uint256.Int
	h.SetBytes(reversed(powHash[:]))

	var product [2]uint256.Int
	lo, hi := umul256(&h, &d.v)
	product[0], product[1] = lo, hi
	// product fits in 2**256-1 (i.e. no overflow into a third limb) iff hi == 0.
	return product[1].IsZero()
}

// reversed returns a little-endian copy of a big-endian-looking 32-byte
// hash slice (pow_hash is interpreted LE per spec §4.3).
func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// umul256 multiplies two 256-bit integers and returns the 512-bit product
// split into low and high 256-bit halves, using uint256's built-in
// MulOverflow to detect whether the product overflows 256 bits; when it
// does, hi is set to one (nonzero) as a sentinel — we only ever need to
// know whether hi is zero, never its exact value.
func umul256(a, b *uint256.Int) (lo, hi uint256.Int) {
	overflow := lo.MulOverflow(a, b)
	if overflow {
		hi.SetUint64(1)
	}
	return lo, hi
}
