// Package window implements the Window Engine (spec §4.4): given a tip, it
// walks the last chain_window_size sidechain blocks and emits the PPLNS
// share set, the retargeted difficulty, and the reward split.
package window

import (
	"sort"

	"github.com/duskpool/sidechain/pkg/sidechain/store"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// Config carries the window-shaped consensus parameters the Engine needs.
// Built from config.Config by the Coordinator and the Validator each time
// they call into the Engine.
type Config struct {
	ChainWindowSize uint64
	TargetBlockTime uint64
	MinDifficulty   types.Difficulty
	UnclePenalty    float64 // fraction in [0,1]; e.g. 0.20 for 20%
}

// unclePenaltyParts converts the fractional uncle penalty into an integer
// (numerator, denominator) pair so the credit split stays in saturating
// integer arithmetic rather than floating point, matching the rest of the
// consensus math (spec §4.4's weight formulas are defined over integers).
func (c Config) unclePenaltyParts() (num, den uint64) {
	const den64 = 1_000_000
	num = uint64(c.UnclePenalty * float64(den64))
	return num, den64
}

// UnclePenaltyParts exposes the same (numerator, denominator) pair the
// share-credit loop uses, so the Validator's cumulative_difficulty check
// (spec §4.3 check 6) can recompute uncle credit with identical integer
// rounding rather than drifting via floating point.
func (c Config) UnclePenaltyParts() (num, den uint64) {
	return c.unclePenaltyParts()
}

// pplnsWeight is the uniform PPLNS multiplier: 1 for every position inside
// the window (spec §4.4: "pplns_weight(k) = 1 for all k <= chain_window_size
// (uniform PPLNS)"). Kept as an explicit function, not folded away, so a
// future non-uniform PPLNS curve has a single place to plug into.
func pplnsWeight(k uint64, windowSize uint64) uint64 {
	if k > windowSize {
		return 0
	}
	return 1
}

// Shares walks back from tip and returns the canonically ordered share set
// (spec §4.4) plus the distinct wallets seen, for the Precalc Pool.
func Shares(st *store.Store, tip *types.PoolBlock, cfg Config) ([]types.MinerShare, []types.Wallet, error) {
	weights := make(map[types.Wallet]types.Difficulty)
	order := make([]types.Wallet, 0, 64)

	credit := func(w types.Wallet, amount types.Difficulty) {
		if amount.IsZero() {
			return
		}
		cur, ok := weights[w]
		if !ok {
			order = append(order, w)
			weights[w] = amount
			return
		}
		weights[w] = cur.Add(amount)
	}

	unclePenaltyNum, unclePenaltyDen := cfg.unclePenaltyParts()

	cur := tip
	for k := uint64(0); ; k++ {
		mult := pplnsWeight(k, cfg.ChainWindowSize)
		if mult > 0 {
			credit(cur.MinerWallet, cur.DeclaredDifficulty.MulUint64(mult))

			for _, uncle := range st.Uncles(cur) {
				uncleShare := uncle.DeclaredDifficulty.MulDivUint64(unclePenaltyDen-unclePenaltyNum, unclePenaltyDen)
				includerBonus := uncle.DeclaredDifficulty.MulDivUint64(unclePenaltyNum, unclePenaltyDen)
				credit(uncle.MinerWallet, uncleShare)
				credit(cur.MinerWallet, includerBonus)
			}
		}

		if k+1 >= cfg.ChainWindowSize {
			break
		}
		parent, ok := st.ParentOf(cur)
		if !ok {
			break // reached genesis
		}
		cur = parent
	}

	shares := make([]types.MinerShare, 0, len(order))
	for _, w := range order {
		shares = append(shares, types.MinerShare{Wallet: w, Weight: weights[w]})
	}
	types.SortShares(shares)

	wallets := make([]types.Wallet, len(shares))
	for i, s := range shares {
		wallets[i] = s.Wallet
	}

	return shares, wallets, nil
}

// timedSample is one (timestamp, cumulative_difficulty) pair from the
// window, used only by Difficulty.
type timedSample struct {
	timestamp  types.Timestamp
	cumulative types.Difficulty
}

// Difficulty retargets from tip's window: trims the lowest and highest 1/6
// of timestamps, then computes diff = (cum_high - cum_low) * target_block_time
// / (time_high - time_low), clamped to MinDifficulty (spec §4.4).
func Difficulty(st *store.Store, tip *types.PoolBlock, cfg Config) types.Difficulty {
	samples := make([]timedSample, 0, cfg.ChainWindowSize)
	cur := tip
	for k := uint64(0); k < cfg.ChainWindowSize; k++ {
		samples = append(samples, timedSample{timestamp: cur.Timestamp, cumulative: cur.CumulativeDifficulty})
		parent, ok := st.ParentOf(cur)
		if !ok {
			break
		}
		cur = parent
	}

	if len(samples) < 2 {
		return cfg.MinDifficulty
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].timestamp < samples[j].timestamp })

	trim := len(samples) / 6
	trimmed := samples[trim : len(samples)-trim]
	if len(trimmed) < 2 {
		trimmed = samples
	}

	timeLow := trimmed[0].timestamp
	timeHigh := trimmed[len(trimmed)-1].timestamp
	cumLow := trimmed[0].cumulative
	cumHigh := trimmed[len(trimmed)-1].cumulative

	timeSpan := timeHigh - timeLow
	if timeSpan == 0 {
		timeSpan = 1
	}

	workDone := cumHigh.Sub(cumLow)
	diff := workDone.MulDivUint64(cfg.TargetBlockTime, timeSpan)

	if diff.Lt(cfg.MinDifficulty) {
		return cfg.MinDifficulty
	}
	return diff
}

// SplitReward distributes reward proportionally to share weights using
// integer math (spec §4.4): floor(reward * weight[i] / total_weight) for
// each share, then the remainder is handed out one atomic unit at a time to
// the entries with the largest fractional parts (ties broken by canonical
// share order). Returns ok=false only if total_weight == 0; in that case
// rewards is nil.
func SplitReward(reward uint64, shares []types.MinerShare) (rewards []uint64, ok bool) {
	total := types.ZeroDifficulty
	for _, s := range shares {
		total = total.Add(s.Weight)
	}
	if total.IsZero() {
		return nil, false
	}

	rewards = make([]uint64, len(shares))
	remainders := make([]types.Difficulty, len(shares))

	var distributed uint64
	for i, s := range shares {
		rewards[i], remainders[i] = types.MulDivForSplit(reward, s.Weight, total)
		distributed += rewards[i]
	}

	remainder := reward - distributed

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if c := remainders[ia].Cmp(remainders[ib]); c != 0 {
			return c > 0 // largest fractional part first
		}
		return ia < ib // canonical share order already established by caller
	})

	for i := uint64(0); i < remainder; i++ {
		rewards[order[i]]++
	}

	return rewards, true
}
