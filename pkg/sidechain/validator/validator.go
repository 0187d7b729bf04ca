// Package validator implements the Validator (spec §4.3): a stateless,
// deterministic per-block checker run against a Store snapshot. Checks run
// in the fixed order the spec prescribes and fail fast, so the first
// failing check classifies the rejection.
package validator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/duskpool/sidechain/pkg/sidechain/config"
	"github.com/duskpool/sidechain/pkg/sidechain/store"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
	"github.com/duskpool/sidechain/pkg/sidechain/window"
)

// Kind classifies a rejection (spec §7).
type Kind int

const (
	Malformed Kind = iota
	MissingParent
	BadHeight
	BadTimestamp
	UnknownMainAnchor
	BadUncle
	BadDifficulty
	BadPow
	BadRewardSplit
	DuplicateWallet
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case Malformed:
		return "Malformed"
	case MissingParent:
		return "MissingParent"
	case BadHeight:
		return "BadHeight"
	case BadTimestamp:
		return "BadTimestamp"
	case UnknownMainAnchor:
		return "UnknownMainAnchor"
	case BadUncle:
		return "BadUncle"
	case BadDifficulty:
		return "BadDifficulty"
	case BadPow:
		return "BadPow"
	case BadRewardSplit:
		return "BadRewardSplit"
	case DuplicateWallet:
		return "DuplicateWallet"
	case Shutdown:
		return "Shutdown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinel errors, one per kind, so callers can also errors.Is against a
// stable value instead of switching on Kind when they don't care which
// block triggered it.
var (
	ErrMalformed         = errors.New("validator: malformed block")
	ErrMissingParent     = errors.New("validator: parent not in store")
	ErrBadHeight         = errors.New("validator: height is not parent.height+1")
	ErrBadTimestamp      = errors.New("validator: timestamp out of bounds")
	ErrUnknownMainAnchor = errors.New("validator: main_prev_id not known within main chain window")
	ErrBadUncle          = errors.New("validator: uncle rule violated")
	ErrBadDifficulty     = errors.New("validator: declared or cumulative difficulty mismatch")
	ErrBadPow            = errors.New("validator: proof-of-work does not meet declared difficulty")
	ErrBadRewardSplit    = errors.New("validator: output_shares does not match recomputed split")
	ErrDuplicateWallet   = errors.New("validator: duplicate wallet in output_shares")
	ErrShutdown          = errors.New("validator: rejected, coordinator is shutting down")
)

func errForKind(k Kind) error {
	switch k {
	case Malformed:
		return ErrMalformed
	case MissingParent:
		return ErrMissingParent
	case BadHeight:
		return ErrBadHeight
	case BadTimestamp:
		return ErrBadTimestamp
	case UnknownMainAnchor:
		return ErrUnknownMainAnchor
	case BadUncle:
		return ErrBadUncle
	case BadDifficulty:
		return ErrBadDifficulty
	case BadPow:
		return ErrBadPow
	case BadRewardSplit:
		return ErrBadRewardSplit
	case DuplicateWallet:
		return ErrDuplicateWallet
	case Shutdown:
		return ErrShutdown
	default:
		return ErrMalformed
	}
}

// RejectionError is the single error type the Validator ever returns,
// carrying the classified Kind alongside the underlying sentinel (and, for
// MissingParent, the id the caller should go fetch).
type RejectionError struct {
	Kind Kind
	Err  error

	// MissingParentID is set only when Kind == MissingParent.
	MissingParentID types.Hash
}

func (e *RejectionError) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *RejectionError) Unwrap() error { return e.Err }

func reject(k Kind, detail string) *RejectionError {
	base := errForKind(k)
	if detail == "" {
		return &RejectionError{Kind: k, Err: base}
	}
	return &RejectionError{Kind: k, Err: fmt.Errorf("%w: %s", base, detail)}
}

// Tunable bounds the spec names but leaves unspecified; chosen to be
// reasonable multiples of the window parameters rather than magic
// constants pulled from nowhere.
const (
	// UncleDepth bounds how many heights back an uncle may be (I2).
	UncleDepth = 3
	// MedianTSWindow is how many ancestor timestamps feed the median-time
	// floor (check 3).
	MedianTSWindow = 11
	// MaxFutureDrift is how far past "now" a declared timestamp may sit
	// (check 3), in seconds.
	MaxFutureDrift = 60
	// MainChainWindow is how many recent main-chain blocks the anchor
	// check (4) accepts main_prev_id from.
	MainChainWindow = 10
)

// MainChainIndex is the injected collaborator that answers "is this
// main-chain block id known, and how recent is it" (spec §4.3 check 4,
// SPEC_FULL.md's Validator expansion). The Coordinator feeds it from
// on_main_block callbacks; the Validator never talks to a main-chain
// client directly.
type MainChainIndex interface {
	// KnownWithin reports whether id was observed within the last
	// MainChainWindow main-chain blocks.
	KnownWithin(id types.Hash, window int) bool
}

// WalletSeenIndex is the injected collaborator answering "has this wallet
// been observed before, and when" — spec §4.2's seen_wallets, consulted by
// check 3 to "penalize or throttle never-before-seen wallets appearing at
// the tip". *seenset.Wallets satisfies this directly, the same way
// *log.Logger satisfies Logger elsewhere: no wrapper type needed.
type WalletSeenIndex interface {
	// FirstSeen reports when wallet was first observed, if it's still
	// tracked (not yet aged out of the window).
	FirstSeen(wallet types.Wallet) (firstSeenAt uint64, known bool)
}

// NewWalletTimestampPenalty is how many extra seconds, beyond the normal
// median-timestamp floor, a never-before-seen wallet's block must clear
// before the Validator accepts it — the throttle spec §4.2 calls for. A
// wallet is only ever "never-before-seen" for its first accepted block:
// the Coordinator records it in seen_wallets immediately after acceptance,
// so this penalty applies once per wallet's lifetime in the window.
const NewWalletTimestampPenalty = 30

// Clock abstracts "now" so validation stays deterministic under test.
type Clock interface {
	Now() uint64
}

// Validate runs every check of spec §4.3 against block, using st to
// resolve parent/ancestor/uncle state and cfg for consensus parameters.
// wsi may be nil (skips the new-wallet throttle, e.g. in unit tests that
// don't care about it). Returns nil on success; the block should be
// marked Verified by the caller under the writer lock (Validate itself
// never mutates st).
func Validate(st *store.Store, block *types.PoolBlock, cfg *config.Config, mci MainChainIndex, clock Clock, wsi WalletSeenIndex) error {
	if err := checkStructural(block, cfg); err != nil {
		return err
	}

	parent, err := checkParentLinkage(st, block)
	if err != nil {
		return err
	}

	if parent != nil {
		if err := checkHeightAndTime(st, block, parent, clock, wsi); err != nil {
			return err
		}
	} else if block.Height != 0 {
		return reject(BadHeight, "non-genesis block has zero parent_id")
	}

	if err := checkMainAnchor(block, mci); err != nil {
		return err
	}

	if parent != nil {
		if err := checkUncles(st, block, parent); err != nil {
			return err
		}
	}

	wcfg := window.Config{
		ChainWindowSize: cfg.ChainWindowSize,
		TargetBlockTime: cfg.TargetBlockTime,
		MinDifficulty:   cfg.MinDifficulty,
		UnclePenalty:    cfg.UnclePenalty(),
	}

	if parent != nil {
		if err := checkDifficulty(st, block, parent, wcfg); err != nil {
			return err
		}
	}

	if err := checkPow(block); err != nil {
		return err
	}

	if err := checkRewardSplit(st, block, wcfg); err != nil {
		return err
	}

	return nil
}

// checkStructural is check 1: field widths, canonical id encoding,
// non-empty coinbase outputs, declared_difficulty >= MIN_DIFFICULTY.
func checkStructural(block *types.PoolBlock, cfg *config.Config) error {
	if block.ID.IsZero() {
		return reject(Malformed, "id is zero")
	}
	if len(block.OutputShares) == 0 {
		return reject(Malformed, "output_shares is empty")
	}
	seen := make(map[types.Wallet]struct{}, len(block.OutputShares))
	for _, o := range block.OutputShares {
		if o.Wallet.IsZero() {
			return reject(Malformed, "output_shares contains zero wallet")
		}
		if _, dup := seen[o.Wallet]; dup {
			return reject(DuplicateWallet, o.Wallet.String())
		}
		seen[o.Wallet] = struct{}{}
	}
	if block.DeclaredDifficulty.Lt(cfg.MinDifficulty) {
		return reject(Malformed, "declared_difficulty below min_difficulty")
	}
	return nil
}

// checkParentLinkage is check 2. Returns the resolved parent (nil only for
// a genesis block, i.e. a zero parent_id).
func checkParentLinkage(st *store.Store, block *types.PoolBlock) (*types.PoolBlock, error) {
	if block.ParentID.IsZero() {
		return nil, nil
	}
	parent, ok := st.Find(block.ParentID)
	if !ok {
		re := reject(MissingParent, block.ParentID.String())
		re.MissingParentID = block.ParentID
		return nil, re
	}
	return parent, nil
}

// checkHeightAndTime is check 3, plus the spec §4.2 new-wallet throttle:
// a never-before-seen miner wallet's block must additionally clear
// NewWalletTimestampPenalty seconds past the ordinary median floor.
func checkHeightAndTime(st *store.Store, block, parent *types.PoolBlock, clock Clock, wsi WalletSeenIndex) error {
	if block.Height != parent.Height+1 {
		return reject(BadHeight, "height is not parent.height+1")
	}

	floor := medianAncestorTimestamp(st, parent, MedianTSWindow)
	if wsi != nil {
		if _, known := wsi.FirstSeen(block.MinerWallet); !known {
			floor += NewWalletTimestampPenalty
		}
	}
	if block.Timestamp < floor {
		return reject(BadTimestamp, "timestamp below median of ancestor window")
	}

	if clock != nil && block.Timestamp > clock.Now()+MaxFutureDrift {
		return reject(BadTimestamp, "timestamp too far in the future")
	}
	return nil
}

// medianAncestorTimestamp collects up to n ancestor timestamps (including
// parent itself) and returns their median.
func medianAncestorTimestamp(st *store.Store, parent *types.PoolBlock, n int) types.Timestamp {
	ts := make([]types.Timestamp, 0, n)
	cur := parent
	for i := 0; i < n && cur != nil; i++ {
		ts = append(ts, cur.Timestamp)
		p, ok := st.ParentOf(cur)
		if !ok {
			break
		}
		cur = p
	}
	if len(ts) == 0 {
		return 0
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	return ts[len(ts)/2]
}

// checkMainAnchor is check 4.
func checkMainAnchor(block *types.PoolBlock, mci MainChainIndex) error {
	if mci == nil {
		return nil // no main-chain index injected (e.g. unit tests); skip.
	}
	if !mci.KnownWithin(block.MainPrevID, MainChainWindow) {
		return reject(UnknownMainAnchor, block.MainPrevID.String())
	}
	return nil
}

// checkUncles is check 5, enforcing I2 plus the no-duplicate-uncle rule.
func checkUncles(st *store.Store, block, parent *types.PoolBlock) error {
	if len(block.UncleIDs) == 0 {
		return nil
	}

	seenAcrossAncestors := make(map[types.Hash]struct{})
	cur := parent
	for depth := uint64(0); depth < UncleDepth && cur != nil; depth++ {
		for _, u := range st.Uncles(cur) {
			seenAcrossAncestors[u.ID] = struct{}{}
		}
		p, ok := st.ParentOf(cur)
		if !ok {
			break
		}
		cur = p
	}

	seenThisBlock := make(map[types.Hash]struct{}, len(block.UncleIDs))
	for _, id := range block.UncleIDs {
		if _, dup := seenThisBlock[id]; dup {
			return reject(BadUncle, "duplicate uncle within this block")
		}
		seenThisBlock[id] = struct{}{}

		if _, already := seenAcrossAncestors[id]; already {
			return reject(BadUncle, "uncle already credited by an ancestor")
		}

		u, ok := st.Find(id)
		if !ok {
			return reject(BadUncle, "uncle not in store")
		}
		if u.Height >= block.Height {
			return reject(BadUncle, "uncle height >= block height")
		}
		if block.Height-u.Height > UncleDepth {
			return reject(BadUncle, "uncle too deep")
		}
		if st.IsAncestor(u, block, 0) {
			return reject(BadUncle, "uncle is an ancestor of block")
		}
		uncleParent, ok := st.ParentOf(u)
		if !ok || !(uncleParent.ID == block.ID || st.IsAncestor(uncleParent, block, 0)) {
			return reject(BadUncle, "uncle's parent is not an ancestor of block")
		}
	}
	return nil
}

// checkDifficulty is check 6: declared_difficulty must equal the Window
// Engine's retarget from parent, and cumulative_difficulty must equal
// parent.cumulative + declared + sum(uncle.declared * (1-UNCLE_PENALTY)).
func checkDifficulty(st *store.Store, block, parent *types.PoolBlock, wcfg window.Config) error {
	expected := window.Difficulty(st, parent, wcfg)
	if !block.DeclaredDifficulty.Eq(expected) {
		return reject(BadDifficulty, "declared_difficulty does not match retarget")
	}

	cum := parent.CumulativeDifficulty.Add(block.DeclaredDifficulty)
	num, den := wcfg.UnclePenaltyParts()
	for _, id := range block.UncleIDs {
		u, ok := st.Find(id)
		if !ok {
			continue // already rejected by checkUncles if it matters
		}
		cum = cum.Add(u.DeclaredDifficulty.MulDivUint64(den-num, den))
	}
	if !block.CumulativeDifficulty.Eq(cum) {
		return reject(BadDifficulty, "cumulative_difficulty mismatch")
	}
	return nil
}

// checkPow is check 7.
func checkPow(block *types.PoolBlock) error {
	if !block.DeclaredDifficulty.MeetsTarget(block.PowHash) {
		return reject(BadPow, "")
	}
	return nil
}

// checkRewardSplit is check 8: recomputed shares from the Window Engine,
// run through split_reward, must match output_shares exactly.
func checkRewardSplit(st *store.Store, block *types.PoolBlock, wcfg window.Config) error {
	shares, _, err := window.Shares(st, block, wcfg)
	if err != nil {
		return reject(BadRewardSplit, err.Error())
	}

	var totalReward uint64
	for _, o := range block.OutputShares {
		totalReward += o.Reward
	}

	rewards, ok := window.SplitReward(totalReward, shares)
	if !ok {
		return reject(BadRewardSplit, "total_weight is zero")
	}
	if len(rewards) != len(block.OutputShares) {
		return reject(BadRewardSplit, "output_shares length mismatch")
	}

	declared := make(map[types.Wallet]uint64, len(block.OutputShares))
	for _, o := range block.OutputShares {
		declared[o.Wallet] = o.Reward
	}

	for i, s := range shares {
		got, ok := declared[s.Wallet]
		if !ok {
			return reject(BadRewardSplit, "missing wallet "+s.Wallet.String())
		}
		if got != rewards[i] {
			return reject(BadRewardSplit, "reward amount mismatch for "+s.Wallet.String())
		}
	}
	return nil
}
