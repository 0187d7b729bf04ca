package validator

import (
	"errors"
	"testing"

	"github.com/duskpool/sidechain/pkg/sidechain/config"
	"github.com/duskpool/sidechain/pkg/sidechain/store"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
	"github.com/duskpool/sidechain/pkg/sidechain/window"
)

func walletByte(b byte) types.Wallet {
	var w types.Wallet
	w.SpendPub[0] = b
	w.ViewPub[0] = b
	return w
}

func hashByte(b byte) types.Hash {
	var h types.Hash
	h[0] = b
	return h
}

func testConfig() *config.Config {
	return &config.Config{
		TargetBlockTime: 10,
		ChainWindowSize: 2160,
		UnclePenaltyPct: 20,
		MinDifficulty:   types.NewDifficulty(1),
	}
}

type fixedClock uint64

func (c fixedClock) Now() uint64 { return uint64(c) }

type alwaysKnownMCI struct{}

func (alwaysKnownMCI) KnownWithin(types.Hash, int) bool { return true }

// makeGenesisBlock builds a verified genesis block (not inserted into any
// Store; callers insert it when they need it as a parent) with a
// difficulty low enough that an all-zero pow_hash trivially meets target
// (MeetsTarget treats an all-zero hash as the smallest possible value).
func makeGenesisBlock(wallet types.Wallet) *types.PoolBlock {
	b := &types.PoolBlock{
		ID:                   hashByte(1),
		Height:               0,
		MinerWallet:          wallet,
		MainPrevID:           hashByte(0xaa),
		Timestamp:            1000,
		DeclaredDifficulty:   types.NewDifficulty(1),
		CumulativeDifficulty: types.NewDifficulty(1),
		OutputShares:         []types.OutputShare{{Wallet: wallet, Reward: 1000}},
		Verified:             true,
	}
	return b
}

func TestValidateRejectsMalformedEmptyOutputShares(t *testing.T) {
	st := store.New()
	b := makeGenesisBlock(walletByte(1))
	b.OutputShares = nil

	err := Validate(st, b, testConfig(), alwaysKnownMCI{}, fixedClock(2000), nil)
	assertKind(t, err, Malformed)
}

func TestValidateRejectsBelowMinDifficulty(t *testing.T) {
	st := store.New()
	b := makeGenesisBlock(walletByte(1))
	b.DeclaredDifficulty = types.ZeroDifficulty

	cfg := testConfig()
	cfg.MinDifficulty = types.NewDifficulty(100)

	err := Validate(st, b, cfg, alwaysKnownMCI{}, fixedClock(2000), nil)
	assertKind(t, err, Malformed)
}

func TestValidateRejectsDuplicateWallet(t *testing.T) {
	st := store.New()
	w := walletByte(1)
	b := makeGenesisBlock(w)
	b.OutputShares = []types.OutputShare{{Wallet: w, Reward: 500}, {Wallet: w, Reward: 500}}

	err := Validate(st, b, testConfig(), alwaysKnownMCI{}, fixedClock(2000), nil)
	assertKind(t, err, DuplicateWallet)
}

func TestValidateReportsMissingParent(t *testing.T) {
	st := store.New()
	parentID := hashByte(9)
	b := makeGenesisBlock(walletByte(1))
	b.Height = 1
	b.ParentID = parentID

	err := Validate(st, b, testConfig(), alwaysKnownMCI{}, fixedClock(2000), nil)
	var re *RejectionError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RejectionError, got %v (%T)", err, err)
	}
	if re.Kind != MissingParent {
		t.Fatalf("kind = %v, want MissingParent", re.Kind)
	}
	if re.MissingParentID != parentID {
		t.Errorf("MissingParentID = %v, want %v", re.MissingParentID, parentID)
	}
}

func TestValidateAcceptsConsistentGenesis(t *testing.T) {
	st := store.New()
	w := walletByte(1)
	b := makeGenesisBlock(w)
	// A zero PoW hash always meets any positive target (see MeetsTarget),
	// standing in for "mining already found a valid hash" in this test.
	b.PowHash = types.Hash{}

	if err := Validate(st, b, testConfig(), alwaysKnownMCI{}, fixedClock(2000), nil); err != nil {
		t.Fatalf("Validate(genesis) = %v, want nil", err)
	}
}

func TestValidateRejectsBadHeight(t *testing.T) {
	st := store.New()
	w := walletByte(1)
	parent := makeGenesisBlock(w)
	parent.PowHash = types.Hash{}
	st.Insert(parent)

	cfg := testConfig()
	wcfg := window.Config{ChainWindowSize: cfg.ChainWindowSize, TargetBlockTime: cfg.TargetBlockTime, MinDifficulty: cfg.MinDifficulty, UnclePenalty: cfg.UnclePenalty()}
	nextDiff := window.Difficulty(st, parent, wcfg)

	child := &types.PoolBlock{
		ID:                   hashByte(2),
		ParentID:             parent.ID,
		Height:               5, // wrong: should be 1
		MinerWallet:          w,
		MainPrevID:           hashByte(0xaa),
		Timestamp:            1010,
		DeclaredDifficulty:   nextDiff,
		CumulativeDifficulty: parent.CumulativeDifficulty.Add(nextDiff),
		OutputShares:         []types.OutputShare{{Wallet: w, Reward: 1000}},
	}

	err := Validate(st, child, cfg, alwaysKnownMCI{}, fixedClock(2000), nil)
	assertKind(t, err, BadHeight)
}

type alwaysNewWalletIndex struct{}

func (alwaysNewWalletIndex) FirstSeen(types.Wallet) (uint64, bool) { return 0, false }

type alwaysKnownWalletIndex struct{}

func (alwaysKnownWalletIndex) FirstSeen(types.Wallet) (uint64, bool) { return 0, true }

func TestValidateThrottlesNeverBeforeSeenWallet(t *testing.T) {
	st := store.New()
	w := walletByte(1)
	parent := makeGenesisBlock(w)
	parent.PowHash = types.Hash{}
	st.Insert(parent)

	cfg := testConfig()
	wcfg := window.Config{ChainWindowSize: cfg.ChainWindowSize, TargetBlockTime: cfg.TargetBlockTime, MinDifficulty: cfg.MinDifficulty, UnclePenalty: cfg.UnclePenalty()}
	nextDiff := window.Difficulty(st, parent, wcfg)

	newChild := func(ts uint64) *types.PoolBlock {
		return &types.PoolBlock{
			ID:                   hashByte(2),
			ParentID:             parent.ID,
			Height:               1,
			MinerWallet:          walletByte(2),
			MainPrevID:           hashByte(0xaa),
			Timestamp:            ts,
			DeclaredDifficulty:   nextDiff,
			CumulativeDifficulty: parent.CumulativeDifficulty.Add(nextDiff),
			// The parent, mined by w, is inside the PPLNS window, so the
			// split covers both wallets equally.
			OutputShares: []types.OutputShare{{Wallet: w, Reward: 500}, {Wallet: walletByte(2), Reward: 500}},
		}
	}

	// parent.Timestamp (1000) is the lone ancestor in the median window, so
	// the plain floor is 1000. A never-before-seen wallet must additionally
	// clear NewWalletTimestampPenalty beyond that.
	tooEarly := newChild(1000 + NewWalletTimestampPenalty - 1)
	err := Validate(st, tooEarly, cfg, alwaysKnownMCI{}, fixedClock(tooEarly.Timestamp+1), alwaysNewWalletIndex{})
	assertKind(t, err, BadTimestamp)

	onTime := newChild(1000 + NewWalletTimestampPenalty)
	if err := Validate(st, onTime, cfg, alwaysKnownMCI{}, fixedClock(onTime.Timestamp+1), alwaysNewWalletIndex{}); err != nil {
		t.Fatalf("Validate(new-wallet block past penalty) = %v, want nil", err)
	}

	// A known wallet clears the plain floor without the penalty.
	known := newChild(1000)
	if err := Validate(st, known, cfg, alwaysKnownMCI{}, fixedClock(known.Timestamp+1), alwaysKnownWalletIndex{}); err != nil {
		t.Fatalf("Validate(known-wallet block at plain floor) = %v, want nil", err)
	}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	var re *RejectionError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RejectionError, got %v (%T)", err, err)
	}
	if re.Kind != want {
		t.Fatalf("kind = %v, want %v", re.Kind, want)
	}
}
