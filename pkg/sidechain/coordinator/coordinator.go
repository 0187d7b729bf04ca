// Package coordinator implements the Coordinator (spec §4.7): the public
// façade that serializes mutating operations behind a single writer lock,
// fans out reads under a shared lock, owns every other component, and
// emits events upward through a callback set supplied at construction —
// no back-pointers (spec §9 "Cyclic ownership").
package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/duskpool/sidechain/pkg/sidechain/config"
	"github.com/duskpool/sidechain/pkg/sidechain/precalc"
	"github.com/duskpool/sidechain/pkg/sidechain/seenset"
	"github.com/duskpool/sidechain/pkg/sidechain/selector"
	"github.com/duskpool/sidechain/pkg/sidechain/store"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
	"github.com/duskpool/sidechain/pkg/sidechain/validator"
	"github.com/duskpool/sidechain/pkg/sidechain/window"
)

// Logger is satisfied directly by *log.Logger; the zero value falls back
// to log.Default() so nothing here reads a process-wide global implicitly
// (spec §9 "Global singletons" flag).
type Logger interface {
	Printf(format string, args ...any)
}

// AddResult is add_external_block/add_local_block's outcome (spec §4.7).
type AddResult int

const (
	Accepted AddResult = iota
	Duplicate
	MissingParents
	Rejected
)

func (r AddResult) String() string {
	switch r {
	case Accepted:
		return "Accepted"
	case Duplicate:
		return "Duplicate"
	case MissingParents:
		return "MissingParents"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// AddOutcome carries AddResult plus whichever detail applies.
type AddOutcome struct {
	Result     AddResult
	Missing    []types.Hash   // set when Result == MissingParents
	Kind       validator.Kind // set when Result == Rejected
	Err        error          // set when Result == Rejected
	NewTip     bool           // set when Result == Accepted and this block became the tip
	ReorgDepth uint64         // valid only when NewTip is true
}

// EventSink receives every observation event the Coordinator emits (spec
// §6 "Emitted events"). Implementations must not block; the Coordinator
// calls these synchronously after releasing the writer lock.
type EventSink interface {
	BlockAccepted(id types.Hash)
	BlockRejected(id types.Hash, kind validator.Kind)
	MissingParentsSeen(ids []types.Hash)
	TipChanged(newTip types.Hash, reorgDepth uint64)
	MainChainBlockFound(mainID, sidechainID types.Hash, shares []types.MinerShare)
}

// NoopEventSink implements EventSink with no-ops, for callers that only
// care about a subset of events (embed and override).
type NoopEventSink struct{}

func (NoopEventSink) BlockAccepted(types.Hash)                                    {}
func (NoopEventSink) BlockRejected(types.Hash, validator.Kind)                     {}
func (NoopEventSink) MissingParentsSeen([]types.Hash)                              {}
func (NoopEventSink) TipChanged(types.Hash, uint64)                                {}
func (NoopEventSink) MainChainBlockFound(types.Hash, types.Hash, []types.MinerShare) {}

// ChainMain is the main-chain block descriptor the outer system feeds
// through OnMainBlock (spec §6 "Consumed callbacks").
type ChainMain struct {
	ID         types.Hash
	Height     uint64
	PrevID     types.Hash
	Difficulty types.Difficulty
	Reward     uint64
	Timestamp  types.Timestamp
}

// pendingChild is a block waiting on a missing parent, per spec §7's
// MissingParent policy: held in a pending set keyed by parent id with a
// bounded TTL; retried recursively once the parent arrives.
type pendingChild struct {
	block    *types.PoolBlock
	local    bool
	deadline time.Time
}

type mainChainIndex struct {
	mu    sync.Mutex
	order []types.Hash
	known map[types.Hash]int
}

func newMainChainIndex() *mainChainIndex {
	return &mainChainIndex{known: make(map[types.Hash]int)}
}

func (m *mainChainIndex) Observe(id types.Hash, window int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append(m.order, id)
	if len(m.order) > window*4 {
		drop := m.order[0]
		delete(m.known, drop)
		m.order = m.order[1:]
		for id, idx := range m.known {
			m.known[id] = idx - 1
		}
	}
	m.known[id] = len(m.order) - 1
}

func (m *mainChainIndex) KnownWithin(id types.Hash, window int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.known[id]
	if !ok {
		return false
	}
	return len(m.order)-1-idx < window
}

type systemClock struct{}

func (systemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// Coordinator is the sidechain core's public entry point.
type Coordinator struct {
	mu sync.RWMutex

	cfg    *config.Config
	store  *store.Store
	seenB  *seenset.Blocks
	seenW  *seenset.Wallets
	precal *precalc.Pool
	mci    *mainChainIndex
	clock  validator.Clock
	log    Logger
	sink   EventSink

	tip     *types.PoolBlock
	pending map[types.Hash][]pendingChild // keyed by missing parent id

	watches map[types.Hash]types.Hash // main-chain id -> possible sidechain id

	shuttingDown bool
}

// New constructs a Coordinator. sink may be nil (falls back to
// NoopEventSink); logger may be nil (falls back to log.Default()).
func New(cfg *config.Config, sink EventSink, logger Logger) *Coordinator {
	if sink == nil {
		sink = NoopEventSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		cfg:     cfg,
		store:   store.New(),
		seenB:   seenset.NewBlocks(cfg.ChainWindowSize, cfg.TargetBlockTime),
		seenW:   seenset.NewWallets(cfg.ChainWindowSize, cfg.TargetBlockTime),
		precal:  precalc.New(),
		mci:     newMainChainIndex(),
		clock:   systemClock{},
		log:     logger,
		sink:    sink,
		pending: make(map[types.Hash][]pendingChild),
		watches: make(map[types.Hash]types.Hash),
	}
}

func (c *Coordinator) windowConfig() window.Config {
	return window.Config{
		ChainWindowSize: c.cfg.ChainWindowSize,
		TargetBlockTime: c.cfg.TargetBlockTime,
		MinDifficulty:   c.cfg.MinDifficulty,
		UnclePenalty:    c.cfg.UnclePenalty(),
	}
}

// Tip returns the current chain tip, or nil before genesis is inserted.
func (c *Coordinator) Tip() *types.PoolBlock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tip
}

// Find looks up a block by id under the reader lock.
func (c *Coordinator) Find(id types.Hash) (*types.PoolBlock, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Find(id)
}

// GetBlockBlob hands back a stored block's raw wire bytes (spec §4.7).
func (c *Coordinator) GetBlockBlob(id types.Hash) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetBlob(id)
}

// WatchMainchainBlock remembers a main-chain block that may have been
// solved by a sidechain block (spec §4.7).
func (c *Coordinator) WatchMainchainBlock(mainBlockID, possibleSidechainID types.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watches[mainBlockID] = possibleSidechainID
}

// OnMainBlock is the consumed callback from the main-chain client (spec
// §6). It records the block in the main-chain index used by anchor
// validation and checks pending watches.
func (c *Coordinator) OnMainBlock(main ChainMain) {
	c.mu.Lock()
	c.mci.Observe(main.ID, validator.MainChainWindow)
	sidechainID, watched := c.watches[main.ID]
	if watched {
		delete(c.watches, main.ID)
	}
	c.mu.Unlock()

	if !watched {
		return
	}
	c.mu.RLock()
	block, ok := c.store.Find(sidechainID)
	if !ok || !block.Verified || block.Invalid {
		c.mu.RUnlock()
		return
	}
	shares, _, err := window.Shares(c.storeSnapshot(), block, c.windowConfig())
	c.mu.RUnlock()
	if err != nil {
		return
	}
	c.sink.MainChainBlockFound(main.ID, sidechainID, shares)
}

// storeSnapshot returns the Store pointer for read-only use. Named to make
// call sites state their intent even though Store itself has no locking of
// its own — every call site already holds the appropriate Coordinator lock.
func (c *Coordinator) storeSnapshot() *store.Store { return c.store }

// AddExternalBlock is add_external_block (spec §4.7): the gossip ingestion
// path. Runs full validation, including PoW recomputation.
func (c *Coordinator) AddExternalBlock(block *types.PoolBlock) AddOutcome {
	return c.addBlock(block, false)
}

// AddLocalBlock is add_local_block (spec §4.7): the locally-mined path.
// Currently identical to AddExternalBlock's validation; the "known-good
// fast path that skips PoW recomputation when pow_hash is already trusted"
// is a pure optimization over checkPow and is intentionally not taken here
// — Validate is cheap enough relative to the rest of the checks that
// skipping it would only save a single MeetsTarget call already computed
// by the miner loop.
func (c *Coordinator) AddLocalBlock(block *types.PoolBlock) AddOutcome {
	return c.addBlock(block, true)
}

func (c *Coordinator) addBlock(block *types.PoolBlock, local bool) AddOutcome {
	c.mu.Lock()

	if c.shuttingDown {
		c.mu.Unlock()
		return AddOutcome{Result: Rejected, Kind: validator.Shutdown, Err: validator.ErrShutdown}
	}

	if wasNew := c.seenB.CheckAndMark(block.FullID()); !wasNew {
		c.mu.Unlock()
		return AddOutcome{Result: Duplicate}
	}

	if _, ok := c.store.Find(block.ID); ok {
		c.mu.Unlock()
		return AddOutcome{Result: Duplicate}
	}

	outcome := c.validateAndInsert(block)
	c.mu.Unlock()

	c.emitFor(block.ID, outcome)
	return outcome
}

// validateAndInsert runs under the writer lock already held by the
// caller. It returns the outcome but defers event emission to the caller,
// since events must be emitted after the writer lock is released (spec §5
// ordering guarantee).
func (c *Coordinator) validateAndInsert(block *types.PoolBlock) AddOutcome {
	err := validator.Validate(c.store, block, c.cfg, c.mci, c.clock, c.seenW)
	if err != nil {
		var re *validator.RejectionError
		if asRejection(err, &re) {
			if re.Kind == validator.MissingParent {
				c.seenB.Unmark(block.FullID())
				c.addPending(re.MissingParentID, block, false)
				return AddOutcome{Result: MissingParents, Missing: []types.Hash{re.MissingParentID}}
			}
			return AddOutcome{Result: Rejected, Kind: re.Kind, Err: re}
		}
		return AddOutcome{Result: Rejected, Kind: validator.Malformed, Err: err}
	}

	block.Verified = true
	c.store.Insert(block)
	c.seenW.Observe(block.MinerWallet, block.Timestamp)

	reorgDepth, tipChanged := c.considerTip(block)
	if tipChanged {
		c.afterTipChange(block, reorgDepth)
	}

	c.promotePending(block.ID)

	return AddOutcome{Result: Accepted, NewTip: tipChanged, ReorgDepth: reorgDepth}
}

func asRejection(err error, target **validator.RejectionError) bool {
	re, ok := err.(*validator.RejectionError)
	if ok {
		*target = re
	}
	return ok
}

func (c *Coordinator) considerTip(candidate *types.PoolBlock) (reorgDepth uint64, changed bool) {
	res := selector.Consider(c.store, c.tip, candidate)
	if res.Outcome != selector.NewTip {
		return 0, false
	}
	c.tip = candidate
	return res.ReorgDepth, true
}

func (c *Coordinator) afterTipChange(newTip *types.PoolBlock, reorgDepth uint64) {
	gen := c.precal.AdvanceGeneration()
	_, wallets, err := window.Shares(c.store, newTip, c.windowConfig())
	if err == nil {
		c.precal.SubmitWallets(wallets, newTip.TxKeySec)
	}
	_ = gen

	pruneDepth := c.cfg.ChainWindowSize * 2
	c.store.Prune(newTip, pruneDepth)
}

func (c *Coordinator) addPending(parentID types.Hash, block *types.PoolBlock, local bool) {
	const pendingTTL = 10 * time.Minute
	c.pending[parentID] = append(c.pending[parentID], pendingChild{
		block:    block,
		local:    local,
		deadline: time.Now().Add(pendingTTL),
	})
}

// promotePending retries every block waiting on parentID, recursively,
// assuming the writer lock is already held.
func (c *Coordinator) promotePending(parentID types.Hash) {
	children, ok := c.pending[parentID]
	if !ok {
		return
	}
	delete(c.pending, parentID)

	now := time.Now()
	for _, child := range children {
		if now.After(child.deadline) {
			continue
		}
		outcome := c.validateAndInsert(child.block)
		c.emitFor(child.block.ID, outcome)
	}
}

func (c *Coordinator) emitFor(id types.Hash, outcome AddOutcome) {
	switch outcome.Result {
	case Accepted:
		c.sink.BlockAccepted(id)
		if outcome.NewTip {
			c.sink.TipChanged(id, outcome.ReorgDepth)
		}
	case Rejected:
		c.sink.BlockRejected(id, outcome.Kind)
	case MissingParents:
		c.sink.MissingParentsSeen(outcome.Missing)
	}
}

// FillSidechainData is fill_sidechain_data (spec §4.7): used by the block
// builder to compute the share set for a candidate built on top of the
// current tip.
func (c *Coordinator) FillSidechainData(wallet types.Wallet, txKeySec types.Hash) ([]types.MinerShare, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.tip == nil {
		return nil, fmt.Errorf("coordinator: no tip yet")
	}
	candidate := &types.PoolBlock{
		ParentID:           c.tip.ID,
		Height:             c.tip.Height + 1,
		MinerWallet:        wallet,
		DeclaredDifficulty: window.Difficulty(c.store, c.tip, c.windowConfig()),
	}
	shares, _, err := window.Shares(c.store, candidate, c.windowConfig())
	return shares, err
}

// Shutdown implements spec §5's cancellation policy: sets a flag, closes
// the precalc queue, waits for in-flight validations (the writer lock
// acquisition above already serializes against any in-flight one), then
// returns. Calls after Shutdown return Rejected(Shutdown).
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	c.shuttingDown = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.precal.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
