package types

// Height is a sidechain block height: 0 for genesis, parent.Height+1
// otherwise, monotone along any chain (spec §3).
type Height = uint64

// Timestamp is a miner-declared Unix time in seconds (spec §3).
type Timestamp = uint64

// OutputShare is one (wallet, reward) entry of a block's declared coinbase
// split, set by the miner when building the candidate and re-checked by the
// Validator against the Window Engine's own computation (spec §4.3 check 8).
type OutputShare struct {
	Wallet Wallet
	Reward uint64
}

// FullID identifies one observed block announcement down to its PoW search
// variables, used as the Seen-Set key for gossip-echo suppression (spec
// §4.2): two different blobs that reuse the same id+nonce+extra_nonce are
// the same observation, not two different blocks.
type FullID struct {
	ID         Hash
	Nonce      uint32
	ExtraNonce uint32
}

// PoolBlock is a sidechain block: a share-accounting checkpoint that also
// commits to a main-chain anchor (spec §3).
type PoolBlock struct {
	ID       Hash
	ParentID Hash
	UncleIDs []Hash

	Height       Height
	MainHeight   Height
	MainPrevID   Hash
	MinerWallet  Wallet
	TxKeySec     Hash // ephemeral transaction secret scalar
	Nonce        uint32
	ExtraNonce   uint32
	Timestamp    Timestamp
	MainTimestamp Timestamp

	DeclaredDifficulty   Difficulty
	CumulativeDifficulty Difficulty

	PowHash Hash

	OutputShares []OutputShare

	// Depth is the block's distance from the current tip. Mutable; owned
	// exclusively by the Chain Selector and guarded by the Coordinator's
	// writer lock (DESIGN NOTES: "guard it by the writer lock; do not
	// expose mutation outside Chain Selector").
	Depth uint64

	Verified bool
	Invalid  bool

	// RawBlob is the wire bytes the (out-of-scope) codec handed the
	// Coordinator at ingestion. The Store never re-serializes a block, so
	// get_block_blob round-trips byte-for-byte (spec P6).
	RawBlob []byte

	// arrivalSeq is the monotone local-arrival counter recorded by the
	// Store at insertion time, used only to break cumulative-difficulty and
	// id ties deterministically (spec I6, §9 Open Question).
	arrivalSeq uint64
}

// FullID returns the Seen-Set key for this block's observed identity.
func (b *PoolBlock) FullID() FullID {
	return FullID{ID: b.ID, Nonce: b.Nonce, ExtraNonce: b.ExtraNonce}
}

// ArrivalSeq returns the local-arrival sequence number assigned at
// insertion. Zero until the block has been inserted into a Store.
func (b *PoolBlock) ArrivalSeq() uint64 { return b.arrivalSeq }

// SetArrivalSeq is called exactly once, by Store.Insert.
func (b *PoolBlock) SetArrivalSeq(seq uint64) { b.arrivalSeq = seq }

// HasUncle reports whether id appears in the block's uncle list.
func (b *PoolBlock) HasUncle(id Hash) bool {
	for _, u := range b.UncleIDs {
		if u == id {
			return true
		}
	}
	return false
}
