// Package precalc implements the Precalc Pool (spec §4.6): a bounded
// worker group that precomputes per-output one-time destination keys for a
// future coinbase so the block builder never has to scalar-multiply on the
// hot path.
package precalc

import (
	"context"
	"crypto/sha256"
	"runtime"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/sync/errgroup"

	"github.com/hashicorp/golang-lru/v2"

	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// maxWorkers caps the pool size (spec §4.6: "size = available cores,
// capped"), the same runtime.NumCPU() reading the teacher logs in its
// miner's Start(), here actually used to size a pool rather than just
// reported.
const maxWorkers = 8

// cacheSize bounds the dedup cache. Spec §4.6/§5: "Precalc cache is bounded
// by distinct wallets in the window" — sized generously above a typical
// chain_window_size so legitimate churn across a few tip changes doesn't
// evict entries the block builder is about to ask for.
const cacheSize = 16384

// Key identifies one precomputed output key: hash(wallet, tx_key_sec,
// output_index), per spec §4.6.
type Key [32]byte

func cacheKey(wallet types.Wallet, txKeySec types.Hash, outputIndex uint32) Key {
	h := sha256.New()
	h.Write(wallet.Bytes())
	h.Write(txKeySec[:])
	var idx [4]byte
	idx[0] = byte(outputIndex)
	idx[1] = byte(outputIndex >> 8)
	idx[2] = byte(outputIndex >> 16)
	idx[3] = byte(outputIndex >> 24)
	h.Write(idx[:])
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Job is one (wallet, tx_key_sec, output_index) unit of work, tagged with
// the generation it was submitted under so stale jobs can be dropped
// cheaply when dequeued (spec §4.6's "generation counter").
type Job struct {
	Wallet      types.Wallet
	TxKeySec    types.Hash
	OutputIndex uint32
	Generation  uint64
}

// Pool is the worker group plus its dedup cache.
type Pool struct {
	cache *lru.Cache[Key, types.Hash]

	generation uint64 // current generation; bumped on every tip change
	jobs       chan Job
	group      *errgroup.Group
	cancel     context.CancelFunc
}

// New builds a Pool with a bounded worker group and dedup cache. Call
// Shutdown to drain and stop it.
func New() *Pool {
	cache, _ := lru.New[Key, types.Hash](cacheSize)

	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	p := &Pool{
		cache:  cache,
		jobs:   make(chan Job, cacheSize),
		group:  g,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			p.runWorker(gctx)
			return nil
		})
	}
	return p
}

// Generation returns the pool's current generation counter, for tagging
// newly submitted jobs against the tip that produced them.
func (p *Pool) Generation() uint64 {
	return p.generation
}

// AdvanceGeneration bumps the generation counter on a tip change; jobs
// tagged with an older generation are dropped when dequeued rather than
// computed, per spec §4.6.
func (p *Pool) AdvanceGeneration() uint64 {
	p.generation++
	return p.generation
}

// Submit enqueues one job. Non-blocking: if the queue is full the job is
// dropped (the block builder will recompute inline per spec §7's Precalc
// error policy — "a missing precalc entry is recomputed inline").
func (p *Pool) Submit(job Job) {
	select {
	case p.jobs <- job:
	default:
	}
}

// SubmitWallets enqueues one job per (wallet, output index) pair for the
// current generation, skipping entries already present in the cache.
func (p *Pool) SubmitWallets(wallets []types.Wallet, txKeySec types.Hash) {
	gen := p.Generation()
	for i, w := range wallets {
		key := cacheKey(w, txKeySec, uint32(i))
		if _, ok := p.cache.Get(key); ok {
			continue
		}
		p.Submit(Job{Wallet: w, TxKeySec: txKeySec, OutputIndex: uint32(i), Generation: gen})
	}
}

func (p *Pool) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if job.Generation != p.generation {
				continue // superseded tip; drop per spec §4.6
			}
			p.compute(job)
		}
	}
}

// compute derives one ephemeral one-time output key via an X25519 scalar
// multiplication of the transaction secret against the wallet's view key,
// then hashes in the output index — the Go-idiomatic stand-in for the
// Diffie-Hellman-style stealth-address derivation the original C++ pool
// performs with Monero's curve primitives.
func (p *Pool) compute(job Job) {
	var shared [32]byte
	if s, err := curve25519.X25519(job.TxKeySec[:], job.Wallet.ViewPub[:]); err == nil {
		copy(shared[:], s)
	}

	h := sha256.New()
	h.Write(shared[:])
	var idx [4]byte
	idx[0] = byte(job.OutputIndex)
	idx[1] = byte(job.OutputIndex >> 8)
	idx[2] = byte(job.OutputIndex >> 16)
	idx[3] = byte(job.OutputIndex >> 24)
	h.Write(idx[:])

	var outKey types.Hash
	copy(outKey[:], h.Sum(nil))

	key := cacheKey(job.Wallet, job.TxKeySec, job.OutputIndex)
	p.cache.Add(key, outKey)
}

// Lookup returns the precomputed output key, if present. The block builder
// recomputes inline on a miss (spec §7).
func (p *Pool) Lookup(wallet types.Wallet, txKeySec types.Hash, outputIndex uint32) (types.Hash, bool) {
	return p.cache.Get(cacheKey(wallet, txKeySec, outputIndex))
}

// Drained reports whether the job queue is currently empty — the
// "precalc_finished" signal of spec §4.6 the block builder can poll if it
// races ahead of the workers.
func (p *Pool) Drained() bool {
	return len(p.jobs) == 0
}

// Shutdown closes the job queue and waits for in-flight jobs to finish
// (spec §5: "closes the precalc queue, joins workers"). Cooperative: each
// worker exits after its current job, not mid-computation.
func (p *Pool) Shutdown() {
	close(p.jobs)
	p.cancel()
	_ = p.group.Wait()
}
