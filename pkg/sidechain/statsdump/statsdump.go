// Package statsdump provides the atomic JSON snapshot writer described in
// spec §6's "Statistics surface", recovered in more detail from
// original_source/src/p2pool_api.cpp: write to a unique temp name, then
// rename over the final name, so a reader never observes a partial file.
//
// This package owns no ticker and no goroutine: the periodic dump loop is
// the outer system's job (spec §1 says the core does no I/O of its own).
// statsdump is a pure leaf utility the outer system calls with snapshots
// read from the Coordinator under its reader lock.
package statsdump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// Category mirrors the three subdirectories p2pool_api.cpp writes:
// network/, pool/, local/.
type Category string

const (
	Network Category = "network"
	Pool    Category = "pool"
	Local   Category = "local"
)

// counter produces the temp-file suffix p2pool_api.cpp appends
// (path + counter), avoiding collisions between concurrent dumps of the
// same name without needing a random source.
var counter uint64

// WriteJSON marshals v and atomically replaces dir/category/name with the
// result: write to name+".<counter>.tmp" in the same directory, then
// os.Rename over the final path, so a concurrent reader never sees a
// half-written file. Filesystem errors are returned, not logged: per spec
// §7 the caller is responsible for logging and swallowing them — this
// package has no injected logger to log to.
func WriteJSON(dir string, category Category, name string, v any) error {
	catDir := filepath.Join(dir, string(category))
	if err := os.MkdirAll(catDir, 0o775); err != nil {
		return fmt.Errorf("statsdump: mkdir %s: %w", catDir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("statsdump: marshal %s: %w", name, err)
	}

	final := filepath.Join(catDir, name)
	n := atomic.AddUint64(&counter, 1)
	tmp := fmt.Sprintf("%s.%d.tmp", final, n)

	if err := os.WriteFile(tmp, data, 0o664); err != nil {
		return fmt.Errorf("statsdump: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("statsdump: rename %s -> %s: %w", tmp, final, err)
	}
	return nil
}

// NetworkStats is the network/ snapshot: main-chain-facing state.
type NetworkStats struct {
	MainHeight     uint64 `json:"main_height"`
	MainDifficulty string `json:"main_difficulty"`
	MainTimestamp  uint64 `json:"main_timestamp"`
}

// PoolStats is the pool/ snapshot: sidechain-wide state, safe to publish
// to every peer.
type PoolStats struct {
	SidechainHeight     uint64 `json:"sidechain_height"`
	SidechainDifficulty string `json:"sidechain_difficulty"`
	TipID               string `json:"tip_id"`
	MinerCount          int    `json:"miner_count"`
}

// LocalStats is the local/ snapshot: this node's own contribution, not
// meant for cross-pool comparison.
type LocalStats struct {
	Wallet       string `json:"wallet"`
	SharesInWindow uint64 `json:"shares_in_window"`
	Hashrate     float64 `json:"hashrate_estimate"`
}

// HashHex is a convenience for filling the *Stats structs from a
// types.Hash without importing types' JSON tagging conventions into every
// call site.
func HashHex(h types.Hash) string { return h.Hex() }
