// Package config loads the sidechain's JSON configuration document and
// derives the consensus id that partitions incompatible pools from one
// another (spec §6).
package config

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/duskpool/sidechain/pkg/sidechain/types"
)

// NetworkType selects which main chain this sidechain tracks.
type NetworkType int

const (
	Mainnet NetworkType = iota
	Testnet
	Stagenet
)

func (n NetworkType) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Stagenet:
		return "stagenet"
	default:
		return fmt.Sprintf("network(%d)", int(n))
	}
}

func (n NetworkType) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.String())
}

func (n *NetworkType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "mainnet", "Mainnet":
		*n = Mainnet
	case "testnet", "Testnet":
		*n = Testnet
	case "stagenet", "Stagenet":
		*n = Stagenet
	default:
		return fmt.Errorf("config: unknown network_type %q", s)
	}
	return nil
}

// Defaults mirrored from spec §6.
const (
	DefaultTargetBlockTime uint64 = 10
	DefaultChainWindowSize uint64 = 2160
	DefaultUnclePenaltyPct uint64 = 20
)

// Config is the JSON document loaded at start (spec §6).
type Config struct {
	PoolName        string          `json:"pool_name"`
	PoolPassword    string          `json:"pool_password"`
	NetworkType     NetworkType     `json:"network_type"`
	TargetBlockTime uint64          `json:"target_block_time"`
	MinDifficulty   types.Difficulty `json:"min_difficulty"`
	ChainWindowSize uint64          `json:"chain_window_size"`
	UnclePenaltyPct uint64          `json:"uncle_penalty"`
}

// Load reads and parses a JSON config file, filling in spec-mandated
// defaults for any zero-valued field the document omitted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a JSON config document from memory.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		TargetBlockTime: DefaultTargetBlockTime,
		ChainWindowSize: DefaultChainWindowSize,
		UnclePenaltyPct: DefaultUnclePenaltyPct,
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ChainWindowSize == 0 {
		return fmt.Errorf("config: chain_window_size must be > 0")
	}
	if c.UnclePenaltyPct > 100 {
		return fmt.Errorf("config: uncle_penalty must be a percentage in [0, 100]")
	}
	if c.TargetBlockTime == 0 {
		return fmt.Errorf("config: target_block_time must be > 0")
	}
	return nil
}

// UnclePenalty returns the configured uncle penalty as a fraction in [0,1].
func (c *Config) UnclePenalty() float64 {
	return float64(c.UnclePenaltyPct) / 100.0
}

// ConsensusID derives the secret pool-partitioning identifier described in
// spec §6:
//
//	H(network_type || pool_name || pool_password || target_block_time ||
//	  min_difficulty || chain_window_size || uncle_penalty)
//
// It is never transmitted over the wire. Nothing in this module compares
// it: PoolBlock carries no consensus id, and the Validator's structural
// check does not look at one.
func (c *Config) ConsensusID() types.Hash {
	h := sha256.New()
	binary.Write(h, binary.BigEndian, int32(c.NetworkType))
	h.Write([]byte(c.PoolName))
	h.Write([]byte(c.PoolPassword))
	binary.Write(h, binary.BigEndian, c.TargetBlockTime)
	h.Write([]byte(c.MinDifficulty.String()))
	binary.Write(h, binary.BigEndian, c.ChainWindowSize)
	binary.Write(h, binary.BigEndian, c.UnclePenaltyPct)

	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
