package config

import "testing"

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"pool_name":"test","min_difficulty":"1000"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TargetBlockTime != DefaultTargetBlockTime {
		t.Errorf("TargetBlockTime = %d, want %d", cfg.TargetBlockTime, DefaultTargetBlockTime)
	}
	if cfg.ChainWindowSize != DefaultChainWindowSize {
		t.Errorf("ChainWindowSize = %d, want %d", cfg.ChainWindowSize, DefaultChainWindowSize)
	}
	if cfg.UnclePenaltyPct != DefaultUnclePenaltyPct {
		t.Errorf("UnclePenaltyPct = %d, want %d", cfg.UnclePenaltyPct, DefaultUnclePenaltyPct)
	}
}

func TestParseRejectsZeroWindow(t *testing.T) {
	_, err := Parse([]byte(`{"chain_window_size":0}`))
	if err == nil {
		t.Fatal("Parse should reject chain_window_size == 0")
	}
}

func TestParseRejectsOutOfRangeUnclePenalty(t *testing.T) {
	_, err := Parse([]byte(`{"uncle_penalty":150}`))
	if err == nil {
		t.Fatal("Parse should reject uncle_penalty > 100")
	}
}

func TestUnclePenaltyFraction(t *testing.T) {
	cfg := &Config{UnclePenaltyPct: 20}
	if got := cfg.UnclePenalty(); got != 0.20 {
		t.Errorf("UnclePenalty() = %v, want 0.20", got)
	}
}

func TestConsensusIDDeterministic(t *testing.T) {
	cfg, err := Parse([]byte(`{"pool_name":"a","pool_password":"b","min_difficulty":"1"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id1 := cfg.ConsensusID()
	id2 := cfg.ConsensusID()
	if id1 != id2 {
		t.Error("ConsensusID should be deterministic for the same config")
	}
}

func TestConsensusIDDiffersOnPoolPassword(t *testing.T) {
	a, err := Parse([]byte(`{"pool_name":"a","pool_password":"secret1","min_difficulty":"1"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Parse([]byte(`{"pool_name":"a","pool_password":"secret2","min_difficulty":"1"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.ConsensusID() == b.ConsensusID() {
		t.Error("different pool_password should yield different consensus id")
	}
}

func TestNetworkTypeJSONRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(`{"network_type":"testnet","min_difficulty":"1"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.NetworkType != Testnet {
		t.Errorf("NetworkType = %v, want Testnet", cfg.NetworkType)
	}
	data, err := cfg.NetworkType.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != `"testnet"` {
		t.Errorf("MarshalJSON = %s, want %q", data, `"testnet"`)
	}
}
