// Command sidecored is a thin wiring demonstration for the sidechain core:
// it loads a config, constructs a Coordinator with a logging event sink,
// and waits for a signal to shut down cleanly. It is not a P2P node, a
// stratum server, or a CLI wallet — those remain out of scope (spec §1)
// and would be built around this core by the outer system.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duskpool/sidechain/pkg/sidechain/config"
	"github.com/duskpool/sidechain/pkg/sidechain/coordinator"
	"github.com/duskpool/sidechain/pkg/sidechain/types"
	"github.com/duskpool/sidechain/pkg/sidechain/validator"
)

// loggingSink prints every Coordinator event, standing in for whatever the
// real P2P server and block builder would otherwise do with them.
type loggingSink struct {
	log *log.Logger
}

func (s loggingSink) BlockAccepted(id types.Hash) {
	s.log.Printf("block accepted: %s", id)
}

func (s loggingSink) BlockRejected(id types.Hash, kind validator.Kind) {
	s.log.Printf("block rejected: %s (%s)", id, kind)
}

func (s loggingSink) MissingParentsSeen(ids []types.Hash) {
	s.log.Printf("missing parents: %v", ids)
}

func (s loggingSink) TipChanged(newTip types.Hash, reorgDepth uint64) {
	s.log.Printf("tip changed: %s (reorg depth %d)", newTip, reorgDepth)
}

func (s loggingSink) MainChainBlockFound(mainID, sidechainID types.Hash, shares []types.MinerShare) {
	s.log.Printf("main chain block found: main=%s sidechain=%s shares=%d", mainID, sidechainID, len(shares))
}

func main() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := runCmd.String("config", "config.json", "path to the sidechain JSON config document")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd.Parse(os.Args[2:])
		run(*configPath)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	log.Println("Usage:")
	log.Println("  sidecored run --config <config.json>")
}

func run(configPath string) {
	logger := log.New(os.Stdout, "sidecored: ", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Printf("loaded config for network %s, consensus_id=%s", cfg.NetworkType, cfg.ConsensusID())

	co := coordinator.New(cfg, loggingSink{log: logger}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Printf("sidechain core running; send SIGINT/SIGTERM to stop")
	<-sigCh

	logger.Printf("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	co.Shutdown(ctx)
	logger.Printf("stopped")
}
