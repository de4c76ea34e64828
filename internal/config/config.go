// Package config loads the node's runtime configuration from environment
// variables (spec §6.5). Every option has the same default as the
// original prototype; NODE_PORT also salts the three sqlite filenames so
// multiple nodes can share a data directory, matching the original's
// per-port DB naming.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/ledgererr"
	"github.com/klingon-exchange/pqchain/internal/pqc"
)

// Config is the fully resolved, validated runtime configuration.
type Config struct {
	NodePort   int
	NodeURL    string
	MinerAlias string

	InitialDifficulty            int
	MinerReward                  amount.Amount
	BlockTimeTarget              float64
	DifficultyAdjustmentInterval int

	BlockDBFile  string
	UTXODBFile   string
	WalletDBFile string

	GossipIntervalSeconds int
	InitialPeers          []string
	NetworkTimeoutSeconds int

	Scheme pqc.Scheme
	// TransactionVersion is read from TRANSACTION_VERSION but nothing
	// consumes it; new transactions carry chainmodel.TransactionVersion.
	TransactionVersion int

	LogLevel string
	LogFile  string
}

// Load resolves configuration from the process environment, applying the
// same defaults as the original prototype's config.py. It returns
// ledgererr.ErrConfig if PQC_SCHEME_NAME names an unrecognized scheme —
// the one fatal startup condition spec §7 names.
func Load() (Config, error) {
	port := envInt("NODE_PORT", 5000)

	scheme, err := pqc.ResolveScheme(envString("PQC_SCHEME_NAME", "CRYSTALS-Dilithium-3"))
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ledgererr.ErrConfig, err)
	}

	return Config{
		NodePort:   port,
		NodeURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		MinerAlias: envString("MINER_ADDRESS_ALIAS", "Miner_Node_Wallet"),

		InitialDifficulty:            envInt("INITIAL_DIFFICULTY", 4),
		MinerReward:                  amount.FromFloat64(envFloat("MINER_REWARD", 10.0)),
		BlockTimeTarget:              envFloat("BLOCK_TIME_TARGET", 10),
		DifficultyAdjustmentInterval: envInt("DIFFICULTY_ADJUSTMENT_INTERVAL", 5),

		BlockDBFile:  fmt.Sprintf("quantum_ledger_%d.db", port),
		UTXODBFile:   fmt.Sprintf("utxo_set_%d.db", port),
		WalletDBFile: fmt.Sprintf("wallets_%d.db", port),

		GossipIntervalSeconds: envInt("GOSSIP_INTERVAL", 10),
		InitialPeers:          []string{},
		NetworkTimeoutSeconds: envInt("NETWORK_TIMEOUT", 5),

		Scheme:             scheme,
		TransactionVersion: envInt("TRANSACTION_VERSION", 1),

		LogLevel: envString("LOG_LEVEL", "INFO"),
		LogFile:  fmt.Sprintf("qrl_node_%d.log", port),
	}, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
