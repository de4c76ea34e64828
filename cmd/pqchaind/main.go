// Package main provides pqchaind, a single-node PQC ledger daemon:
// sqlite-backed chain and UTXO stores, a miner, gossip-based longest-chain
// reconciliation, and a plain REST API in front of all of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/klingon-exchange/pqchain/internal/config"
	"github.com/klingon-exchange/pqchain/internal/gossip"
	"github.com/klingon-exchange/pqchain/internal/httpapi"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/miner"
	"github.com/klingon-exchange/pqchain/internal/nodeconfig"
	"github.com/klingon-exchange/pqchain/internal/storage"
	"github.com/klingon-exchange/pqchain/internal/utxo"
	"github.com/klingon-exchange/pqchain/internal/wallet"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

var version = "0.1.0-dev"

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.pqchain", "Data directory")
		logLevel    = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pqchaind %s\n", version)
		os.Exit(0)
	}

	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	sidecar, err := nodeconfig.LoadConfig(*dataDir)
	if err != nil {
		log.Fatal("failed to load node config", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load runtime config", "error", err)
	}

	level := sidecar.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	logCfg, closer, err := logging.WithFileSink(&logging.Config{Level: level, TimeFormat: time.TimeOnly}, sidecar.Logging.File)
	if err != nil {
		log.Fatal("failed to open log file", "error", err)
	}
	log = logging.New(logCfg)
	logging.SetDefault(log)
	if closer != nil {
		defer closer.Close()
	}

	dataPath := expandPath(sidecar.DataDir)

	blockStore, err := storage.New(storage.Config{DataDir: dataPath, FileName: cfg.BlockDBFile})
	if err != nil {
		log.Fatal("failed to open block store", "error", err)
	}
	defer blockStore.Close()

	utxoStore, err := utxo.New(utxo.Config{DataDir: dataPath, FileName: cfg.UTXODBFile})
	if err != nil {
		log.Fatal("failed to open utxo store", "error", err)
	}
	defer utxoStore.Close()

	walletStore, err := wallet.NewSQLiteStore(dataPath, cfg.WalletDBFile)
	if err != nil {
		log.Fatal("failed to open wallet store", "error", err)
	}
	defer walletStore.Close()

	minerAlias := sidecar.MinerAlias
	if minerAlias == "" {
		minerAlias = cfg.MinerAlias
	}
	minerPub, _, err := walletStore.GetPublicKeyByAlias(minerAlias)
	if err != nil {
		log.Fatal("failed to resolve miner wallet", "error", err)
	}
	if minerPub == "" {
		w := wallet.New(cfg.Scheme, walletStore, utxoStore, nil)
		record, err := w.CreateWallet(minerAlias)
		if err != nil {
			log.Fatal("failed to create miner wallet", "error", err)
		}
		minerPub = record.PublicKey
		log.Info("created miner wallet", "alias", minerAlias, "mnemonic", record.Mnemonic)
	}

	l, err := ledger.New(ledger.Config{
		MinerAddress:                 minerPub,
		InitialDifficulty:            cfg.InitialDifficulty,
		MinerReward:                  cfg.MinerReward,
		BlockTimeTarget:              cfg.BlockTimeTarget,
		DifficultyAdjustmentInterval: cfg.DifficultyAdjustmentInterval,
	}, blockStore, utxoStore, cfg.Scheme, log)
	if err != nil {
		log.Fatal("failed to initialize ledger", "error", err)
	}

	m := miner.New(l, log)
	w := wallet.New(cfg.Scheme, walletStore, utxoStore, l)

	initialPeers := sidecar.InitialPeers
	if len(initialPeers) == 0 {
		initialPeers = cfg.InitialPeers
	}
	g, err := gossip.New(gossip.Config{
		NodeURL:        cfg.NodeURL,
		GossipInterval: time.Duration(cfg.GossipIntervalSeconds) * time.Second,
		NetworkTimeout: time.Duration(cfg.NetworkTimeoutSeconds) * time.Second,
		InitialPeers:   initialPeers,
	}, l, blockStore, log)
	if err != nil {
		log.Fatal("failed to initialize gossip network", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.StartReconcileLoop(ctx)

	server := httpapi.New(l, m, g, w, log)
	if err := server.Start(fmt.Sprintf("127.0.0.1:%d", cfg.NodePort)); err != nil {
		log.Fatal("failed to start http api", "error", err)
	}

	log.Info("pqchaind started", "url", cfg.NodeURL, "miner", minerAlias, "difficulty", l.Difficulty())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	cancel()
	if err := server.Stop(); err != nil {
		log.Error("error stopping http api", "error", err)
	}
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
