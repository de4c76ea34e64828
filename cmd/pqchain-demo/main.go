// Package main runs a scripted single-process demo of the ledger: create
// a miner wallet and a spender wallet, stand up a fresh ledger (genesis),
// make a first mining attempt (a no-op, since the mempool is still empty),
// send funds from the miner to the spender, and mine a block to confirm the
// transfer.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/miner"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/internal/storage"
	"github.com/klingon-exchange/pqchain/internal/utxo"
	"github.com/klingon-exchange/pqchain/internal/wallet"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

const (
	minerAlias   = "Miner_Node_Wallet"
	spenderAlias = "Alice"
	demoDataDir  = "./demo-data"
)

func main() {
	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if err := cleanup(); err != nil {
		log.Fatal("cleanup failed", "error", err)
	}
	log.Info("--- STARTING DEMO ---")

	scheme := pqc.Dilithium3()

	walletStore, err := wallet.NewSQLiteStore(demoDataDir, "wallets.db")
	if err != nil {
		log.Fatal("open wallet store", "error", err)
	}
	defer walletStore.Close()

	blockStore, err := storage.New(storage.Config{DataDir: demoDataDir, FileName: "blocks.db"})
	if err != nil {
		log.Fatal("open block store", "error", err)
	}
	defer blockStore.Close()

	utxoStore, err := utxo.New(utxo.Config{DataDir: demoDataDir, FileName: "utxo.db"})
	if err != nil {
		log.Fatal("open utxo store", "error", err)
	}
	defer utxoStore.Close()

	w := wallet.New(scheme, walletStore, utxoStore, nil)
	minerRecord, err := w.CreateWallet(minerAlias)
	if err != nil {
		log.Fatal("create miner wallet", "error", err)
	}
	spenderRecord, err := w.CreateWallet(spenderAlias)
	if err != nil {
		log.Fatal("create spender wallet", "error", err)
	}

	l, err := ledger.New(ledger.Config{
		MinerAddress:                 minerRecord.PublicKey,
		InitialDifficulty:            4,
		MinerReward:                  amount.FromFloat64(10.0),
		BlockTimeTarget:              10,
		DifficultyAdjustmentInterval: 5,
	}, blockStore, utxoStore, scheme, log)
	if err != nil {
		log.Fatal("initialize ledger", "error", err)
	}
	w = wallet.New(scheme, walletStore, utxoStore, l)

	m := miner.New(l, log)

	log.Info("mining block 1 (confirms genesis)...")
	if _, mined, err := m.MineBlock(context.Background()); err != nil {
		log.Fatal("mine block 1", "error", err)
	} else if !mined {
		log.Info("nothing pending to mine yet, genesis reward already spendable")
	}

	minerBalance, err := w.Balance(minerRecord.PublicKey)
	if err != nil {
		log.Fatal("miner balance", "error", err)
	}
	log.Info("miner balance after genesis", "balance", minerBalance.String())

	tx, err := w.CreateTransaction(minerAlias, spenderRecord.PublicKey, amount.FromFloat64(50.0), amount.Zero)
	if err != nil {
		log.Fatal("create transaction", "error", err)
	}
	if !l.AddTransaction(tx) {
		log.Fatal("transaction rejected by mempool")
	}

	log.Info("mining block with transaction...")
	if _, mined, err := m.MineBlock(context.Background()); err != nil {
		log.Fatal("mine block 2", "error", err)
	} else if !mined {
		log.Warn("block 2 did not mine")
	}

	spenderBalance, err := w.Balance(spenderRecord.PublicKey)
	if err != nil {
		log.Fatal("spender balance", "error", err)
	}
	fmt.Printf("Alice balance: %s\n", spenderBalance.String())
	log.Info("--- DEMO COMPLETE ---")
}

func cleanup() error {
	return os.RemoveAll(demoDataDir)
}
