// Package wallet implements the wallet collaborator (spec §4, supplemented
// from original_source/wallet_manager.py): key storage by alias, balance
// lookup, and transaction construction with largest-first UTXO selection.
package wallet

import (
	"fmt"
	"sort"

	"github.com/tyler-smith/go-bip39"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/pqc"
	"github.com/klingon-exchange/pqchain/internal/utxo"
)

// Record is one stored key pair. Mnemonic is populated only by
// CreateWallet, at the moment of creation — it is never persisted, so a
// caller must record it immediately if they want a backup phrase.
type Record struct {
	PublicKey  string
	PrivateKey string
	Alias      string
	Mnemonic   string
}

// Store persists wallet key material, keyed by alias and public key.
type Store interface {
	SaveWallet(publicKey, privateKey, alias string) (bool, error)
	GetPrivateKeyByAlias(alias string) (string, bool, error)
	GetPublicKeyByAlias(alias string) (string, bool, error)
}

// Manager is the wallet collaborator bound to a signature scheme, key
// store, UTXO Store, and the ledger it spends against.
type Manager struct {
	scheme    pqc.Scheme
	store     Store
	utxoStore *utxo.Store
	ledger    *ledger.Ledger
}

// New constructs a Manager.
func New(scheme pqc.Scheme, store Store, utxoStore *utxo.Store, l *ledger.Ledger) *Manager {
	return &Manager{scheme: scheme, store: store, utxoStore: utxoStore, ledger: l}
}

// CreateWallet generates a fresh key pair, backed by a freshly generated
// BIP-39 mnemonic so the resulting key material can be reproduced from a
// recorded backup phrase, and persists the key pair under alias.
func (m *Manager) CreateWallet(alias string) (Record, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return Record{}, fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Record{}, fmt.Errorf("generate mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")

	pub, priv := m.scheme.GenerateKeyPairFromSeed(seed)
	ok, err := m.store.SaveWallet(pub, priv, alias)
	if err != nil {
		return Record{}, fmt.Errorf("save wallet: %w", err)
	}
	if !ok {
		return Record{}, fmt.Errorf("wallet alias %q already exists", alias)
	}
	return Record{PublicKey: pub, PrivateKey: priv, Alias: alias, Mnemonic: mnemonic}, nil
}

// Balance sums the unspent outputs owned by a public key.
func (m *Manager) Balance(publicKey string) (amount.Amount, error) {
	records, err := m.utxoStore.GetUnspentByAddress(publicKey)
	if err != nil {
		return amount.Zero, fmt.Errorf("get unspent: %w", err)
	}
	total := amount.Zero
	for _, r := range records {
		total = total.Add(r.Amount)
	}
	return total, nil
}

// BalanceByAlias resolves an alias to a public key and returns its balance.
func (m *Manager) BalanceByAlias(alias string) (amount.Amount, bool, error) {
	pub, ok, err := m.store.GetPublicKeyByAlias(alias)
	if err != nil {
		return amount.Zero, false, fmt.Errorf("resolve alias: %w", err)
	}
	if !ok {
		return amount.Zero, false, nil
	}
	bal, err := m.Balance(pub)
	return bal, true, err
}

// CreateTransaction builds and signs a transaction spending senderAlias's
// funds to recipientPubKey, selecting UTXOs largest-amount-first until the
// requested amount plus fee is covered, appending a change output back to
// the sender when the selection overshoots (spec §4, grounded in
// wallet_manager.py's create_transaction).
func (m *Manager) CreateTransaction(senderAlias, recipientPubKey string, amt, fee amount.Amount) (chainmodel.Transaction, error) {
	senderPub, ok, err := m.store.GetPublicKeyByAlias(senderAlias)
	if err != nil {
		return chainmodel.Transaction{}, fmt.Errorf("resolve sender alias: %w", err)
	}
	if !ok {
		return chainmodel.Transaction{}, fmt.Errorf("unknown sender alias %q", senderAlias)
	}
	senderPriv, ok, err := m.store.GetPrivateKeyByAlias(senderAlias)
	if err != nil {
		return chainmodel.Transaction{}, fmt.Errorf("load sender private key: %w", err)
	}
	if !ok {
		return chainmodel.Transaction{}, fmt.Errorf("no private key for alias %q", senderAlias)
	}

	utxos, err := m.utxoStore.GetUnspentByAddress(senderPub)
	if err != nil {
		return chainmodel.Transaction{}, fmt.Errorf("get unspent: %w", err)
	}

	required := amt.Add(fee)
	balance := amount.Zero
	for _, u := range utxos {
		balance = balance.Add(u.Amount)
	}
	if balance.LessThan(required) {
		return chainmodel.Transaction{}, fmt.Errorf("insufficient funds: %s < %s", balance, required)
	}

	sort.Slice(utxos, func(i, j int) bool {
		return utxos[j].Amount.LessThan(utxos[i].Amount)
	})

	var selected []utxo.Record
	currentSum := amount.Zero
	for _, u := range utxos {
		selected = append(selected, u)
		currentSum = currentSum.Add(u.Amount)
		if currentSum.GreaterThanOrEqual(required) {
			break
		}
	}

	inputs := make([]chainmodel.TxInput, len(selected))
	for i, u := range selected {
		inputs[i] = chainmodel.TxInput{TxID: u.TxID, OutputIndex: u.OutputIndex, PubKey: senderPub}
	}

	outputs := []chainmodel.TxOutput{{Amount: amt, Address: recipientPubKey}}
	change := currentSum.Sub(required)
	if !change.IsZero() && !change.IsNegative() {
		outputs = append(outputs, chainmodel.TxOutput{Amount: change, Address: senderPub})
	}

	tx, err := chainmodel.NewTransaction(inputs, outputs, 0)
	if err != nil {
		return chainmodel.Transaction{}, fmt.Errorf("build transaction: %w", err)
	}

	for i := range tx.Inputs {
		if err := tx.SignInput(i, m.scheme, senderPriv); err != nil {
			return chainmodel.Transaction{}, fmt.Errorf("sign input %d: %w", i, err)
		}
	}

	return tx, nil
}
