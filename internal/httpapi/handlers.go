package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/klingon-exchange/pqchain/internal/amount"
	"github.com/klingon-exchange/pqchain/internal/chainmodel"
)

// handleMine runs one mining attempt and returns the newly committed block,
// or the original's "nothing to mine" message (spec §6.1).
func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	block, mined, err := s.miner.MineBlock(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !mined {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No transactions or mining failed"})
		return
	}

	if s.gossip != nil {
		s.gossip.AnnounceBlock(block)
	}
	writeJSON(w, http.StatusOK, block)
}

// handleChain returns the full persisted chain.
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	chain := s.ledger.Chain()
	writeJSON(w, http.StatusOK, map[string]any{
		"length": len(chain),
		"chain":  chain,
	})
}

type createTransactionRequest struct {
	SenderAlias  string  `json:"sender_alias"`
	RecipientKey string  `json:"recipient_pub_key"`
	Amount       float64 `json:"amount"`
	Fee          float64 `json:"fee"`
}

// handleTransactionsCreate builds, signs, and admits a wallet-originated
// transaction, then broadcasts it to peers.
func (s *Server) handleTransactionsCreate(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SenderAlias == "" || req.RecipientKey == "" {
		writeError(w, http.StatusBadRequest, "sender_alias and recipient_pub_key are required")
		return
	}

	tx, err := s.wallets.CreateTransaction(
		req.SenderAlias,
		req.RecipientKey,
		amount.FromFloat64(req.Amount),
		amount.FromFloat64(req.Fee),
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.ledger.AddTransaction(tx) {
		writeError(w, http.StatusBadRequest, "transaction rejected by mempool")
		return
	}

	if s.gossip != nil {
		s.gossip.AnnounceTransaction(tx)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"txid": tx.TxID})
}

// handleTransactionsReceive admits a transaction announced by a peer.
func (s *Server) handleTransactionsReceive(w http.ResponseWriter, r *http.Request) {
	var tx chainmodel.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "malformed transaction")
		return
	}

	if !s.ledger.AddTransaction(tx) {
		writeError(w, http.StatusBadRequest, "transaction rejected")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// handleBlockReceive admits a block announced by a peer (spec §4.5's
// stricter inbound check, not the relaxed foreign-chain validity check).
func (s *Server) handleBlockReceive(w http.ResponseWriter, r *http.Request) {
	var block chainmodel.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		writeError(w, http.StatusBadRequest, "malformed block")
		return
	}

	status := "ignored"
	if s.ledger.AddBlockFromPeer(block) {
		status = "accepted"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type registerPeerRequest struct {
	Address string `json:"address"`
}

// handlePeersRegister adds a gossip peer.
func (s *Server) handlePeersRegister(w http.ResponseWriter, r *http.Request) {
	var req registerPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if s.gossip == nil || !s.gossip.RegisterPeer(req.Address) {
		writeError(w, http.StatusBadRequest, "invalid peer address")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// handleWalletBalance resolves a wallet alias's current UTXO balance.
func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	alias := r.PathValue("alias")
	balance, ok, err := s.wallets.BalanceByAlias(alias)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown wallet alias")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alias":   alias,
		"balance": balance.Float64(),
	})
}
