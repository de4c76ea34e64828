// Package httpapi is the plain-REST adapter over the ledger core (spec
// §6.1): a thin layer translating HTTP requests into calls against
// ledger.Ledger, miner.Miner, gossip.Network, and wallet.Manager, and
// their results back into the documented JSON shapes. It carries no
// consensus logic of its own.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/klingon-exchange/pqchain/internal/gossip"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/miner"
	"github.com/klingon-exchange/pqchain/internal/wallet"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

// Server is the node's HTTP surface.
type Server struct {
	ledger  *ledger.Ledger
	miner   *miner.Miner
	gossip  *gossip.Network
	wallets *wallet.Manager
	log     *logging.Logger

	server   *http.Server
	listener net.Listener
}

// New constructs a Server bound to the node's collaborators.
func New(l *ledger.Ledger, m *miner.Miner, g *gossip.Network, w *wallet.Manager, log *logging.Logger) *Server {
	return &Server{
		ledger:  l,
		miner:   m,
		gossip:  g,
		wallets: w,
		log:     log.Component("httpapi"),
	}
}

// Start binds addr and begins serving the routes spec §6.1 documents.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("GET /mine", s.handleMine)
	mux.HandleFunc("GET /chain", s.handleChain)
	mux.HandleFunc("POST /transactions/create", s.handleTransactionsCreate)
	mux.HandleFunc("POST /transactions/receive", s.handleTransactionsReceive)
	mux.HandleFunc("POST /block/receive", s.handleBlockReceive)
	mux.HandleFunc("POST /peers/register", s.handlePeersRegister)
	mux.HandleFunc("GET /wallets/{alias}/balance", s.handleWalletBalance)
	mux.HandleFunc("OPTIONS /", s.handleCORS)

	s.server = &http.Server{
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server error", "error", err)
		}
	}()

	s.log.Info("http api started", "addr", addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
