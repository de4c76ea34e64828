// Package gossip implements the Gossip & Chain Reconciliation component
// (spec §4.5): peer registration, fire-and-forget broadcast of new blocks
// and transactions, and a periodic background task that pulls the longest
// chain from every known peer and adopts it if it is both longer and
// structurally valid.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledger"
	"github.com/klingon-exchange/pqchain/internal/storage"
	"github.com/klingon-exchange/pqchain/pkg/logging"
)

// Config carries the peer-networking options spec §6.5 exposes.
type Config struct {
	NodeURL        string
	GossipInterval time.Duration
	NetworkTimeout time.Duration
	InitialPeers   []string
}

// Network is the gossip collaborator bound to one ledger.
type Network struct {
	cfg    Config
	ledger *ledger.Ledger
	store  *storage.Store
	log    *logging.Logger
	client *http.Client

	mu    sync.Mutex
	peers map[string]struct{}
}

// New constructs a Network, seeding its peer set from the Block Store's
// persisted peers table plus any InitialPeers from configuration (spec
// §4.5's peer registration/bootstrap).
func New(cfg Config, l *ledger.Ledger, store *storage.Store, log *logging.Logger) (*Network, error) {
	n := &Network{
		cfg:    cfg,
		ledger: l,
		store:  store,
		log:    log.Component("gossip"),
		client: &http.Client{Timeout: cfg.NetworkTimeout},
		peers:  make(map[string]struct{}),
	}

	addrs, err := store.ListAddresses()
	if err != nil {
		return nil, fmt.Errorf("load persisted peers: %w", err)
	}
	for _, a := range addrs {
		if a != cfg.NodeURL {
			n.peers[a] = struct{}{}
		}
	}
	for _, a := range cfg.InitialPeers {
		if a != cfg.NodeURL {
			n.peers[a] = struct{}{}
		}
	}
	return n, nil
}

// RegisterPeer validates and adds a peer address, persisting it. It
// rejects addresses with no host component and this node's own URL.
func (n *Network) RegisterPeer(address string) bool {
	parsed, err := url.Parse(address)
	if err != nil || parsed.Host == "" {
		return false
	}
	peerURL := strings.TrimRight(parsed.String(), "/")
	if peerURL == n.cfg.NodeURL {
		return false
	}

	n.mu.Lock()
	n.peers[peerURL] = struct{}{}
	n.mu.Unlock()

	if err := n.store.SavePeer(peerURL, time.Now()); err != nil {
		n.log.Error("failed to persist peer", "peer", peerURL, "error", err)
	}
	return true
}

// Peers returns a snapshot of the current peer set.
func (n *Network) Peers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.peers))
	for p := range n.peers {
		out = append(out, p)
	}
	return out
}

// broadcast fires one POST per known peer without waiting for or checking
// responses (spec §4.5, §7: PeerError is swallowed during broadcast). Each
// broadcast gets one correlation ID, shared by all of its per-peer attempts,
// so a single broadcast's fan-out can be traced across per-peer log lines; the ID never reaches consensus
// state, it only labels log output.
func (n *Network) broadcast(endpoint string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		n.log.Error("failed to marshal broadcast payload", "error", err)
		return
	}
	correlationID := uuid.NewString()
	for _, peer := range n.Peers() {
		go n.send(peer, endpoint, body, correlationID)
	}
}

func (n *Network) send(peer, endpoint string, body []byte, correlationID string) {
	req, err := http.NewRequest(http.MethodPost, peer+endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Broadcast-ID", correlationID)
	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Debug("broadcast attempt failed", "peer", peer, "endpoint", endpoint, "correlation_id", correlationID, "error", err)
		return
	}
	resp.Body.Close()
}

// AnnounceBlock broadcasts a newly committed block to every peer.
func (n *Network) AnnounceBlock(block chainmodel.Block) {
	n.broadcast("/block/receive", block)
}

// AnnounceTransaction broadcasts a newly admitted transaction to every peer.
func (n *Network) AnnounceTransaction(tx chainmodel.Transaction) {
	n.broadcast("/transactions/receive", tx)
}

// StartReconcileLoop runs ResolveConflicts every GossipInterval until ctx is
// canceled (spec §4.5's periodic longest-chain pull).
func (n *Network) StartReconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.GossipInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.ResolveConflicts(ctx)
			}
		}
	}()
}
