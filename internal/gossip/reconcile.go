package gossip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/klingon-exchange/pqchain/internal/chainmodel"
	"github.com/klingon-exchange/pqchain/internal/ledger"
)

type chainResponse struct {
	Length int                  `json:"length"`
	Chain  []chainmodel.Block   `json:"chain"`
}

// ResolveConflicts pulls /chain from every known peer, and adopts the
// longest chain that is both longer than our own and structurally valid
// (spec §4.5). It returns true if the local chain was replaced.
func (n *Network) ResolveConflicts(ctx context.Context) bool {
	currentLength := len(n.ledger.Chain())

	var longest []chainmodel.Block
	maxLength := currentLength

	for _, peer := range n.Peers() {
		chain, length, err := n.fetchChain(ctx, peer)
		if err != nil {
			n.log.Warn("error syncing with peer", "peer", peer, "error", err)
			continue
		}
		if length <= maxLength {
			continue
		}
		if !ledger.IsChainValid(chain) {
			n.log.Warn("peer advertised invalid chain", "peer", peer)
			continue
		}
		maxLength = length
		longest = chain
	}

	if longest == nil {
		return false
	}

	if err := n.ledger.ReplaceChain(longest); err != nil {
		n.log.Error("failed to replace chain", "error", err)
		return false
	}
	n.log.Warn("local chain replaced by longer peer chain", "new_length", len(longest))
	return true
}

func (n *Network) fetchChain(ctx context.Context, peer string) ([]chainmodel.Block, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer+"/chain", nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload chainResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	return payload.Chain, payload.Length, nil
}
