package gossip

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/pqchain/internal/chainmodel"
)

func TestResolveConflictsIgnoresShorterChain(t *testing.T) {
	n := newTestNetwork(t, "http://localhost:5000", nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chainResponse{Length: 0, Chain: nil})
	}))
	defer server.Close()
	require.True(t, n.RegisterPeer(server.URL))

	replaced := n.ResolveConflicts(context.Background())
	assert.False(t, replaced)
}

func TestResolveConflictsIgnoresStructurallyInvalidChain(t *testing.T) {
	n := newTestNetwork(t, "http://localhost:5000", nil)

	badBlock, err := chainmodel.NewBlock(1, nil, "nonsense-previous-hash", 0, 1000)
	require.NoError(t, err)
	longerButInvalid := append(n.ledger.Chain(), badBlock)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chainResponse{Length: len(longerButInvalid), Chain: longerButInvalid})
	}))
	defer server.Close()
	require.True(t, n.RegisterPeer(server.URL))

	before := n.ledger.Chain()
	replaced := n.ResolveConflicts(context.Background())
	assert.False(t, replaced)
	assert.Equal(t, before, n.ledger.Chain())
}

func TestResolveConflictsToleratesUnreachablePeer(t *testing.T) {
	n := newTestNetwork(t, "http://localhost:5000", nil)
	require.True(t, n.RegisterPeer("http://127.0.0.1:1"))

	assert.NotPanics(t, func() {
		n.ResolveConflicts(context.Background())
	})
}

func TestResolveConflictsNoPeersReturnsFalse(t *testing.T) {
	n := newTestNetwork(t, "http://localhost:5000", nil)

	assert.False(t, n.ResolveConflicts(context.Background()))
}
