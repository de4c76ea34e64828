package storage

import (
	"time"
)

// PeerRecord is a known gossip peer (spec §6.4's peers table). Reputation
// is carried but not yet consumed by any scoring logic — the original
// implementation never read it back either; it exists so a future
// misbehavior-scoring pass has somewhere to write.
type PeerRecord struct {
	Address    string
	LastSeen   time.Time
	Reputation int
}

// SavePeer registers a peer or refreshes its last-seen time if already
// known. Reputation is left untouched on conflict.
func (s *Store) SavePeer(address string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := float64(seenAt.UnixNano()) / 1e9
	_, err := s.db.Exec(`
		INSERT INTO peers (address, last_seen) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET last_seen = excluded.last_seen
	`, address, ts)
	return err
}

// ListPeers returns every known peer address.
func (s *Store) ListPeers() ([]PeerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT address, last_seen, reputation FROM peers")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []PeerRecord
	for rows.Next() {
		var p PeerRecord
		var lastSeen float64
		if err := rows.Scan(&p.Address, &lastSeen, &p.Reputation); err != nil {
			return nil, err
		}
		p.LastSeen = time.Unix(0, int64(lastSeen*1e9))
		peers = append(peers, p)
	}
	return peers, rows.Err()
}

// ListAddresses is a convenience wrapper returning just peer addresses,
// matching the shape the original's P2PNetwork._initialize_peers consumes.
func (s *Store) ListAddresses() ([]string, error) {
	peers, err := s.ListPeers()
	if err != nil {
		return nil, err
	}
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = p.Address
	}
	return addrs, nil
}
