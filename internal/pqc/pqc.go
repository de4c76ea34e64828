// Package pqc provides the hash and signature primitives the ledger core
// treats as an abstract capability (spec §4.1). The signature half is a
// size-accurate mock standing in for CRYSTALS-Dilithium-3 — the repository
// never speaks to a real post-quantum library, it only reproduces the key,
// signature, and verification *shape* a real scheme would have so the rest
// of the stack (serialization, storage column widths, wallet UX) is built
// against realistic sizes.
package pqc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/klingon-exchange/pqchain/pkg/helpers"
)

// HashBytes returns the lowercase hex SHA3-512 digest of raw bytes.
func HashBytes(b []byte) string {
	sum := sha3.Sum512(b)
	return hex.EncodeToString(sum[:])
}

// HashString hashes the UTF-8 encoding of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashCanonical hashes the canonical JSON encoding of a map/slice value.
//
// encoding/json sorts map[string]any keys lexicographically when marshaling,
// which is exactly the consensus rule spec §4.1 requires: two nodes must
// agree on the digest of the same logical value regardless of field
// insertion order. Every canonical identity in the system (txid, block
// hash) is rooted in this one function.
func HashCanonical(v any) (string, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return HashBytes(encoded), nil
}

// MerkleRoot computes the Merkle root over an ordered list of transaction
// ids using the duplicate-last-if-odd rule. An empty list yields the
// all-zero sentinel.
func MerkleRoot(txids []string) string {
	if len(txids) == 0 {
		return helpers.ZeroHash128
	}

	level := make([]string, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, HashString(level[i]+level[i+1]))
		}
		level = next
	}
	return level[0]
}
