package pqc

import (
	"fmt"
	"strings"

	"github.com/klingon-exchange/pqchain/pkg/helpers"
)

// Scheme describes a post-quantum signature scheme's size profile. The
// ledger core only ever touches Sign/Verify through this seam; a real
// liboqs/Dilithium binding would implement the same three methods with
// genuinely asymmetric math instead of the deterministic mock below.
type Scheme struct {
	Name            string
	KeySizeKB       float64
	SignatureSizeKB float64
	SecurityLevel   int
}

// Dilithium3 returns the scheme profile for CRYSTALS-Dilithium-3, the only
// scheme this prototype recognizes (§6.5 PQC_SCHEME_NAME).
func Dilithium3() Scheme {
	return Scheme{
		Name:            "CRYSTALS-Dilithium-3",
		KeySizeKB:       2.7,
		SignatureSizeKB: 3.3,
		SecurityLevel:   3,
	}
}

// ResolveScheme maps a configured scheme name to its profile. An unknown
// name is a fatal ConfigError at startup (spec §7).
func ResolveScheme(name string) (Scheme, error) {
	if name == "CRYSTALS-Dilithium-3" {
		return Dilithium3(), nil
	}
	return Scheme{}, fmt.Errorf("unknown PQC scheme: %q", name)
}

func (s Scheme) pubKeyHexLen() int  { return int(s.KeySizeKB * 2 * 1024) }
func (s Scheme) privKeyHexLen() int { return int(s.KeySizeKB * 4 * 1024) }
func (s Scheme) sigHexLen() int     { return int(s.SignatureSizeKB * 2 * 1024) }

// repeatHexTo repeats digest until it is at least n hex characters, then
// truncates to exactly n. sha3-512 hex digests are 128 chars; scheme key
// and signature sizes are kilobytes, so this mirrors the original mock's
// "hash * 100, truncate to length" construction.
func repeatHexTo(digest string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for b.Len() < n {
		b.WriteString(digest)
	}
	return b.String()[:n]
}

// GenerateKeyPair produces size-accurate mock key material from fresh
// randomness. The keys carry no real asymmetric relationship — Verify
// below never needs one, since the core only ever asks for structural
// validity at its boundary (spec §4.1).
func (s Scheme) GenerateKeyPair() (pubKey, privKey string, err error) {
	seed, err := helpers.GenerateSecureRandom(64)
	if err != nil {
		return "", "", fmt.Errorf("generate seed: %w", err)
	}
	pub, priv := s.GenerateKeyPairFromSeed(seed)
	return pub, priv, nil
}

// GenerateKeyPairFromSeed deterministically derives a key pair from
// arbitrary seed bytes — e.g. a BIP-39 mnemonic's derived entropy — so a
// wallet can be recreated from a backup phrase.
func (s Scheme) GenerateKeyPairFromSeed(seed []byte) (pubKey, privKey string) {
	pubSeed := HashBytes(append([]byte("pub"), seed...))
	privSeed := HashBytes(append([]byte("priv"), seed...))

	pub := repeatHexTo(pubSeed, s.pubKeyHexLen())
	priv := repeatHexTo(privSeed, s.privKeyHexLen())
	return pub, priv
}

// Sign deterministically derives a size-accurate mock signature from the
// private key and a data digest (the transaction's txid, per spec §4.1).
func (s Scheme) Sign(privKey, dataHash string) string {
	prefix := privKey
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	digest := HashString(prefix + dataHash)
	return repeatHexTo(digest, s.sigHexLen())
}

// Verify performs the structural check the ledger core requires at its
// boundary: non-empty key material, a non-empty signature, and a signature
// length matching this scheme's profile. It does not perform real
// asymmetric verification — that is the documented limitation of standing
// in for CRYSTALS-Dilithium-3 with a mock (spec §1, §9).
func (s Scheme) Verify(pubKey, dataHash, signature string) bool {
	if pubKey == "" || signature == "" {
		return false
	}
	return len(signature) == s.sigHexLen()
}
