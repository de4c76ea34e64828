// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"crypto/rand"
	"crypto/subtle"
	"strings"
)

// ZeroHash128 is the 128-hex-character all-zero sentinel used for the
// genesis previous-hash and coinbase input txid.
const ZeroHash128 = "00000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"

// CoinbaseTag is the literal signature value stored on a coinbase input.
const CoinbaseTag = "COINBASE"

// GenerateSecureRandom generates n cryptographically secure random bytes.
func GenerateSecureRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ConstantTimeCompare compares two byte slices in constant time.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// CountLeadingZeroHex returns the number of leading '0' characters in s.
func CountLeadingZeroHex(s string) int {
	n := 0
	for n < len(s) && s[n] == '0' {
		n++
	}
	return n
}

// HasLeadingZeroHex reports whether s has at least n leading '0' characters.
func HasLeadingZeroHex(s string, n int) bool {
	if n <= 0 {
		return true
	}
	return len(s) >= n && strings.Count(s[:n], "0") == n
}
