// Package cryptoutil implements CryptoPrimitives: secret generation,
// hashing, EIP-712 typed-data signing, and timelock arithmetic for the
// cross-chain swap relayer. Stateless and side-effect free.
package cryptoutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SecretSize is the fixed width of an HTLC preimage and its hashlock.
const SecretSize = 32

// Secret is a 32-byte HTLC preimage. Represented as a fixed-size array
// internally per §9 — hex only at the I/O boundary.
type Secret [SecretSize]byte

// Hash is a 32-byte digest (hashlock, order hash, block hash, ...).
type Hash [SecretSize]byte

// RandomSecret generates a cryptographically secure 32-byte preimage.
func RandomSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("generate secret: %w", err)
	}
	return s, nil
}

// Keccak256 hashes b with the EVM-compatible Keccak-256 function.
//
// This is the hash the protocol standardizes on for hashlocks (§4.1):
// the Algorand contract must be deployed to match, never sha256. A
// hashlock produced with Keccak256 on one chain and SHA256 on the other
// is a protocol error (§8 invariant 3), not a recoverable condition.
func Keccak256(b []byte) Hash {
	return Hash(crypto.Keccak256Hash(b))
}

// SHA256 is exposed only for interop with legacy deployments that must be
// detected and rejected (§4.1) — never used to compute a hashlock this
// relayer creates itself.
func SHA256(b []byte) Hash {
	return sha256.Sum256(b)
}

// HashlockFor computes the canonical hashlock for a secret.
func HashlockFor(s Secret) Hash {
	return Keccak256(s[:])
}

// VerifyPreimage reports whether secret hashes to hashlock under the
// canonical (Keccak256) convention.
func VerifyPreimage(secret Secret, hashlock Hash) bool {
	return HashlockFor(secret) == hashlock
}

func (s Secret) String() string { return fmt.Sprintf("0x%x", s[:]) }
func (h Hash) String() string   { return fmt.Sprintf("0x%x", h[:]) }

// Bytes returns a copy of the underlying bytes.
func (s Secret) Bytes() []byte { return append([]byte(nil), s[:]...) }
func (h Hash) Bytes() []byte   { return append([]byte(nil), h[:]...) }

// SecretFromHex parses a 0x-prefixed or bare hex string into a Secret.
func SecretFromHex(hexStr string) (Secret, error) {
	b, err := decodeHex(hexStr, SecretSize)
	if err != nil {
		return Secret{}, err
	}
	var s Secret
	copy(s[:], b)
	return s, nil
}

// HashFromHex parses a 0x-prefixed or bare hex string into a Hash.
func HashFromHex(hexStr string) (Hash, error) {
	b, err := decodeHex(hexStr, SecretSize)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

func decodeHex(s string, want int) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	if len(b) != want {
		return nil, fmt.Errorf("expected %d bytes, got %d", want, len(b))
	}
	return b, nil
}
