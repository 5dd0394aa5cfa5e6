package cryptoutil

import "testing"

func TestRandomSecretIsUnique(t *testing.T) {
	a, err := RandomSecret()
	if err != nil {
		t.Fatalf("RandomSecret: %v", err)
	}
	b, err := RandomSecret()
	if err != nil {
		t.Fatalf("RandomSecret: %v", err)
	}
	if a == b {
		t.Fatalf("two consecutive secrets collided: %x", a)
	}
}

func TestHashlockRoundTrip(t *testing.T) {
	secret, err := RandomSecret()
	if err != nil {
		t.Fatalf("RandomSecret: %v", err)
	}
	hashlock := HashlockFor(secret)
	if !VerifyPreimage(secret, hashlock) {
		t.Fatalf("VerifyPreimage should accept the matching secret")
	}

	var other Secret
	copy(other[:], secret[:])
	other[0] ^= 0xFF
	if VerifyPreimage(other, hashlock) {
		t.Fatalf("VerifyPreimage should reject a mismatched secret")
	}
}

func TestKeccakVsSHA256Mismatch(t *testing.T) {
	// §4.1: the protocol standardizes on Keccak256; a hashlock computed
	// with SHA256 must not be confused for a valid Keccak256 hashlock.
	secret, _ := RandomSecret()
	k := Keccak256(secret[:])
	s := SHA256(secret[:])
	if k == s {
		t.Fatalf("keccak256 and sha256 digests coincided, test is meaningless")
	}
}

func TestSecretHexRoundTrip(t *testing.T) {
	secret, _ := RandomSecret()
	parsed, err := SecretFromHex(secret.String())
	if err != nil {
		t.Fatalf("SecretFromHex: %v", err)
	}
	if parsed != secret {
		t.Fatalf("round trip mismatch: got %x want %x", parsed, secret)
	}
}

func TestHashFromHexRejectsWrongLength(t *testing.T) {
	if _, err := HashFromHex("0x1234"); err == nil {
		t.Fatalf("expected error for short hex string")
	}
}
