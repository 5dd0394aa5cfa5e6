package cryptoutil

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func testIntent(t *testing.T, maker common.Address) *LimitOrderIntent {
	t.Helper()
	return &LimitOrderIntent{
		Maker:             maker,
		MakerToken:        common.HexToAddress("0x0000000000000000000000000000000000000000"),
		TakerToken:        common.HexToAddress("0x0000000000000000000000000000000000000001"),
		MakerAmount:       big.NewInt(1_000_000_000_000_000),
		TakerAmount:       big.NewInt(1_500_000),
		Deadline:          big.NewInt(2_000_000_000),
		AlgorandChainID:   big.NewInt(416002),
		AlgorandAddress:   "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAJ2QWUQ",
		Salt:              big.NewInt(42),
		AllowPartialFills: true,
		MinPartialFill:    big.NewInt(100),
	}
}

func TestHashIntentDeterministic(t *testing.T) {
	domain := BridgeDomain(big.NewInt(11155111), common.HexToAddress("0x00000000000000000000000000000000001234"))
	signer := NewSigner(domain)
	intent := testIntent(t, common.HexToAddress("0x00000000000000000000000000000000005678"))

	h1, err := signer.HashIntent(intent)
	if err != nil {
		t.Fatalf("HashIntent: %v", err)
	}
	h2, err := signer.HashIntent(intent)
	if err != nil {
		t.Fatalf("HashIntent: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash must be deterministic for identical intents")
	}

	intent2 := testIntent(t, intent.Maker)
	intent2.Salt = big.NewInt(43)
	h3, err := signer.HashIntent(intent2)
	if err != nil {
		t.Fatalf("HashIntent: %v", err)
	}
	if h1 == h3 {
		t.Fatalf("changing salt must change the order hash")
	}
}

func TestSignAndVerifyIntent(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	maker := crypto.PubkeyToAddress(key.PublicKey)

	domain := BridgeDomain(big.NewInt(11155111), common.HexToAddress("0x00000000000000000000000000000000001234"))
	signer := NewSigner(domain)
	intent := testIntent(t, maker)

	hash, err := signer.HashIntent(intent)
	if err != nil {
		t.Fatalf("HashIntent: %v", err)
	}

	sig, err := SignIntent(hash, hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("SignIntent: %v", err)
	}

	ok, err := VerifySignature(hash, sig, maker)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify against maker address")
	}

	otherAddr := common.HexToAddress("0x000000000000000000000000000000000000ff")
	ok, err = VerifySignature(hash, sig, otherAddr)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Fatalf("signature must not verify against an unrelated address")
	}
}

