package order

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

type fakeSubmitter struct {
	submitted int
	fail      error
}

func (f *fakeSubmitter) EncodeSubmitLimitOrder(intent cryptoutil.LimitOrderIntent, signature []byte, hashlock cryptoutil.Hash, timelock time.Time, value *big.Int) (chainadapter.UnsignedTx, error) {
	return chainadapter.UnsignedTx{Chain: chainadapter.ChainEvm}, nil
}

func (f *fakeSubmitter) SubmitTx(ctx context.Context, tx chainadapter.UnsignedTx, signer chainadapter.SignerKeyRef) (chainadapter.TxID, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.submitted++
	return "0xsubmitted", nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeSubmitter, *ecdsaKeyFixture) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "orders"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	maker := crypto.PubkeyToAddress(key.PublicKey)
	domain := cryptoutil.BridgeDomain(big.NewInt(11155111), common.HexToAddress("0xResolver00000000000000000000000000000001"))

	sub := &fakeSubmitter{}
	log := zap.NewNop().Sugar()
	engine := NewEngine(NewStore(db), sub, "relayer-key", domain, log)
	return engine, sub, &ecdsaKeyFixture{key: key, maker: maker, domain: domain}
}

type ecdsaKeyFixture struct {
	key    *ecdsa.PrivateKey
	maker  common.Address
	domain cryptoutil.Domain
}

func (k *ecdsaKeyFixture) sign(intent Intent) []byte {
	signer := cryptoutil.NewSigner(k.domain)
	hash, err := signer.HashIntent(intent.eip712())
	if err != nil {
		panic(err)
	}
	sig, err := cryptoutil.SignIntent(hash, hex.EncodeToString(crypto.FromECDSA(k.key)))
	if err != nil {
		panic(err)
	}
	return sig
}

func validIntent(maker common.Address, domain cryptoutil.Domain) Intent {
	now := time.Now().UTC()
	return Intent{
		Maker:             maker,
		MakerToken:        common.Address{},
		TakerToken:        common.Address{},
		MakerAmount:       big.NewInt(1_000_000_000_000_000),
		TakerAmount:       big.NewInt(2_000_000),
		Deadline:          now.Add(20 * time.Hour),
		AlgorandChainID:   domain.ChainID,
		AlgorandAddress:   "ALGORANDADDRESSXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX",
		Salt:              big.NewInt(42),
		AllowPartialFills: false,
		MinPartialFill:    big.NewInt(0),
	}
}

func TestSubmitIntentRejectsShortTimelock(t *testing.T) {
	engine, _, fix := newTestEngine(t)
	intent := validIntent(fix.maker, fix.domain)
	hashlock := cryptoutil.Keccak256([]byte("secret"))

	sig := fix.sign(intent)
	_, err := engine.SubmitIntent(context.Background(), intent, sig, hashlock, time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected timelock-too-short error")
	}
}

func TestSubmitIntentRejectsBelowMinValue(t *testing.T) {
	engine, _, fix := newTestEngine(t)
	intent := validIntent(fix.maker, fix.domain)
	intent.MakerAmount = big.NewInt(1)
	hashlock := cryptoutil.Keccak256([]byte("secret"))

	sig := fix.sign(intent)
	_, err := engine.SubmitIntent(context.Background(), intent, sig, hashlock, intent.Deadline.Add(30*time.Hour))
	if err == nil {
		t.Fatal("expected insufficient-value error")
	}
}
