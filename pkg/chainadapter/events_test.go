package chainadapter

import (
	"math/big"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

func mustParseResolverABI(t *testing.T) *EvmAdapter {
	t.Helper()
	parsed, err := parseResolverABI()
	if err != nil {
		t.Fatalf("parse resolver abi: %v", err)
	}
	return &EvmAdapter{abi: parsed}
}

// packEvmLog builds a types.Log the way a real eth_getLogs response would
// shape one: topics[0] is the event selector, the remaining topics are the
// indexed arguments in declaration order, and Data is the ABI-packed
// non-indexed arguments.
func packEvmLog(t *testing.T, a *EvmAdapter, name string, indexed []common.Hash, nonIndexed ...interface{}) ethtypes.Log {
	t.Helper()
	ev, ok := a.abi.Events[name]
	if !ok {
		t.Fatalf("no event %s in resolver abi", name)
	}
	data, err := ev.Inputs.NonIndexed().Pack(nonIndexed...)
	if err != nil {
		t.Fatalf("pack %s non-indexed args: %v", name, err)
	}
	topics := append([]common.Hash{ev.ID}, indexed...)
	return ethtypes.Log{Topics: topics, Data: data}
}

func hashTopic(h cryptoutil.Hash) common.Hash { return common.Hash(h) }
func addrTopic(a common.Address) common.Hash { return common.BytesToHash(a.Bytes()) }

func TestDecodeLogCrossChainOrderCreated(t *testing.T) {
	a := mustParseResolverABI(t)
	orderHash := cryptoutil.Keccak256([]byte("order-created"))
	maker := common.HexToAddress("0xMaker0000000000000000000000000000000001")
	hashlock := cryptoutil.Keccak256([]byte("hashlock"))

	l := packEvmLog(t, a, "CrossChainOrderCreated",
		[]common.Hash{hashTopic(orderHash), addrTopic(maker)},
		[32]byte(hashlock), big.NewInt(1_700_000_000), big.NewInt(5_000_000))

	ev, ok := a.decodeLog(l)
	if !ok {
		t.Fatal("expected CrossChainOrderCreated to decode")
	}
	if ev.Kind != EvtEvmHTLCCreated {
		t.Fatalf("expected EvtEvmHTLCCreated, got %s", ev.Kind)
	}
	if ev.OrderHash != orderHash {
		t.Fatalf("order hash mismatch: %s vs %s", ev.OrderHash, orderHash)
	}
	if ev.HTLCID != orderHash.String() {
		t.Fatalf("expected htlc id to equal order hash, got %s", ev.HTLCID)
	}
	if ev.Amount.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("expected amount 5000000, got %s", ev.Amount)
	}
}

func TestDecodeLogBidPlacedCarriesBidIndexAsBidID(t *testing.T) {
	a := mustParseResolverABI(t)
	orderHash := cryptoutil.Keccak256([]byte("order-bid"))
	resolver := common.HexToAddress("0xResolver000000000000000000000000000001")

	l := packEvmLog(t, a, "BidPlaced",
		[]common.Hash{hashTopic(orderHash), addrTopic(resolver)},
		big.NewInt(3), big.NewInt(1_000_000), big.NewInt(2_000_000), big.NewInt(90_000))

	ev, ok := a.decodeLog(l)
	if !ok {
		t.Fatal("expected BidPlaced to decode")
	}
	if ev.Kind != EvtEvmBidPlaced {
		t.Fatalf("expected EvtEvmBidPlaced, got %s", ev.Kind)
	}
	if ev.Bid == nil || ev.Bid.BidID != "3" {
		t.Fatalf("expected bid id \"3\" from bid index, got %+v", ev.Bid)
	}
	if ev.Bid.Resolver != resolver.Hex() {
		t.Fatalf("expected resolver %s, got %s", resolver.Hex(), ev.Bid.Resolver)
	}
}

func TestDecodeLogBestBidSelectedCarriesBidIndexNoSecret(t *testing.T) {
	a := mustParseResolverABI(t)
	orderHash := cryptoutil.Keccak256([]byte("order-selected"))
	resolver := common.HexToAddress("0xResolver000000000000000000000000000002")

	l := packEvmLog(t, a, "BestBidSelected",
		[]common.Hash{hashTopic(orderHash), addrTopic(resolver)},
		big.NewInt(3))

	ev, ok := a.decodeLog(l)
	if !ok {
		t.Fatal("expected BestBidSelected to decode")
	}
	if ev.Kind != EvtEvmBestBidSelected {
		t.Fatalf("expected EvtEvmBestBidSelected, got %s", ev.Kind)
	}
	if ev.Bid == nil || ev.Bid.BidID != "3" {
		t.Fatalf("expected bid id \"3\", got %+v", ev.Bid)
	}
	if ev.Secret != nil {
		t.Fatal("BestBidSelected carries no secret in its payload by design; the relayer must poll getRevealedSecret")
	}
}

func TestDecodeLogCrossChainSwapExecutedCarriesSecret(t *testing.T) {
	a := mustParseResolverABI(t)
	orderHash := cryptoutil.Keccak256([]byte("order-claimed"))
	secret, err := cryptoutil.RandomSecret()
	if err != nil {
		t.Fatalf("random secret: %v", err)
	}

	l := packEvmLog(t, a, "CrossChainSwapExecuted", []common.Hash{hashTopic(orderHash)}, [32]byte(secret))

	ev, ok := a.decodeLog(l)
	if !ok {
		t.Fatal("expected CrossChainSwapExecuted to decode")
	}
	if ev.Kind != EvtEvmClaimed {
		t.Fatalf("expected EvtEvmClaimed, got %s", ev.Kind)
	}
	if ev.HTLCID != orderHash.String() {
		t.Fatalf("expected htlc id to equal order hash, got %s", ev.HTLCID)
	}
	if ev.Secret == nil || *ev.Secret != secret {
		t.Fatalf("expected decoded secret to match, got %+v", ev.Secret)
	}
}

func TestDecodeLogHTLCRefunded(t *testing.T) {
	a := mustParseResolverABI(t)
	orderHash := cryptoutil.Keccak256([]byte("order-refunded"))

	l := packEvmLog(t, a, "HTLCRefunded", []common.Hash{hashTopic(orderHash)})

	ev, ok := a.decodeLog(l)
	if !ok {
		t.Fatal("expected HTLCRefunded to decode")
	}
	if ev.Kind != EvtEvmRefunded {
		t.Fatalf("expected EvtEvmRefunded, got %s", ev.Kind)
	}
	if ev.HTLCID != orderHash.String() {
		t.Fatalf("expected htlc id to equal order hash, got %s", ev.HTLCID)
	}
}

func TestDecodeLogUnknownEventIsSkipped(t *testing.T) {
	a := mustParseResolverABI(t)
	l := packEvmLog(t, a, "LimitOrderPartiallyFilled",
		[]common.Hash{hashTopic(cryptoutil.Keccak256([]byte("order-fill")))},
		big.NewInt(1), big.NewInt(2))
	l.Topics[0] = common.Hash{} // corrupt the selector so EventByID can't match anything

	if _, ok := a.decodeLog(l); ok {
		t.Fatal("expected an unrecognized selector to be rejected")
	}
}

func TestDecodeAlgoTxnCreateClaimRefund(t *testing.T) {
	hashlock := cryptoutil.Keccak256([]byte("algo-hashlock"))
	secret, err := cryptoutil.RandomSecret()
	if err != nil {
		t.Fatalf("random secret: %v", err)
	}

	create := types.Transaction{Type: types.ApplicationCallTx}
	create.ApplicationArgs = [][]byte{[]byte("create_htlc"), hashlock[:], {0, 0, 0, 0, 0x68, 0x00, 0x00, 0x00}}
	ev, ok := decodeAlgoTxn(create)
	if !ok || ev.Kind != EvtAlgoHTLCCreated {
		t.Fatalf("expected create_htlc to decode as EvtAlgoHTLCCreated, got %+v ok=%v", ev, ok)
	}
	if ev.Hashlock != hashlock {
		t.Fatalf("hashlock mismatch: %s vs %s", ev.Hashlock, hashlock)
	}

	claim := types.Transaction{Type: types.ApplicationCallTx}
	claim.ApplicationArgs = [][]byte{[]byte("claim_htlc"), secret[:]}
	ev, ok = decodeAlgoTxn(claim)
	if !ok || ev.Kind != EvtAlgoHTLCClaimed {
		t.Fatalf("expected claim_htlc to decode as EvtAlgoHTLCClaimed, got %+v ok=%v", ev, ok)
	}
	if ev.Secret == nil || *ev.Secret != secret {
		t.Fatalf("expected decoded secret to match, got %+v", ev.Secret)
	}

	refund := types.Transaction{Type: types.ApplicationCallTx}
	refund.ApplicationArgs = [][]byte{[]byte("refund_htlc"), []byte("htlc-7")}
	ev, ok = decodeAlgoTxn(refund)
	if !ok || ev.Kind != EvtAlgoHTLCRefunded {
		t.Fatalf("expected refund_htlc to decode as EvtAlgoHTLCRefunded, got %+v ok=%v", ev, ok)
	}
	if ev.HTLCID != "htlc-7" {
		t.Fatalf("expected htlc id htlc-7, got %s", ev.HTLCID)
	}

	payment := types.Transaction{Type: types.PaymentTx}
	if _, ok := decodeAlgoTxn(payment); ok {
		t.Fatal("expected a non-application-call transaction to be skipped")
	}
}
