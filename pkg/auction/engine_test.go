package auction

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/order"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

type allowAll struct{}

func (allowAll) IsAuthorized(common.Address) bool { return true }

type fakeExecutor struct {
	calls int
}

func (f *fakeExecutor) OnBidSelected(ctx context.Context, orderHash cryptoutil.Hash, bid Bid, secret cryptoutil.Secret) error {
	f.calls++
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *order.Store, *fakeExecutor) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "auction"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	orders := order.NewStore(db)
	bids := NewStore(db)
	exec := &fakeExecutor{}
	log := zap.NewNop().Sugar()
	return NewEngine(orders, bids, allowAll{}, exec, log), orders, exec
}

func seedOrder(t *testing.T, orders *order.Store, hash cryptoutil.Hash, makerAmount *big.Int, allowPartial bool) {
	t.Helper()
	o := &order.Order{
		OrderHash: hash,
		Intent: order.Intent{
			Maker:             common.HexToAddress("0xMaker0000000000000000000000000000000001"),
			MakerAmount:       makerAmount,
			Deadline:          time.Now().UTC().Add(48 * time.Hour),
			AllowPartialFills: allowPartial,
			MinPartialFill:    big.NewInt(1_000),
		},
		FilledAmount:    big.NewInt(0),
		RemainingAmount: new(big.Int).Set(makerAmount),
		InFlightAmount:  big.NewInt(0),
		State:           order.StateOpen,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := orders.Save(o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestPlaceBidOpensAuctionWindow(t *testing.T) {
	engine, orders, _ := newTestEngine(t)
	hash := cryptoutil.Keccak256([]byte("order-a"))
	seedOrder(t, orders, hash, big.NewInt(1_000_000), false)

	bid := Bid{
		BidID:        "b1",
		OrderHash:    hash,
		Resolver:     common.HexToAddress("0xResolver000000000000000000000000000001"),
		InputAmount:  big.NewInt(1_000_000),
		OutputAmount: big.NewInt(2_000_000),
		GasEstimate:  big.NewInt(21000),
		PlacedAt:     time.Now().UTC(),
	}
	if err := engine.PlaceBid(bid); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	o, found, err := orders.Get(hash)
	if err != nil || !found {
		t.Fatalf("reload order: found=%v err=%v", found, err)
	}
	if o.State != order.StateBidding {
		t.Fatalf("expected StateBidding, got %s", o.State)
	}
}

func TestPlaceBidRejectsFullFillMismatchWhenPartialDisabled(t *testing.T) {
	engine, orders, _ := newTestEngine(t)
	hash := cryptoutil.Keccak256([]byte("order-b"))
	seedOrder(t, orders, hash, big.NewInt(1_000_000), false)

	bid := Bid{
		BidID:        "b1",
		OrderHash:    hash,
		Resolver:     common.HexToAddress("0xResolver000000000000000000000000000001"),
		InputAmount:  big.NewInt(500_000),
		OutputAmount: big.NewInt(1_000_000),
		GasEstimate:  big.NewInt(21000),
		PlacedAt:     time.Now().UTC(),
	}
	if err := engine.PlaceBid(bid); err != ErrPartialFillDisabled {
		t.Fatalf("expected ErrPartialFillDisabled, got %v", err)
	}
}

func TestBestBidRanksByCrossMultipliedPrice(t *testing.T) {
	engine, orders, _ := newTestEngine(t)
	hash := cryptoutil.Keccak256([]byte("order-c"))
	seedOrder(t, orders, hash, big.NewInt(1_000_000), true)

	worse := Bid{
		BidID: "worse", OrderHash: hash,
		Resolver:     common.HexToAddress("0xResolver000000000000000000000000000001"),
		InputAmount:  big.NewInt(1_000_000),
		OutputAmount: big.NewInt(1_900_000),
		GasEstimate:  big.NewInt(21000),
		PlacedAt:     time.Now().UTC(),
	}
	better := Bid{
		BidID: "better", OrderHash: hash,
		Resolver:     common.HexToAddress("0xResolver000000000000000000000000000002"),
		InputAmount:  big.NewInt(1_000_000),
		OutputAmount: big.NewInt(2_000_000),
		GasEstimate:  big.NewInt(21000),
		PlacedAt:     time.Now().UTC().Add(time.Second),
	}
	if err := engine.PlaceBid(worse); err != nil {
		t.Fatalf("place worse bid: %v", err)
	}
	if err := engine.PlaceBid(better); err != nil {
		t.Fatalf("place better bid: %v", err)
	}

	best, err := engine.BestBid(hash)
	if err != nil {
		t.Fatalf("best bid: %v", err)
	}
	if best.BidID != "better" {
		t.Fatalf("expected better bid to win, got %s", best.BidID)
	}
}

func TestSelectAndExecuteTransitionsOrderAndDrivesExecutor(t *testing.T) {
	engine, orders, exec := newTestEngine(t)
	hash := cryptoutil.Keccak256([]byte("order-d"))
	seedOrder(t, orders, hash, big.NewInt(1_000_000), false)

	bid := Bid{
		BidID:        "b1",
		OrderHash:    hash,
		Resolver:     common.HexToAddress("0xResolver000000000000000000000000000001"),
		InputAmount:  big.NewInt(1_000_000),
		OutputAmount: big.NewInt(2_000_000),
		GasEstimate:  big.NewInt(21000),
		PlacedAt:     time.Now().UTC(),
	}
	if err := engine.PlaceBid(bid); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	secret, _ := cryptoutil.RandomSecret()
	if err := engine.SelectAndExecute(context.Background(), hash, "b1", secret); err != nil {
		t.Fatalf("select and execute: %v", err)
	}
	if exec.calls != 1 {
		t.Fatalf("expected executor to be invoked once, got %d", exec.calls)
	}

	o, _, err := orders.Get(hash)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if o.State != order.StateSelected {
		t.Fatalf("expected StateSelected, got %s", o.State)
	}
	if o.RemainingAmount.Sign() != 0 {
		t.Fatalf("expected remaining amount zero after full fill, got %s", o.RemainingAmount)
	}
}
