package relayer

import (
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/htlc"
	"github.com/relayerlabs/swaprelay/pkg/order"
	"github.com/relayerlabs/swaprelay/pkg/storage"
	"github.com/relayerlabs/swaprelay/pkg/util"
)

// fakeClock is a manually-advanced util.Clock, letting expiry tests
// simulate an elapsed timelock without a real sleep.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubAdapter satisfies chainadapter.Adapter with no-op behavior, enough
// to drive HtlcStateMachine.OnTimelockExpired through a refund encode and
// submit.
type stubAdapter struct {
	chain chainadapter.Chain
}

func (s *stubAdapter) Chain() chainadapter.Chain { return s.chain }
func (s *stubAdapter) GetHeight(ctx context.Context) (uint64, error) { return 0, nil }
func (s *stubAdapter) GetBalance(ctx context.Context, account string) (*big.Int, error) {
	return big.NewInt(0), nil
}
func (s *stubAdapter) SubmitTx(ctx context.Context, tx chainadapter.UnsignedTx, signer chainadapter.SignerKeyRef) (chainadapter.TxID, error) {
	return chainadapter.TxID("refund-tx"), nil
}
func (s *stubAdapter) WaitForConfirmation(ctx context.Context, txID chainadapter.TxID, minConfirmations uint64) (chainadapter.Receipt, error) {
	return chainadapter.Receipt{TxID: txID, Chain: s.chain, Success: true}, nil
}
func (s *stubAdapter) SubscribeEvents(ctx context.Context, fromBlock uint64, filter chainadapter.EventFilter) (chainadapter.Subscription, error) {
	return nil, nil
}
func (s *stubAdapter) EstimateFee(ctx context.Context, shape chainadapter.TxShape) (chainadapter.Fee, error) {
	return chainadapter.Fee{Chain: s.chain, Amount: big.NewInt(1)}, nil
}
func (s *stubAdapter) EncodeHTLCCreate(hashlock cryptoutil.Hash, timelock time.Time, amount *big.Int, recipient string, aux map[string]string) (chainadapter.UnsignedTx, error) {
	return chainadapter.UnsignedTx{Chain: s.chain}, nil
}
func (s *stubAdapter) EncodeHTLCClaim(ref chainadapter.HTLCRef, secret cryptoutil.Secret) (chainadapter.UnsignedTx, error) {
	return chainadapter.UnsignedTx{Chain: s.chain}, nil
}
func (s *stubAdapter) EncodeHTLCRefund(ref chainadapter.HTLCRef) (chainadapter.UnsignedTx, error) {
	return chainadapter.UnsignedTx{Chain: s.chain}, nil
}
func (s *stubAdapter) GetRevealedSecret(ctx context.Context, orderHash cryptoutil.Hash) (cryptoutil.Secret, bool, error) {
	return cryptoutil.Secret{}, false, nil
}
func (s *stubAdapter) EncodeSubmitLimitOrder(intent cryptoutil.LimitOrderIntent, signature []byte, hashlock cryptoutil.Hash, timelock time.Time, value *big.Int) (chainadapter.UnsignedTx, error) {
	return chainadapter.UnsignedTx{Chain: s.chain}, nil
}

func newTestRelayer(t *testing.T, clock util.Clock) (*Relayer, correlation.Store) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "relayer"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	orders := order.NewStore(db)
	corr := correlation.NewPebbleStore(db)
	bids := auction.NewStore(db)
	log := zap.NewNop().Sugar()

	evm := &stubAdapter{chain: chainadapter.ChainEvm}
	algo := &stubAdapter{chain: chainadapter.ChainAlgo}

	machine := htlc.NewMachine(evm, algo, corr, orders, bids, "relayer-evm", "relayer-algo", log)
	orderEng := order.NewEngine(orders, evm, "relayer-evm", cryptoutil.BridgeDomain(big.NewInt(11155111), common.Address{}), log)
	auctionEng := auction.NewEngine(orders, bids, auction.OpenWhitelist{}, machine, log)

	r := New(evm, algo, corr, orders, orderEng, auctionEng, machine, log).WithClock(clock)
	return r, corr
}

func TestCheckExpirationsTriggersRefundAfterTimelockElapses(t *testing.T) {
	clock := &fakeClock{now: time.Now().UTC()}
	r, corr := newTestRelayer(t, clock)

	hash := cryptoutil.Keccak256([]byte("expiry-order"))
	secret, _ := cryptoutil.RandomSecret()
	hashlock := cryptoutil.HashlockFor(secret)

	evmLeg := &correlation.HtlcLeg{
		Chain:    chainadapter.ChainEvm,
		HTLCID:   "evm-1",
		Hashlock: hashlock,
		Amount:   big.NewInt(1_000_000),
		State:    correlation.LegLocked,
		Timelock: clock.Now().Add(time.Hour),
	}
	algoLeg := &correlation.HtlcLeg{
		Chain:    chainadapter.ChainAlgo,
		HTLCID:   "algo-1",
		Hashlock: hashlock,
		Amount:   big.NewInt(2_000_000),
		State:    correlation.LegLocked,
		Timelock: clock.Now().Add(30 * time.Minute),
	}
	if err := corr.PutMapping(hash, "bid-1", evmLeg, algoLeg); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}
	if err := corr.SetState(hash, "bid-1", correlation.SwapBothLocked); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	// Not yet past either timelock: no transition should happen.
	r.checkExpirations(context.Background())
	rec, _, err := corr.LookupByOrder(hash, "bid-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.SwapState != correlation.SwapBothLocked {
		t.Fatalf("expected no transition before expiry, got %s", rec.SwapState)
	}

	// Past the destination (Algorand) leg's timelock, which expires first.
	clock.advance(31 * time.Minute)
	r.checkExpirations(context.Background())

	rec, _, err = corr.LookupByOrder(hash, "bid-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.SwapState == correlation.SwapBothLocked {
		t.Fatalf("expected a refund transition after timelock elapsed, got %s", rec.SwapState)
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()
	var seq []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	record := func(label string) {
		mu.Lock()
		seq = append(seq, label)
		mu.Unlock()
	}

	wg.Add(2)
	start := make(chan struct{})
	go func() {
		defer wg.Done()
		<-start
		locks.With("order-a", func() {
			record("a1")
			record("a2")
		})
	}()
	go func() {
		defer wg.Done()
		<-start
		locks.With("order-a", func() {
			record("a3")
			record("a4")
		})
	}()
	close(start)
	wg.Wait()

	if len(seq) != 4 {
		t.Fatalf("expected 4 recorded steps, got %d", len(seq))
	}
	// Each goroutine's two steps for the same key must stay adjacent.
	pairs := map[string]bool{}
	for i := 0; i+1 < len(seq); i += 2 {
		pairs[seq[i]+seq[i+1]] = true
	}
	if !pairs["a1a2"] || !pairs["a3a4"] {
		t.Fatalf("expected interleavings to preserve per-goroutine ordering, got %v", seq)
	}
}

func TestEventQueueFansInBothChains(t *testing.T) {
	log := zap.NewNop().Sugar()
	q := newEventQueue(log)

	evmSub := newFakeSubscription()
	algoSub := newFakeSubscription()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go q.pump(ctx, chainadapter.ChainEvm, evmSub)
	go q.pump(ctx, chainadapter.ChainAlgo, algoSub)

	evmSub.send(chainadapter.Event{OrderHash: cryptoutil.Keccak256([]byte("e"))})
	algoSub.send(chainadapter.Event{OrderHash: cryptoutil.Keccak256([]byte("a"))})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-q.events:
			seen[ev.OrderHash.String()] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fanned-in event")
		}
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct events, got %d", len(seen))
	}
}

type fakeSubscription struct {
	events chan chainadapter.Event
	errs   chan error
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		events: make(chan chainadapter.Event, 8),
		errs:   make(chan error, 1),
	}
}

func (s *fakeSubscription) Events() <-chan chainadapter.Event { return s.events }
func (s *fakeSubscription) Err() <-chan error                 { return s.errs }
func (s *fakeSubscription) Close() error                      { return nil }
func (s *fakeSubscription) send(ev chainadapter.Event)        { s.events <- ev }
