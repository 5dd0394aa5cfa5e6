// Package relayer implements the top-level Relayer process (spec.md
// §4.7): it owns both ChainAdapters, the CorrelationStore, and drives
// OrderEngine / AuctionEngine / HtlcStateMachine off a single ordered
// work queue.
package relayer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/htlc"
	"github.com/relayerlabs/swaprelay/pkg/order"
	"github.com/relayerlabs/swaprelay/pkg/util"
)

// expiryTickInterval is how often the background task checks active
// instances for elapsed timelocks (spec.md §4.7 step 4).
const expiryTickInterval = 30 * time.Second

// Relayer is the top-level process described in spec.md §4.7.
type Relayer struct {
	evm  chainadapter.Adapter
	algo chainadapter.Adapter

	store    correlation.Store
	orders   *order.Store
	orderEng *order.Engine
	auctions *auction.Engine
	machine  *htlc.Machine

	queue  *eventQueue
	locks  *keyedMutex
	clock  util.Clock

	log *zap.SugaredLogger

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopped  chan struct{}
}

func New(evm, algo chainadapter.Adapter, store correlation.Store, orders *order.Store, orderEng *order.Engine, auctions *auction.Engine, machine *htlc.Machine, log *zap.SugaredLogger) *Relayer {
	return &Relayer{
		evm: evm, algo: algo,
		store: store, orders: orders, orderEng: orderEng, auctions: auctions, machine: machine,
		queue:   newEventQueue(log),
		locks:   newKeyedMutex(),
		clock:   util.RealClock{},
		log:     log,
		stopped: make(chan struct{}),
	}
}

// WithClock overrides the relayer's clock, letting expiry-ticker tests
// simulate elapsed timelocks without sleeping.
func (r *Relayer) WithClock(c util.Clock) *Relayer {
	r.clock = c
	return r
}

// Run opens both ChainAdapter subscriptions from their last checkpoints
// (rewound by REORG_DEPTH, which the adapters themselves already only
// confirm events beyond), spawns the consumer goroutines, and blocks the
// main loop until ctx is cancelled or Shutdown is called (spec.md §4.7
// steps 1-3).
func (r *Relayer) Run(ctx context.Context, evmFromBlock, algoFromBlock uint64) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer close(r.stopped)

	evmSub, err := r.evm.SubscribeEvents(ctx, evmFromBlock, chainadapter.EventFilter{})
	if err != nil {
		return err
	}
	defer evmSub.Close()

	algoSub, err := r.algo.SubscribeEvents(ctx, algoFromBlock, chainadapter.EventFilter{})
	if err != nil {
		return err
	}
	defer algoSub.Close()

	r.wg.Add(1)
	go func() { defer r.wg.Done(); r.queue.pump(ctx, chainadapter.ChainEvm, evmSub) }()
	r.wg.Add(1)
	go func() { defer r.wg.Done(); r.queue.pump(ctx, chainadapter.ChainAlgo, algoSub) }()

	r.wg.Add(1)
	go func() { defer r.wg.Done(); r.runExpiryTicker(ctx) }()

	r.mainLoop(ctx)
	r.wg.Wait()
	return nil
}

func (r *Relayer) mainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue.events:
			r.dispatch(ctx, ev)
		}
	}
}

// runExpiryTicker implements spec.md §4.7 step 4: every tick, walk the
// active correlation records that are BothLocked or Refunding and check
// whether a still-locked leg's timelock has elapsed without a reveal.
func (r *Relayer) runExpiryTicker(ctx context.Context) {
	ticker := time.NewTicker(expiryTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkExpirations(ctx)
		}
	}
}

func (r *Relayer) checkExpirations(ctx context.Context) {
	now := r.clock.Now().UTC()
	err := r.store.IterActive(func(rec correlation.Record) error {
		if rec.SwapState != correlation.SwapBothLocked && rec.SwapState != correlation.SwapRefunding {
			return nil
		}
		expired, chain := firstExpiredLeg(rec, now)
		if !expired {
			return nil
		}
		var stepErr error
		r.locks.With(rec.OrderHash.String(), func() {
			stepErr = r.machine.OnTimelockExpired(ctx, rec.OrderHash, rec.InstanceID, chain)
		})
		if stepErr != nil {
			r.log.Errorw("timelock expiry handling failed", "order_hash", rec.OrderHash.String(), "err", stepErr)
		}
		return nil
	})
	if err != nil {
		r.log.Errorw("iter active failed during expiry check", "err", err)
	}
}

// firstExpiredLeg returns a still-locked leg whose timelock has elapsed,
// checking the Algorand leg before the EVM leg. For EthToAlgo swaps the
// Algorand leg is the destination leg, which expires first by
// construction (spec.md §4.5 StageOffset).
func firstExpiredLeg(rec correlation.Record, now time.Time) (bool, chainadapter.Chain) {
	if rec.AlgoLeg != nil && rec.AlgoLeg.State == correlation.LegLocked && now.After(rec.AlgoLeg.Timelock) {
		return true, chainadapter.ChainAlgo
	}
	if rec.EvmLeg != nil && rec.EvmLeg.State == correlation.LegLocked && now.After(rec.EvmLeg.Timelock) {
		return true, chainadapter.ChainEvm
	}
	return false, ""
}

// Shutdown cancels all in-flight operations and waits for the main loop
// and consumers to exit (spec.md §5 "Relayer::shutdown() cancels all
// in-flight operations... returns once the store is consistent").
func (r *Relayer) Shutdown(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
