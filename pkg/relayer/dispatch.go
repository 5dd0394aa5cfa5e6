package relayer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/htlc"
	"github.com/relayerlabs/swaprelay/pkg/order"
)

// dispatch resolves ev's affected order and drives HtlcStateMachine /
// AuctionEngine under that order's keyed lock (spec.md §4.7 step 3,
// §5 single-writer discipline).
func (r *Relayer) dispatch(ctx context.Context, ev chainadapter.Event) {
	if ev.Kind == chainadapter.EvtCheckpoint {
		if err := r.store.Checkpoint(ev.Chain, ev.BlockNumber); err != nil {
			r.log.Errorw("checkpoint failed", "chain", ev.Chain, "block", ev.BlockNumber, "err", err)
		}
		return
	}

	var dispatchErr error
	r.locks.With(ev.OrderHash.String(), func() {
		dispatchErr = r.handle(ctx, ev)
	})
	if dispatchErr != nil {
		r.log.Errorw("event dispatch failed", "kind", ev.Kind, "order_hash", ev.OrderHash.String(), "err", dispatchErr)
	}
}

func (r *Relayer) handle(ctx context.Context, ev chainadapter.Event) error {
	switch ev.Kind {
	case chainadapter.EvtEvmOrderCreated, chainadapter.EvtEvmHTLCCreated:
		return r.onSrcLocked(ev, chainadapter.ChainEvm)

	case chainadapter.EvtAlgoHTLCCreated:
		return r.onAlgoHTLCCreated(ctx, ev)

	case chainadapter.EvtEvmBidPlaced:
		return r.onBidPlaced(ev)

	case chainadapter.EvtEvmBestBidSelected:
		return r.onBidSelected(ctx, ev)

	case chainadapter.EvtEvmPartialFill:
		return nil // filled amounts are reconciled by the htlc machine on settlement

	case chainadapter.EvtEvmClaimed:
		return r.onClaimObserved(ctx, ev, chainadapter.ChainEvm)
	case chainadapter.EvtAlgoHTLCClaimed:
		return r.onClaimObserved(ctx, ev, chainadapter.ChainAlgo)

	case chainadapter.EvtEvmRefunded, chainadapter.EvtAlgoHTLCRefunded:
		r.log.Infow("refund confirmed", "order_hash", ev.OrderHash.String(), "chain", ev.Chain)
		return nil

	case chainadapter.EvtTimer:
		return nil // handled by the background ticker directly, not the event queue

	default:
		return fmt.Errorf("unhandled event kind %s", ev.Kind)
	}
}

func (r *Relayer) onSrcLocked(ev chainadapter.Event, chain chainadapter.Chain) error {
	leg := correlation.HtlcLeg{
		HTLCID:     ev.HTLCID,
		Amount:     ev.Amount,
		Recipient:  ev.Recipient,
		Hashlock:   ev.Hashlock,
		Timelock:   ev.Timelock,
		TxIDCreate: ev.TxID,
	}
	return r.machine.OnOrderCreated(ev.OrderHash, htlc.BaseInstance, chain, leg)
}

// onAlgoHTLCCreated disambiguates an Algorand HTLC-create confirmation:
// it is either the AlgoToEth source lock (no base record yet) or a
// destination-leg confirmation for an EthToAlgo swap already in
// ExecutingDst (spec.md §4.5 rows 1 and 3).
func (r *Relayer) onAlgoHTLCCreated(ctx context.Context, ev chainadapter.Event) error {
	if _, found, err := r.store.LookupByOrder(ev.OrderHash, htlc.BaseInstance); err != nil {
		return err
	} else if !found {
		return r.onSrcLocked(ev, chainadapter.ChainAlgo)
	}

	instanceID, err := r.instanceExecutingDst(ev.OrderHash, chainadapter.ChainAlgo)
	if err != nil {
		return err
	}
	if instanceID == "" {
		return nil // no instance currently awaiting this chain's confirmation
	}
	return r.machine.OnDstConfirmed(ev.OrderHash, instanceID, chainadapter.ChainAlgo, ev.HTLCID, ev.Hashlock)
}

// instanceExecutingDst finds the instance (if any) currently in
// ExecutingDst whose destination leg is on chain. Correlation records
// don't carry a reverse order->instances index, so the relayer keeps the
// Order's winning_bid_id as the pointer to the most recent instance;
// that is sufficient because only one instance is ever ExecutingDst for
// a given order at a time (the next bid only gets selected once this one
// is BothLocked or later).
func (r *Relayer) instanceExecutingDst(orderHash cryptoutil.Hash, chain chainadapter.Chain) (htlc.InstanceID, error) {
	o, found, err := r.orders.Get(orderHash)
	if err != nil || !found || o.WinningBidID == "" {
		return "", err
	}
	rec, found, err := r.store.LookupByOrder(orderHash, o.WinningBidID)
	if err != nil || !found {
		return "", err
	}
	if rec.SwapState != correlation.SwapExecutingDst {
		return "", nil
	}
	if rec.LegFor(chain) == nil {
		return "", nil
	}
	return o.WinningBidID, nil
}

func (r *Relayer) onBidPlaced(ev chainadapter.Event) error {
	if ev.Bid == nil {
		return fmt.Errorf("bid-placed event missing bid payload")
	}
	bid := auction.Bid{
		BidID:        ev.Bid.BidID,
		OrderHash:    ev.OrderHash,
		Resolver:     common.HexToAddress(ev.Bid.Resolver),
		InputAmount:  ev.Bid.InputAmount,
		OutputAmount: ev.Bid.OutputAmount,
		GasEstimate:  ev.Bid.GasEstimate,
		PlacedAt:     r.clock.Now().UTC(),
	}
	return r.auctions.PlaceBid(bid)
}

// onBidSelected handles BestBidSelected. The log only carries the
// winning bid's index, not the revealed secret, so the secret is read
// back from the Resolver contract's own view rather than trusted from
// event payload the relayer didn't itself validate.
func (r *Relayer) onBidSelected(ctx context.Context, ev chainadapter.Event) error {
	if ev.Bid == nil {
		return fmt.Errorf("best-bid-selected event missing bid index")
	}
	secret, found, err := r.evm.GetRevealedSecret(ctx, ev.OrderHash)
	if err != nil {
		return fmt.Errorf("fetch revealed secret for %s: %w", ev.OrderHash, err)
	}
	if !found {
		return fmt.Errorf("best-bid-selected observed for %s before its secret was revealed on chain", ev.OrderHash)
	}
	return r.auctions.SelectAndExecute(ctx, ev.OrderHash, ev.Bid.BidID, secret)
}

// onClaimObserved learns the revealed secret from whichever chain
// claimed first, then drives the opposite-chain claim — never
// speculatively, only once this one is itself confirmed (spec.md §4.5
// ordering guarantee).
func (r *Relayer) onClaimObserved(ctx context.Context, ev chainadapter.Event, claimedOn chainadapter.Chain) error {
	if ev.Secret == nil {
		return fmt.Errorf("claim event on %s missing revealed secret", claimedOn)
	}
	instanceID, err := r.instanceForLeg(ev.OrderHash, claimedOn, ev.HTLCID)
	if err != nil {
		return err
	}
	if instanceID == "" {
		return nil
	}

	if err := r.machine.OnSecretRevealed(ev.OrderHash, instanceID, *ev.Secret); err != nil {
		return err
	}

	rec, found, err := r.store.LookupByOrder(ev.OrderHash, instanceID)
	if err != nil || !found {
		return err
	}
	isSrc := claimedOn != r.dstChainOf(rec)
	if err := r.machine.ClaimOpposite(ctx, ev.OrderHash, instanceID, claimedOn, isSrc); err != nil {
		return err
	}

	opposite := chainadapter.ChainAlgo
	if claimedOn == chainadapter.ChainAlgo {
		opposite = chainadapter.ChainEvm
	}
	return r.machine.ClaimOpposite(ctx, ev.OrderHash, instanceID, opposite, !isSrc)
}

func (r *Relayer) instanceForLeg(orderHash cryptoutil.Hash, chain chainadapter.Chain, htlcID string) (htlc.InstanceID, error) {
	rec, found, err := r.store.LookupByLeg(chain, htlcID)
	if err != nil || !found {
		return "", err
	}
	return rec.InstanceID, nil
}

// dstChainOf reports the destination chain of rec's swap from its order's
// direction; it falls back to EVM when the order is not found.
func (r *Relayer) dstChainOf(rec correlation.Record) chainadapter.Chain {
	if o, found, err := r.orders.Get(rec.OrderHash); err == nil && found && o.Intent.Direction() == order.EthToAlgo {
		return chainadapter.ChainAlgo
	}
	return chainadapter.ChainEvm
}
