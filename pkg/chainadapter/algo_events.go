package chainadapter

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// algoSubscription polls the indexer for application transactions past
// the reorg-safe tip, since Algorand exposes no native log-subscription
// RPC (spec.md §4.2's AlgoAdapter specifics).
type algoSubscription struct {
	events chan Event
	errs   chan error
	cancel context.CancelFunc
}

func (s *algoSubscription) Events() <-chan Event { return s.events }
func (s *algoSubscription) Err() <-chan error    { return s.errs }
func (s *algoSubscription) Close() error         { s.cancel(); return nil }

func (a *AlgoAdapter) SubscribeEvents(ctx context.Context, fromBlock uint64, filter EventFilter) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &algoSubscription{
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		cancel: cancel,
	}
	go a.pollLoop(subCtx, fromBlock, filter, sub)
	return sub, nil
}

func (a *AlgoAdapter) pollLoop(ctx context.Context, fromBlock uint64, filter EventFilter, sub *algoSubscription) {
	defer close(sub.events)

	cursor := fromBlock
	lastCheckpoint := fromBlock
	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		confirmed, err := a.confirmedHeight(ctx)
		if err != nil {
			select {
			case sub.errs <- err:
			default:
			}
			continue
		}
		if confirmed < cursor {
			continue
		}

		result, err := a.indexer.SearchForTransactions().
			ApplicationID(a.cfg.AppID).
			MinRound(cursor).
			MaxRound(confirmed).
			Do(ctx)
		if err != nil {
			select {
			case sub.errs <- &AdapterError{Kind: ErrNetwork, Err: err}:
			default:
			}
			continue
		}

		for _, txn := range result.Transactions {
			evt, ok := decodeAlgoTxn(txn)
			if !ok {
				continue
			}
			if !matchesFilter(filter, evt.Kind) {
				continue
			}
			select {
			case sub.events <- evt:
			case <-ctx.Done():
				return
			}
		}

		cursor = confirmed + 1
		if cursor-lastCheckpoint >= CheckpointBlocks || len(result.Transactions) > 0 {
			select {
			case sub.events <- Event{Chain: ChainAlgo, Kind: EvtCheckpoint, BlockNumber: confirmed}:
			case <-ctx.Done():
				return
			}
			lastCheckpoint = cursor
		}
	}
}

func decodeAlgoTxn(txn types.Transaction) (Event, bool) {
	if txn.Type != types.ApplicationCallTx || len(txn.ApplicationArgs) == 0 {
		return Event{}, false
	}
	args := txn.ApplicationArgs

	base := Event{Chain: ChainAlgo, BlockNumber: txn.ConfirmedRound, TxID: TxID(txn.ID)}

	switch string(args[0]) {
	case "create_htlc":
		if len(args) < 3 || len(args[1]) != cryptoutil.SecretSize {
			return Event{}, false
		}
		var hashlock cryptoutil.Hash
		copy(hashlock[:], args[1])
		base.Kind = EvtAlgoHTLCCreated
		base.Hashlock = hashlock
		if len(args[2]) == 8 {
			base.Timelock = time.Unix(int64(binary.BigEndian.Uint64(args[2])), 0)
		}
		base.HTLCID = txn.ID
		return base, true

	case "claim_htlc":
		if len(args) < 2 || len(args[1]) != cryptoutil.SecretSize {
			return Event{}, false
		}
		var secret cryptoutil.Secret
		copy(secret[:], args[1])
		base.Kind = EvtAlgoHTLCClaimed
		base.Secret = &secret
		return base, true

	case "refund_htlc":
		base.Kind = EvtAlgoHTLCRefunded
		if len(args) >= 2 {
			base.HTLCID = string(args[1])
		}
		return base, true

	default:
		return Event{}, false
	}
}
