package chainadapter

import (
	"context"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// evmSubscription polls for logs past the reorg-safe tip instead of using
// eth_subscribe, so it works against plain JSON-RPC endpoints too.
type evmSubscription struct {
	events chan Event
	errs   chan error
	cancel context.CancelFunc
}

func (s *evmSubscription) Events() <-chan Event { return s.events }
func (s *evmSubscription) Err() <-chan error    { return s.errs }
func (s *evmSubscription) Close() error         { s.cancel(); return nil }

// SubscribeEvents polls for confirmed Resolver logs starting at fromBlock,
// only surfacing events once they are behind the reorg depth (spec.md
// §4.2 scenario 5), and emits EvtCheckpoint at least every CheckpointBlocks
// so the caller can persist progress even during a quiet period.
func (a *EvmAdapter) SubscribeEvents(ctx context.Context, fromBlock uint64, filter EventFilter) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &evmSubscription{
		events: make(chan Event, 64),
		errs:   make(chan error, 1),
		cancel: cancel,
	}

	go a.pollLoop(subCtx, fromBlock, filter, sub)
	return sub, nil
}

func (a *EvmAdapter) pollLoop(ctx context.Context, fromBlock uint64, filter EventFilter, sub *evmSubscription) {
	defer close(sub.events)

	cursor := fromBlock
	lastCheckpoint := fromBlock
	ticker := time.NewTicker(5 * time.Second)
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

		logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(cursor),
			ToBlock:   new(big.Int).SetUint64(confirmed),
			Addresses: []common.Address{a.cfg.ResolverAddress},
		})
		if err != nil {
			select {
			case sub.errs <- &AdapterError{Kind: ErrNetwork, Err: err}:
			default:
			}
			continue
		}

		for _, l := range logs {
			evt, ok := a.decodeLog(l)
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
		if cursor-lastCheckpoint >= CheckpointBlocks || len(logs) > 0 {
			select {
			case sub.events <- Event{Chain: ChainEvm, Kind: EvtCheckpoint, BlockNumber: confirmed}:
			case <-ctx.Done():
				return
			}
			lastCheckpoint = cursor
		}
	}
}

func matchesFilter(filter EventFilter, kind EventKind) bool {
	if len(filter.Kinds) == 0 {
		return true
	}
	for _, k := range filter.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (a *EvmAdapter) decodeLog(l types.Log) (Event, bool) {
	base := Event{Chain: ChainEvm, BlockNumber: l.BlockNumber, TxID: TxID(l.TxHash.Hex())}

	eventABI, err := a.abi.EventByID(l.Topics[0])
	if err != nil {
		return Event{}, false
	}

	switch eventABI.Name {
	case "CrossChainOrderCreated":
		var out struct {
			Hashlock [32]byte
			Timelock *big.Int
			Amount   *big.Int
		}
		if err := a.abi.UnpackIntoInterface(&out, "CrossChainOrderCreated", l.Data); err != nil {
			return Event{}, false
		}
		base.Kind = EvtEvmHTLCCreated
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		base.HTLCID = base.OrderHash.String() // EVM's HTLCRef.HTLCID is the order hash itself
		base.Hashlock = cryptoutil.Hash(out.Hashlock)
		base.Timelock = time.Unix(out.Timelock.Int64(), 0)
		base.Amount = out.Amount
		return base, true

	case "LimitOrderCreated":
		base.Kind = EvtEvmOrderCreated
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		return base, true

	case "BidPlaced":
		var out struct {
			BidIndex     *big.Int
			InputAmount  *big.Int
			OutputAmount *big.Int
			GasEstimate  *big.Int
		}
		if err := a.abi.UnpackIntoInterface(&out, "BidPlaced", l.Data); err != nil {
			return Event{}, false
		}
		base.Kind = EvtEvmBidPlaced
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		resolver := common.HexToAddress(l.Topics[2].Hex())
		base.Bid = &BidEvent{
			BidID:        out.BidIndex.String(),
			Resolver:     resolver.Hex(),
			InputAmount:  out.InputAmount,
			OutputAmount: out.OutputAmount,
			GasEstimate:  out.GasEstimate,
		}
		return base, true

	case "BestBidSelected":
		var out struct{ BidIndex *big.Int }
		if err := a.abi.UnpackIntoInterface(&out, "BestBidSelected", l.Data); err != nil {
			return Event{}, false
		}
		base.Kind = EvtEvmBestBidSelected
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		base.Bid = &BidEvent{BidID: out.BidIndex.String(), Resolver: common.HexToAddress(l.Topics[2].Hex()).Hex()}
		return base, true

	case "LimitOrderPartiallyFilled":
		var out struct {
			FillAmount      *big.Int
			RemainingAmount *big.Int
		}
		if err := a.abi.UnpackIntoInterface(&out, "LimitOrderPartiallyFilled", l.Data); err != nil {
			return Event{}, false
		}
		base.Kind = EvtEvmPartialFill
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		base.Amount = out.FillAmount
		return base, true

	case "CrossChainSwapExecuted":
		var out struct{ Secret [32]byte }
		if err := a.abi.UnpackIntoInterface(&out, "CrossChainSwapExecuted", l.Data); err != nil {
			return Event{}, false
		}
		base.Kind = EvtEvmClaimed
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		base.HTLCID = base.OrderHash.String()
		secret := cryptoutil.Secret(out.Secret)
		base.Secret = &secret
		return base, true

	case "HTLCRefunded":
		base.Kind = EvtEvmRefunded
		base.OrderHash = cryptoutil.Hash(l.Topics[1])
		base.HTLCID = base.OrderHash.String()
		return base, true

	default:
		return Event{}, false
	}
}
