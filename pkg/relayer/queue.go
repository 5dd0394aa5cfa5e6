package relayer

import (
	"context"

	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
)

// queueDepth bounds the multi-producer/single-consumer event queue
// (spec.md §5 "the event queue (bounded, backpressured)").
const queueDepth = 256

// eventQueue fans in both adapters' event streams into one bounded,
// ordered-per-producer channel.
type eventQueue struct {
	events chan chainadapter.Event
	errs   chan error
	log    *zap.SugaredLogger
}

func newEventQueue(log *zap.SugaredLogger) *eventQueue {
	return &eventQueue{
		events: make(chan chainadapter.Event, queueDepth),
		errs:   make(chan error, 2),
		log:    log,
	}
}

// pump copies every event and terminal error from sub onto the shared
// queue until ctx is cancelled or sub closes. Runs as its own goroutine
// per chain so EVM and Algorand event delivery never block each other
// (spec.md §4.7 "two event consumers... push typed events onto a single
// ...queue").
func (q *eventQueue) pump(ctx context.Context, chain chainadapter.Chain, sub chainadapter.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			select {
			case q.events <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-sub.Err():
			if !ok {
				continue
			}
			q.log.Errorw("subscription error", "chain", chain, "err", err)
			select {
			case q.errs <- err:
			default:
			}
		}
	}
}
