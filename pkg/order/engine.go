package order

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/util"
)

// DefaultMinOrderValue is the fallback smallest maker_amount an intent
// may post when the caller doesn't supply one from config (spec.md §4.3,
// limits.min_order_value — 0.001 ETH per §6's documented default).
var DefaultMinOrderValue = big.NewInt(1e15)

// EvmSubmitter is the narrow slice of EvmAdapter the engine needs to
// register an order on-chain: encode the fixed submitLimitOrder call and
// broadcast it (spec.md §4.3).
type EvmSubmitter interface {
	EncodeSubmitLimitOrder(intent cryptoutil.LimitOrderIntent, signature []byte, hashlock cryptoutil.Hash, timelock time.Time, value *big.Int) (chainadapter.UnsignedTx, error)
	SubmitTx(ctx context.Context, tx chainadapter.UnsignedTx, signer chainadapter.SignerKeyRef) (chainadapter.TxID, error)
}

// Engine implements OrderEngine (spec.md §4.3).
type Engine struct {
	store         *Store
	submit        EvmSubmitter
	relayer       chainadapter.SignerKeyRef
	domain        cryptoutil.Domain
	minOrderValue *big.Int
	minTimelock   time.Duration
	clock         util.Clock
	log           *zap.SugaredLogger
	seenSalt      map[string]struct{}
}

// NewEngine uses DefaultMinOrderValue and cryptoutil.MinTimelockDuration
// as its limits, for callers that don't load config (the tests).
// Production wiring should prefer NewEngineWithLimits, which takes
// limits.min_order_value and limits.min_timelock (spec.md §6) explicitly.
func NewEngine(store *Store, submit EvmSubmitter, relayerKey chainadapter.SignerKeyRef, domain cryptoutil.Domain, log *zap.SugaredLogger) *Engine {
	return NewEngineWithLimits(store, submit, relayerKey, domain, DefaultMinOrderValue, cryptoutil.MinTimelockDuration, log)
}

// NewEngineWithLimits is NewEngine with the two spec.md §6 limits that
// config.Load parses (limits.min_order_value, limits.min_timelock)
// supplied explicitly instead of defaulted.
func NewEngineWithLimits(store *Store, submit EvmSubmitter, relayerKey chainadapter.SignerKeyRef, domain cryptoutil.Domain, minOrderValue *big.Int, minTimelock time.Duration, log *zap.SugaredLogger) *Engine {
	return &Engine{
		store: store, submit: submit, relayer: relayerKey, domain: domain,
		minOrderValue: minOrderValue, minTimelock: minTimelock,
		clock: util.RealClock{}, log: log, seenSalt: make(map[string]struct{}),
	}
}

// WithClock overrides the engine's clock for deterministic tests.
func (e *Engine) WithClock(c util.Clock) *Engine {
	e.clock = c
	return e
}

// SubmitIntent validates a maker's signed intent and registers it
// on-chain (spec.md §4.3). The submitLimitOrder transaction is signed
// with the relayer's key; for an ETH-source order intent.MakerAmount is
// attached as native value, so the relayer's account pays it.
func (e *Engine) SubmitIntent(ctx context.Context, intent Intent, signature []byte, hashlock cryptoutil.Hash, timelock time.Time) (cryptoutil.Hash, error) {
	now := e.clock.Now().UTC()

	if err := cryptoutil.ValidateDeadline(now, intent.Deadline, cryptoutil.SubmissionGrace); err != nil {
		return cryptoutil.Hash{}, fmt.Errorf("%w: %v", ErrExpiredDeadline, err)
	}
	if err := cryptoutil.ValidateTimelock(now, intent.Deadline, timelock, e.minTimelock); err != nil {
		return cryptoutil.Hash{}, fmt.Errorf("%w: %v", ErrTimelockTooShort, err)
	}
	if intent.MakerAmount == nil || intent.MakerAmount.Cmp(e.minOrderValue) < 0 {
		return cryptoutil.Hash{}, ErrInsufficientValue
	}
	if intent.AllowPartialFills {
		if intent.MinPartialFill == nil || intent.MinPartialFill.Sign() <= 0 {
			return cryptoutil.Hash{}, ErrMinPartialFill
		}
	}

	saltKey := fmt.Sprintf("%s:%s", intent.Maker.Hex(), intent.Salt.String())
	if _, dup := e.seenSalt[saltKey]; dup {
		return cryptoutil.Hash{}, ErrDuplicateSalt
	}

	eip := intent.eip712()
	signer := cryptoutil.NewSigner(e.domain)
	orderHash, err := signer.HashIntent(eip)
	if err != nil {
		return cryptoutil.Hash{}, fmt.Errorf("hash intent: %w", err)
	}
	valid, err := cryptoutil.VerifySignature(orderHash, signature, intent.Maker)
	if err != nil || !valid {
		return cryptoutil.Hash{}, ErrInvalidSignature
	}

	if existing, found, err := e.store.Get(orderHash); err != nil {
		return cryptoutil.Hash{}, err
	} else if found {
		return existing.OrderHash, nil
	}

	value := big.NewInt(0)
	if intent.Direction() == EthToAlgo {
		value = intent.MakerAmount
	}
	tx, err := e.submit.EncodeSubmitLimitOrder(*eip, signature, hashlock, timelock, value)
	if err != nil {
		return cryptoutil.Hash{}, fmt.Errorf("encode submitLimitOrder: %w", err)
	}
	if _, err := e.submit.SubmitTx(ctx, tx, e.relayer); err != nil {
		return cryptoutil.Hash{}, fmt.Errorf("submit order tx: %w", err)
	}

	o := &Order{
		OrderHash:       orderHash,
		Intent:          intent,
		Signature:       signature,
		Hashlock:        hashlock,
		Timelock:        timelock,
		FilledAmount:    big.NewInt(0),
		RemainingAmount: new(big.Int).Set(intent.MakerAmount),
		InFlightAmount:  big.NewInt(0),
		State:           StateOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.Save(o); err != nil {
		return cryptoutil.Hash{}, fmt.Errorf("persist order: %w", err)
	}
	e.seenSalt[saltKey] = struct{}{}

	e.log.Infow("order submitted", "order_hash", orderHash.String(), "direction", intent.Direction().String())
	return orderHash, nil
}

func (e *Engine) GetOrder(orderHash cryptoutil.Hash) (*Order, error) {
	o, found, err := e.store.Get(orderHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (e *Engine) ListOpenOrders(filter ListFilter) ([]*Order, error) {
	if len(filter.States) == 0 {
		filter.States = []State{StateOpen, StateBidding}
	}
	return e.store.List(filter)
}

// CancelOrder is only valid while the order is Open and unselected
// (spec.md §4.3).
func (e *Engine) CancelOrder(orderHash cryptoutil.Hash, makerSig []byte) error {
	o, found, err := e.store.Get(orderHash)
	if err != nil {
		return err
	}
	if !found {
		return ErrOrderNotFound
	}
	if o.State != StateOpen {
		return ErrOrderNotOpen
	}
	if o.WinningBidID != "" {
		return ErrOrderHasWinningBid
	}

	signer := cryptoutil.NewSigner(e.domain)
	hash, err := signer.HashIntent(o.Intent.eip712())
	if err != nil {
		return fmt.Errorf("hash intent for cancellation: %w", err)
	}
	valid, err := cryptoutil.VerifySignature(hash, makerSig, o.Intent.Maker)
	if err != nil || !valid {
		return ErrBadMakerSignature
	}

	o.State = StateRefunded
	o.UpdatedAt = e.clock.Now().UTC()
	return e.store.Save(o)
}
