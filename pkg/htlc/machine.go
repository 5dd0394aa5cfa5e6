// Package htlc implements HtlcStateMachine: the per-instance atomic-swap
// state machine driving both HTLC legs from selection through settlement
// or refund (spec.md §4.5).
package htlc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/order"
	"github.com/relayerlabs/swaprelay/pkg/util"
)

// InstanceID disambiguates multiple selected bids against one Order
// (spec.md §4.5 "multiple selections against one Order produce multiple
// independent state-machine instances").
type InstanceID = string

// BaseInstance is the correlation-record id the source leg is recorded
// under before any bid is selected (spec.md §4.5 row 1 happens once per
// Order, ahead of any bid). Each selected bid then forks its own
// instance, keyed by bid id, off of this base record.
const BaseInstance InstanceID = "0"

// AlertFunc notifies an operator that an instance needs manual attention
// (spec.md §7 "protocol violation... alerts operator"). NewMachine
// installs a no-op alert; callers wire a real notification path (pager,
// Slack, whatever the deployment uses) with WithAlertFunc.
type AlertFunc func(ctx context.Context, orderHash cryptoutil.Hash, reason string)

func noopAlert(context.Context, cryptoutil.Hash, string) {}

// Machine implements HtlcStateMachine (spec.md §4.5) for both swap
// directions. It holds no per-instance state itself — everything it
// needs is read from and written back to CorrelationStore and the order
// store, so instances for different orders never contend (spec.md §5
// single-writer-per-order discipline is enforced by the caller, which
// serializes Machine calls per order_hash).
type Machine struct {
	evm  chainadapter.Adapter
	algo chainadapter.Adapter

	store  correlation.Store
	orders *order.Store
	bids   *auction.Store

	relayerEvm  chainadapter.SignerKeyRef
	relayerAlgo chainadapter.SignerKeyRef

	retry           chainadapter.RetryPolicy
	evmConfirmWait  time.Duration
	algoConfirmWait time.Duration
	alert           AlertFunc
	clock           util.Clock
	log             *zap.SugaredLogger
}

func NewMachine(evm, algo chainadapter.Adapter, store correlation.Store, orders *order.Store, bids *auction.Store, relayerEvm, relayerAlgo chainadapter.SignerKeyRef, log *zap.SugaredLogger) *Machine {
	return &Machine{
		evm: evm, algo: algo,
		store: store, orders: orders, bids: bids,
		relayerEvm: relayerEvm, relayerAlgo: relayerAlgo,
		retry:           chainadapter.DefaultRetryPolicy(),
		evmConfirmWait:  10 * time.Minute,
		algoConfirmWait: 2 * time.Minute,
		alert:           noopAlert,
		clock:           util.RealClock{},
		log:             log,
	}
}

// WithClock overrides the machine's clock, for deterministic timelock
// tests that don't want to sleep.
func (m *Machine) WithClock(c util.Clock) *Machine {
	m.clock = c
	return m
}

// WithRetryPolicy overrides the submission retry policy, e.g. to thread
// limits.max_tx_attempts (spec.md §6) through instead of the default.
func (m *Machine) WithRetryPolicy(p chainadapter.RetryPolicy) *Machine {
	m.retry = p
	return m
}

// WithAlertFunc wires an operator-notification hook invoked from fail.
func (m *Machine) WithAlertFunc(f AlertFunc) *Machine {
	m.alert = f
	return m
}

// WithConfirmTimeouts overrides, per chain, the deadline submitLeg's
// submission retries run under (timeouts.tx_confirm_evm /
// timeouts.tx_confirm_algo, spec.md §6). submitLeg does not wait for the
// transaction to confirm, so this bounds only the time spent submitting.
func (m *Machine) WithConfirmTimeouts(evm, algo time.Duration) *Machine {
	m.evmConfirmWait = evm
	m.algoConfirmWait = algo
	return m
}

func (m *Machine) confirmWaitFor(chain chainadapter.Chain) time.Duration {
	if chain == chainadapter.ChainEvm {
		return m.evmConfirmWait
	}
	return m.algoConfirmWait
}

// clearBids drops every bid recorded against orderHash once it stops
// accepting new ones (spec.md §3 "Bids are owned by their Order and
// deleted when the Order becomes terminal"). Best-effort: a failure here
// must never block the state transition that triggered it.
func (m *Machine) clearBids(orderHash cryptoutil.Hash) {
	if err := m.bids.DeleteAll(orderHash); err != nil {
		m.log.Errorw("failed to clear bids for terminal order", "order_hash", orderHash.String(), "error", err)
	}
}

func (m *Machine) adapterFor(chain chainadapter.Chain) chainadapter.Adapter {
	if chain == chainadapter.ChainEvm {
		return m.evm
	}
	return m.algo
}

func (m *Machine) signerFor(chain chainadapter.Chain) chainadapter.SignerKeyRef {
	if chain == chainadapter.ChainEvm {
		return m.relayerEvm
	}
	return m.relayerAlgo
}

func (m *Machine) submitLeg(ctx context.Context, chain chainadapter.Chain, tx chainadapter.UnsignedTx) (chainadapter.TxID, error) {
	ctx, cancel := context.WithTimeout(ctx, m.confirmWaitFor(chain))
	defer cancel()

	var txID chainadapter.TxID
	err := chainadapter.Do(ctx, m.retry, func(ctx context.Context) error {
		id, err := m.adapterFor(chain).SubmitTx(ctx, tx, m.signerFor(chain))
		if err != nil {
			return err
		}
		txID = id
		return nil
	})
	return txID, err
}

// putLeg writes leg back into rec at the given chain slot, preserving
// the opposite leg.
func (m *Machine) putLeg(orderHash cryptoutil.Hash, instanceID InstanceID, rec correlation.Record, chain chainadapter.Chain, leg *correlation.HtlcLeg) error {
	if chain == chainadapter.ChainEvm {
		return m.store.PutMapping(orderHash, instanceID, leg, rec.AlgoLeg)
	}
	return m.store.PutMapping(orderHash, instanceID, rec.EvmLeg, leg)
}

// OnOrderCreated handles the Created -> SrcLocked transition. For
// EthToAlgo orders the maker's submit_intent call already locked the
// source (EVM) leg atomically; for AlgoToEth the source leg is the
// user's own Algorand HTLC group, observed the same way (spec.md §4.5
// row 1). srcChain and srcLeg are supplied by the relayer's event
// dispatch, which already knows which chain emitted the order-creation
// event.
func (m *Machine) OnOrderCreated(orderHash cryptoutil.Hash, instanceID InstanceID, srcChain chainadapter.Chain, srcLeg correlation.HtlcLeg) error {
	srcLeg.Chain = srcChain
	srcLeg.State = correlation.LegLocked
	var err error
	if srcChain == chainadapter.ChainEvm {
		err = m.store.PutMapping(orderHash, instanceID, &srcLeg, nil)
	} else {
		err = m.store.PutMapping(orderHash, instanceID, nil, &srcLeg)
	}
	if err != nil {
		return fmt.Errorf("put src mapping: %w", err)
	}
	return m.store.SetState(orderHash, instanceID, correlation.SwapSrcLocked)
}

// OnBidSelected implements auction.Executor: once a resolver's bid is
// selected the relayer submits the destination HTLC-create on the
// resolver's behalf. It refuses to run before the source leg's lock has
// been observed: the base correlation record it forks from is written only
// from a source-lock event, and the adapters deliver events only once they
// are REORG_DEPTH deep (spec.md §4.5 ordering guarantee). AuctionEngine
// itself accepts bids on any Open order without checking the source lock.
func (m *Machine) OnBidSelected(ctx context.Context, orderHash cryptoutil.Hash, bid auction.Bid, secret cryptoutil.Secret) error {
	instanceID := bid.BidID

	o, found, err := m.orders.Get(orderHash)
	if err != nil {
		return err
	}
	if !found {
		return order.ErrOrderNotFound
	}

	base, found, err := m.store.LookupByOrder(orderHash, BaseInstance)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no base correlation record for order %s: source leg was never locked", orderHash)
	}

	// Fork this bid's own instance off of the base record's source leg.
	// Every instance of an order reuses the order's single hashlock and
	// timelock; instances do not get their own (hashlock, secret) pair, so
	// one revealed secret unlocks every instance of the order.
	if err := m.store.PutMapping(orderHash, instanceID, base.EvmLeg, base.AlgoLeg); err != nil {
		return fmt.Errorf("fork instance from base record: %w", err)
	}
	rec, _, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil {
		return err
	}

	dstChain := dstChainFor(o.Intent.Direction())
	dstTimelock := cryptoutil.DstTimelock(o.Timelock)

	if err := m.store.SetState(orderHash, instanceID, correlation.SwapExecutingDst); err != nil {
		return err
	}

	recipient := destRecipient(o, bid)
	tx, err := m.adapterFor(dstChain).EncodeHTLCCreate(o.Hashlock, dstTimelock, bid.OutputAmount, recipient, nil)
	if err != nil {
		return fmt.Errorf("encode dst htlc create: %w", err)
	}

	txID, err := m.submitLeg(ctx, dstChain, tx)
	if err != nil {
		return m.fail(orderHash, instanceID, fmt.Errorf("submit dst htlc create: %w", err))
	}

	dstLeg := &correlation.HtlcLeg{
		Chain:      dstChain,
		Amount:     bid.OutputAmount,
		Recipient:  recipient,
		Hashlock:   o.Hashlock,
		Timelock:   dstTimelock,
		TxIDCreate: txID,
		State:      correlation.LegPending,
	}
	if err := m.putLeg(orderHash, instanceID, rec, dstChain, dstLeg); err != nil {
		return err
	}

	m.log.Infow("dst htlc submitted", "order_hash", orderHash.String(), "instance", instanceID, "chain", dstChain, "tx", txID)
	return nil
}

// OnDstConfirmed handles ExecutingDst -> BothLocked once the destination
// HTLC-create is observed confirmed with a matching hashlock (spec.md
// §4.5). A hashlock mismatch is a protocol violation (spec.md §7), not a
// retryable condition.
func (m *Machine) OnDstConfirmed(orderHash cryptoutil.Hash, instanceID InstanceID, dstChain chainadapter.Chain, htlcID string, observedHashlock cryptoutil.Hash) error {
	rec, found, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no correlation record for order %s instance %s", orderHash, instanceID)
	}
	if observedHashlock != rec.Hashlock() {
		return m.fail(orderHash, instanceID, fmt.Errorf("hashlock mismatch on dst confirmation"))
	}

	leg := rec.LegFor(dstChain)
	if leg == nil {
		return fmt.Errorf("correlation record missing %s leg", dstChain)
	}
	leg.HTLCID = htlcID
	leg.State = correlation.LegLocked
	if err := m.putLeg(orderHash, instanceID, rec, dstChain, leg); err != nil {
		return err
	}

	return m.store.SetState(orderHash, instanceID, correlation.SwapBothLocked)
}

// OnSecretRevealed handles BothLocked -> SecretRevealed: the secret is
// observed (e.g. in a claim calldata or app-call arg) on either chain,
// verified against the shared hashlock, then persisted so the opposite
// leg's claim can be driven (spec.md §4.5, §8 invariant 2).
func (m *Machine) OnSecretRevealed(orderHash cryptoutil.Hash, instanceID InstanceID, secret cryptoutil.Secret) error {
	rec, found, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no correlation record for order %s instance %s", orderHash, instanceID)
	}
	if !cryptoutil.VerifyPreimage(secret, rec.Hashlock()) {
		return m.fail(orderHash, instanceID, fmt.Errorf("secret does not match hashlock"))
	}
	if err := m.store.SetSecret(orderHash, instanceID, secret); err != nil {
		return err
	}
	return m.store.SetState(orderHash, instanceID, correlation.SwapSecretRevealed)
}

// ClaimOpposite drives SecretRevealed -> DstClaimed / SrcClaimed. Per
// spec.md §4.5's ordering guarantee the caller must invoke this for the
// destination chain first and only then for the source chain, once the
// destination claim is itself confirmed — this method does not enforce
// that ordering itself, it only executes the one claim it's asked for.
func (m *Machine) ClaimOpposite(ctx context.Context, orderHash cryptoutil.Hash, instanceID InstanceID, chain chainadapter.Chain, isSrc bool) error {
	rec, found, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no correlation record for order %s instance %s", orderHash, instanceID)
	}
	if rec.Secret == nil {
		return fmt.Errorf("cannot claim before secret is revealed")
	}

	leg := rec.LegFor(chain)
	if leg == nil {
		return fmt.Errorf("no %s leg recorded", chain)
	}
	if leg.State == correlation.LegClaimed {
		return nil // idempotent retry, spec.md §4.5
	}

	ref := chainadapter.HTLCRef{Chain: chain, HTLCID: leg.HTLCID}
	tx, err := m.adapterFor(chain).EncodeHTLCClaim(ref, *rec.Secret)
	if err != nil {
		return fmt.Errorf("encode claim on %s: %w", chain, err)
	}

	txID, err := m.submitLeg(ctx, chain, tx)
	if err != nil {
		return fmt.Errorf("submit claim on %s: %w", chain, err)
	}

	leg.TxIDClaim = txID
	leg.State = correlation.LegClaimed
	if err := m.putLeg(orderHash, instanceID, rec, chain, leg); err != nil {
		return err
	}

	state := correlation.SwapDstClaimed
	if isSrc {
		state = correlation.SwapSrcClaimed
	}
	if err := m.store.SetState(orderHash, instanceID, state); err != nil {
		return err
	}

	return m.maybeSettle(orderHash, instanceID)
}

// maybeSettle transitions DstClaimed ∧ SrcClaimed -> Settled once both
// legs report Claimed (spec.md §4.5, §8 invariant 4).
func (m *Machine) maybeSettle(orderHash cryptoutil.Hash, instanceID InstanceID) error {
	rec, found, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil || !found {
		return err
	}
	if rec.EvmLeg == nil || rec.AlgoLeg == nil {
		return nil
	}
	if rec.EvmLeg.State != correlation.LegClaimed || rec.AlgoLeg.State != correlation.LegClaimed {
		return nil
	}
	if err := m.store.SetState(orderHash, instanceID, correlation.SwapSettled); err != nil {
		return err
	}
	return m.settleOrder(orderHash, rec)
}

func (m *Machine) settleOrder(orderHash cryptoutil.Hash, rec correlation.Record) error {
	o, found, err := m.orders.Get(orderHash)
	if err != nil || !found {
		return err
	}
	filled := rec.EvmLeg.Amount
	if filled == nil {
		filled = rec.AlgoLeg.Amount
	}
	if filled != nil {
		o.FilledAmount = new(big.Int).Add(o.FilledAmount, filled)
	}
	if o.RemainingAmount.Sign() == 0 {
		o.State = order.StateSettled
		defer m.clearBids(orderHash)
	} else {
		// Partial fill settled; the order keeps accepting new bids
		// against its remaining_amount (spec.md §4.4).
		o.State = order.StateBidding
	}
	o.UpdatedAt = m.clock.Now().UTC()
	return m.orders.Save(o)
}

// OnTimelockExpired handles BothLocked -> Refunding when no reveal
// arrived before chain's leg's timelock elapsed (spec.md §4.5). The
// refund is submitted under the same retry policy as every other leg
// transaction; neither this method nor the relayer's expiry ticker bumps
// the fee of a refund that does not confirm.
func (m *Machine) OnTimelockExpired(ctx context.Context, orderHash cryptoutil.Hash, instanceID InstanceID, chain chainadapter.Chain) error {
	if err := m.store.SetState(orderHash, instanceID, correlation.SwapRefunding); err != nil {
		return err
	}

	rec, found, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil || !found {
		return err
	}
	leg := rec.LegFor(chain)
	if leg == nil || leg.State == correlation.LegRefunded {
		return m.maybeRefunded(orderHash, instanceID)
	}

	ref := chainadapter.HTLCRef{Chain: chain, HTLCID: leg.HTLCID}
	tx, err := m.adapterFor(chain).EncodeHTLCRefund(ref)
	if err != nil {
		return fmt.Errorf("encode refund on %s: %w", chain, err)
	}

	txID, err := m.submitLeg(ctx, chain, tx)
	if err != nil {
		return fmt.Errorf("submit refund on %s: %w", chain, err)
	}

	leg.TxIDRefund = txID
	leg.State = correlation.LegRefunded
	if err := m.putLeg(orderHash, instanceID, rec, chain, leg); err != nil {
		return err
	}

	return m.maybeRefunded(orderHash, instanceID)
}

// maybeRefunded transitions Refunding -> Refunded once every locked leg
// is Refunded (spec.md §4.5, §8 invariant 5), restoring the debited
// input_amount onto the order (§8 invariant 6).
func (m *Machine) maybeRefunded(orderHash cryptoutil.Hash, instanceID InstanceID) error {
	rec, found, err := m.store.LookupByOrder(orderHash, instanceID)
	if err != nil || !found {
		return err
	}
	if legNeedsRefund(rec.EvmLeg) || legNeedsRefund(rec.AlgoLeg) {
		return nil
	}
	if err := m.store.SetState(orderHash, instanceID, correlation.SwapRefunded); err != nil {
		return err
	}
	if err := m.restoreRemaining(orderHash, rec); err != nil {
		return err
	}
	// remaining_amount just changed; any bid sized against the old
	// figure is stale, so resolvers must re-bid into the reopened round.
	m.clearBids(orderHash)
	return nil
}

func legNeedsRefund(leg *correlation.HtlcLeg) bool {
	if leg == nil {
		return false
	}
	return leg.State == correlation.LegLocked
}

// restoreRemaining restores a Refunded instance's debited input_amount
// back onto the order's remaining_amount (spec.md §4.5, §8 invariant 6).
func (m *Machine) restoreRemaining(orderHash cryptoutil.Hash, rec correlation.Record) error {
	o, found, err := m.orders.Get(orderHash)
	if err != nil || !found {
		return err
	}
	amount := big.NewInt(0)
	if rec.EvmLeg != nil && rec.EvmLeg.Amount != nil {
		amount = rec.EvmLeg.Amount
	} else if rec.AlgoLeg != nil && rec.AlgoLeg.Amount != nil {
		amount = rec.AlgoLeg.Amount
	}
	o.InFlightAmount = new(big.Int).Sub(o.InFlightAmount, amount)
	o.RemainingAmount = new(big.Int).Add(o.RemainingAmount, amount)
	o.State = order.StateBidding
	o.UpdatedAt = m.clock.Now().UTC()
	return m.orders.Save(o)
}

// fail transitions an instance to Failed (spec.md §7 "protocol
// violation... triggers Failed state; alerts operator; no automatic
// recovery because funds may be stuck pending timelock").
func (m *Machine) fail(orderHash cryptoutil.Hash, instanceID InstanceID, cause error) error {
	m.log.Errorw("htlc instance failed", "order_hash", orderHash.String(), "instance", instanceID, "cause", cause)
	if err := m.store.SetState(orderHash, instanceID, correlation.SwapFailed); err != nil {
		return err
	}
	m.alert(context.Background(), orderHash, cause.Error())
	m.clearBids(orderHash)
	return cause
}

func dstChainFor(dir order.Direction) chainadapter.Chain {
	if dir == order.EthToAlgo {
		return chainadapter.ChainAlgo
	}
	return chainadapter.ChainEvm
}

func destRecipient(o *order.Order, bid auction.Bid) string {
	if o.Intent.Direction() == order.EthToAlgo {
		return o.Intent.AlgorandAddress
	}
	return bid.Resolver.Hex()
}
