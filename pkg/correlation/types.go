// Package correlation implements CorrelationStore (spec.md §4.6): the
// durable, crash-recoverable mapping between order hash, per-chain HTLC
// leg, revealed secret, and swap lifecycle state. It holds only data
// types and a storage-backed Store — the state machine that drives
// transitions lives in pkg/htlc and depends on this package, never the
// other way (spec.md §9: "model as one-way borrows").
package correlation

import (
	"math/big"
	"time"

	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// LegState is the per-chain HTLC leg lifecycle (spec.md §3 "HtlcLeg").
type LegState string

const (
	LegPending  LegState = "Pending"
	LegLocked   LegState = "Locked"
	LegClaimed  LegState = "Claimed"
	LegRefunded LegState = "Refunded"
	LegExpired  LegState = "Expired"
)

// HtlcLeg is one chain's half of a fully-bound swap.
type HtlcLeg struct {
	Chain      chainadapter.Chain
	HTLCID     string
	Amount     *big.Int
	Recipient  string
	Hashlock   cryptoutil.Hash
	Timelock   time.Time
	TxIDCreate chainadapter.TxID
	TxIDClaim  chainadapter.TxID
	TxIDRefund chainadapter.TxID
	State      LegState
}

// SwapState is the HtlcStateMachine's state for one selected-bid instance
// (spec.md §4.5). A single Order may own multiple instances across
// partial fills, each with its own CorrelationRecord.
type SwapState string

// This enum follows spec.md §4.5's transition table rather than its
// states summary line: the table names the in-flight destination-lock
// stage "ExecutingDst" and never separately names "DstLocked", so the
// two are treated as the same stage here (an Open Question resolved in
// favor of the unambiguous table).
const (
	SwapCreated        SwapState = "Created"
	SwapSrcLocked      SwapState = "SrcLocked"
	SwapExecutingDst   SwapState = "ExecutingDst"
	SwapBothLocked     SwapState = "BothLocked"
	SwapSecretRevealed SwapState = "SecretRevealed"
	SwapDstClaimed     SwapState = "DstClaimed"
	SwapSrcClaimed     SwapState = "SrcClaimed"
	SwapSettled        SwapState = "Settled"
	SwapRefunding      SwapState = "Refunding"
	SwapRefunded       SwapState = "Refunded"
	SwapFailed         SwapState = "Failed"
)

func (s SwapState) IsTerminal() bool {
	return s == SwapSettled || s == SwapRefunded || s == SwapFailed
}

// Record is the Correlation record keyed by order_hash, with secondary
// indices on (chain, htlc_id) for lookup_by_leg (spec.md §3/§4.6).
type Record struct {
	OrderHash  cryptoutil.Hash
	InstanceID string // distinguishes partial-fill instances of one order
	EvmLeg     *HtlcLeg
	AlgoLeg    *HtlcLeg
	Secret     *cryptoutil.Secret
	SwapState  SwapState
	LastUpdate time.Time
}

// LegFor returns the leg for the given chain, or nil if unset.
func (r *Record) LegFor(chain chainadapter.Chain) *HtlcLeg {
	if chain == chainadapter.ChainEvm {
		return r.EvmLeg
	}
	return r.AlgoLeg
}

// Hashlock returns whichever leg's hashlock is already known; both legs
// of one instance always carry the same value once both are set (spec.md
// §8 invariant 3).
func (r *Record) Hashlock() cryptoutil.Hash {
	if r.EvmLeg != nil {
		return r.EvmLeg.Hashlock
	}
	if r.AlgoLeg != nil {
		return r.AlgoLeg.Hashlock
	}
	return cryptoutil.Hash{}
}
