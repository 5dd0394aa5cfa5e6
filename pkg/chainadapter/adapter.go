// Package chainadapter implements the ChainAdapter interface (spec.md
// §4.2) with two concrete implementations: EvmAdapter (Ethereum
// Sepolia, via go-ethereum) and AlgoAdapter (Algorand, via the official
// algorand SDK). All chain-specific encoding lives here; callers above
// this package only see chain-agnostic types.
package chainadapter

import (
	"context"
	"math/big"
	"time"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// Chain identifies which of the two chains an event, leg, or tx belongs to.
type Chain string

const (
	ChainEvm  Chain = "evm"
	ChainAlgo Chain = "algo"
)

// TxID is an opaque, chain-specific transaction identifier (0x-hex on
// EVM, base32 txid on Algorand).
type TxID string

// Receipt is the confirmed outcome of a submitted transaction.
type Receipt struct {
	TxID          TxID
	Chain         Chain
	BlockNumber   uint64
	Confirmations uint64
	Success       bool
	RevertReason  string
}

// HTLCRef addresses a single HTLC leg for claim/refund encoding.
type HTLCRef struct {
	Chain  Chain
	HTLCID string // EVM: orderHash hex; Algorand: id of the create_htlc transaction
}

// TxShape describes the rough shape of a transaction for fee estimation
// (spec.md "estimate_fee(tx_shape) -> fee") without committing to any
// particular encoding.
type TxShape struct {
	Kind      string // "create" | "claim" | "refund" | "order"
	HasValue  bool
	ByteSize  int
}

// Fee is a chain-native fee estimate.
type Fee struct {
	Chain  Chain
	Amount *big.Int // wei for EVM, microAlgos for Algorand
}

// SignerKeyRef is an opaque reference to key material (§1: key
// management is out of scope; the adapter never sees raw keys, only a
// reference it hands to an injected Signer).
type SignerKeyRef string

// UnsignedTx is an opaque, chain-specific encoded transaction payload
// produced by one of the Encode* methods and consumed by SubmitTx.
type UnsignedTx struct {
	Chain   Chain
	Payload []byte
	// GroupPayload holds a second transaction that must be submitted
	// atomically with Payload under one group id — used only by
	// AlgoAdapter's HTLC-create, which groups a funding payment with
	// the app-call (spec.md §4.2).
	GroupPayload []byte
}

// Error kinds returned by SubmitTx / WaitForConfirmation, spec.md §4.2/§7.
type ErrorKind string

const (
	ErrInsufficientFunds ErrorKind = "InsufficientFunds"
	ErrRejected          ErrorKind = "Rejected"
	ErrNetwork           ErrorKind = "Network"
	ErrNonce             ErrorKind = "Nonce"
	ErrReverted          ErrorKind = "Reverted"
	ErrTimeout           ErrorKind = "Timeout"
)

// AdapterError tags a chain error with its recovery class so callers can
// branch without string-matching (spec.md §7 taxonomy).
type AdapterError struct {
	Kind ErrorKind
	Err  error
}

func (e *AdapterError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *AdapterError) Unwrap() error { return e.Err }

// Transient reports whether this error class should be retried with
// backoff rather than treated as a permanent failure (spec.md §7).
func (e *AdapterError) Transient() bool {
	switch e.Kind {
	case ErrNetwork, ErrTimeout:
		return true
	default:
		return false
	}
}

// Event is the sum type the dual-chain monitor consumes (spec.md §9
// "callback/event-emitter chains -> typed event queue").
type Event struct {
	Chain       Chain
	Kind        EventKind
	BlockNumber uint64
	TxID        TxID
	OrderHash   cryptoutil.Hash
	HTLCID      string
	Hashlock    cryptoutil.Hash
	Timelock    time.Time
	Amount      *big.Int
	Recipient   string
	Secret      *cryptoutil.Secret
	Bid         *BidEvent
}

// BidEvent carries BidPlaced/BestBidSelected payload fields. BidID is the
// Resolver contract's own per-order bid array index (decimal string) —
// the relayer never invents its own bid identifier, it reuses whatever
// index selectBestBidAndExecute will later reference.
type BidEvent struct {
	BidID        string
	Resolver     string
	InputAmount  *big.Int
	OutputAmount *big.Int
	GasEstimate  *big.Int
}

// EventKind enumerates the members of spec.md §9's Event sum type.
type EventKind string

const (
	EvtEvmOrderCreated      EventKind = "EvmOrderCreated"
	EvtEvmBidPlaced         EventKind = "EvmBidPlaced"
	EvtEvmBestBidSelected   EventKind = "EvmBestBidSelected"
	EvtEvmPartialFill       EventKind = "EvmPartialFill"
	EvtEvmHTLCCreated       EventKind = "EvmHTLCCreated"
	EvtEvmClaimed           EventKind = "EvmClaimed"
	EvtEvmRefunded          EventKind = "EvmRefunded"
	EvtAlgoHTLCCreated      EventKind = "AlgoHtlcCreated"
	EvtAlgoHTLCClaimed      EventKind = "AlgoHtlcClaimed"
	EvtAlgoHTLCRefunded     EventKind = "AlgoHtlcRefunded"
	EvtCheckpoint           EventKind = "Checkpoint"
	EvtTimer                EventKind = "Timer"
)

// EventFilter narrows subscribe_events to the topics/addresses the
// caller cares about; chain-specific adapters translate this into their
// native log filter / indexer query.
type EventFilter struct {
	Kinds []EventKind
}

// Subscription is a restartable, cancellable event stream handle.
type Subscription interface {
	// Events yields typed events in best-effort FIFO order per chain.
	// The adapter emits an EvtCheckpoint at least every CheckpointBlocks
	// blocks so the consumer can persist progress (spec.md §4.2).
	Events() <-chan Event
	Err() <-chan error
	Close() error
}

// CheckpointBlocks bounds how long a consumer may go without being able
// to persist progress during a quiet stream.
const CheckpointBlocks = 50

// Adapter is the chain-agnostic interface both EvmAdapter and
// AlgoAdapter implement (spec.md §4.2). All operations are cancellable
// via ctx and asynchronous in the sense that they may block on network
// I/O — the only suspension points in the system (spec.md §5).
type Adapter interface {
	Chain() Chain

	GetHeight(ctx context.Context) (uint64, error)
	GetBalance(ctx context.Context, account string) (*big.Int, error)

	SubmitTx(ctx context.Context, tx UnsignedTx, signer SignerKeyRef) (TxID, error)
	WaitForConfirmation(ctx context.Context, txID TxID, minConfirmations uint64) (Receipt, error)

	SubscribeEvents(ctx context.Context, fromBlock uint64, filter EventFilter) (Subscription, error)

	EstimateFee(ctx context.Context, shape TxShape) (Fee, error)

	EncodeHTLCCreate(hashlock cryptoutil.Hash, timelock time.Time, amount *big.Int, recipient string, aux map[string]string) (UnsignedTx, error)
	EncodeHTLCClaim(ref HTLCRef, secret cryptoutil.Secret) (UnsignedTx, error)
	EncodeHTLCRefund(ref HTLCRef) (UnsignedTx, error)

	// GetRevealedSecret reads back a secret already revealed on chain
	// (the Resolver contract's getRevealedSecret view, spec.md §6),
	// found=false before any reveal has happened.
	GetRevealedSecret(ctx context.Context, orderHash cryptoutil.Hash) (cryptoutil.Secret, bool, error)
}
