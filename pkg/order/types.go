// Package order implements OrderEngine: accepting signed intents,
// canonicalizing and hashing them, validating against the Resolver
// contract's rules, and tracking fill progress (spec.md §3, §4.3).
package order

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// Direction is the swap's tagged direction, spec.md §3.
type Direction uint8

const (
	EthToAlgo Direction = iota + 1
	AlgoToEth
)

func (d Direction) String() string {
	switch d {
	case EthToAlgo:
		return "EthToAlgo"
	case AlgoToEth:
		return "AlgoToEth"
	default:
		return "Unknown"
	}
}

// Intent is the maker's signed, content-addressed description of the
// desired swap (spec.md §3). Field order must match
// cryptoutil.LimitOrderIntent and the deployed contract's EIP-712 type.
type Intent struct {
	Maker             common.Address
	MakerToken        common.Address
	TakerToken        common.Address
	MakerAmount       *big.Int
	TakerAmount       *big.Int
	Deadline          time.Time
	AlgorandChainID   *big.Int
	AlgorandAddress   string
	Salt              *big.Int
	AllowPartialFills bool
	MinPartialFill    *big.Int
}

// Direction derives EthToAlgo vs AlgoToEth from which side is the native
// ETH leg. MakerToken == zero address means the maker is posting ETH.
func (i *Intent) Direction() Direction {
	if (i.MakerToken == common.Address{}) {
		return EthToAlgo
	}
	return AlgoToEth
}

func (i *Intent) eip712() *cryptoutil.LimitOrderIntent {
	return &cryptoutil.LimitOrderIntent{
		Maker:             i.Maker,
		MakerToken:        i.MakerToken,
		TakerToken:        i.TakerToken,
		MakerAmount:       i.MakerAmount,
		TakerAmount:       i.TakerAmount,
		Deadline:          big.NewInt(i.Deadline.Unix()),
		AlgorandChainID:   i.AlgorandChainID,
		AlgorandAddress:   i.AlgorandAddress,
		Salt:              i.Salt,
		AllowPartialFills: i.AllowPartialFills,
		MinPartialFill:    i.MinPartialFill,
	}
}

// State is the Order's lifecycle state, spec.md §3.
type State string

const (
	StateOpen         State = "Open"
	StateBidding      State = "Bidding"
	StateSelected     State = "Selected"
	StateExecutingSrc State = "ExecutingSrc"
	StateExecutingDst State = "ExecutingDst"
	StateSettling     State = "Settling"
	StateSettled      State = "Settled"
	StateRefunded     State = "Refunded"
	StateFailed       State = "Failed"
)

// IsTerminal reports whether an Order in this state is immutable
// (spec.md §3 "Lifecycle & ownership").
func (s State) IsTerminal() bool {
	return s == StateSettled || s == StateRefunded || s == StateFailed
}

// Order is the stateful record created when an Intent is submitted
// on-chain (spec.md §3).
type Order struct {
	OrderHash cryptoutil.Hash
	Intent    Intent
	Signature []byte

	Hashlock cryptoutil.Hash
	Timelock time.Time

	FilledAmount    *big.Int
	RemainingAmount *big.Int
	InFlightAmount  *big.Int

	State State

	WinningBidID string
	EscrowSrc    string
	EscrowDst    string
	Secret       *cryptoutil.Secret

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckSumInvariant validates spec.md §8 invariant 1:
// filled + remaining + in_flight = maker_amount.
func (o *Order) CheckSumInvariant() bool {
	sum := new(big.Int).Add(o.FilledAmount, o.RemainingAmount)
	sum.Add(sum, o.InFlightAmount)
	return sum.Cmp(o.Intent.MakerAmount) == 0
}

// ListFilter narrows list_open_orders queries (spec.md §4.3).
type ListFilter struct {
	Maker     *common.Address
	Direction Direction
	States    []State
	Limit     int
	Offset    int
}
