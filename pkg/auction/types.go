// Package auction implements AuctionEngine: per-order bid collection,
// feasibility checks, deterministic best-bid ranking, and selection
// (spec.md §3, §4.4).
package auction

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// Bid is a resolver's offer to fill (part of) an order (spec.md §3).
type Bid struct {
	BidID       string
	OrderHash   cryptoutil.Hash
	Resolver    common.Address
	InputAmount *big.Int
	OutputAmount *big.Int
	GasEstimate *big.Int
	PlacedAt    time.Time
	Active      bool
}

// better reports whether a ranks strictly ahead of b under spec.md §3's
// ordering: maximize output/input, tie-break by lower gas_estimate, then
// by earliest placed_at. Ratios are compared by cross-multiplication on
// big.Int so no value is ever converted to floating point (spec.md §4.4).
func better(a, b *Bid) bool {
	lhs := new(big.Int).Mul(a.OutputAmount, b.InputAmount)
	rhs := new(big.Int).Mul(b.OutputAmount, a.InputAmount)
	if cmp := lhs.Cmp(rhs); cmp != 0 {
		return cmp > 0
	}
	if cmp := a.GasEstimate.Cmp(b.GasEstimate); cmp != 0 {
		return cmp < 0
	}
	return a.PlacedAt.Before(b.PlacedAt)
}
