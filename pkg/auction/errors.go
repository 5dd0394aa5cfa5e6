package auction

import "errors"

var (
	ErrAuctionClosed       = errors.New("auction closed")
	ErrUnauthorizedResolver = errors.New("resolver is not authorized")
	ErrExceedsRemaining    = errors.New("input_amount exceeds remaining_amount")
	ErrPartialFillDisabled = errors.New("order does not allow partial fills")
	ErrBelowMinPartialFill = errors.New("input_amount below min_partial_fill")
	ErrZeroOutput          = errors.New("output_amount must be greater than zero")
	ErrBidTooLate          = errors.New("bid placed past deadline minus bid grace")
	ErrNoBids              = errors.New("no active bids for order")
	ErrBidNotFound         = errors.New("bid not found")
	ErrOrderNotBidding     = errors.New("order is not accepting a selection")
)
