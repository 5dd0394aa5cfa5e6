package api

// Response and WebSocket message types for the status/query API
// (SPEC_FULL.md §3 "Read-only status/query API").

// OrderInfo is the public projection of an order.Order.
type OrderInfo struct {
	OrderHash       string `json:"orderHash"`
	Maker           string `json:"maker"`
	Direction       string `json:"direction"`
	MakerAmount     string `json:"makerAmount"`
	TakerAmount     string `json:"takerAmount"`
	FilledAmount    string `json:"filledAmount"`
	RemainingAmount string `json:"remainingAmount"`
	InFlightAmount  string `json:"inFlightAmount"`
	State           string `json:"state"`
	Deadline        int64  `json:"deadline"`
	WinningBidID    string `json:"winningBidId,omitempty"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
}

// BidInfo is the public projection of an auction.Bid.
type BidInfo struct {
	BidID        string `json:"bidId"`
	Resolver     string `json:"resolver"`
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`
	GasEstimate  string `json:"gasEstimate"`
	PlacedAt     int64  `json:"placedAt"`
	Active       bool   `json:"active"`
}

// LegInfo is the public projection of one chain's correlation.HtlcLeg.
type LegInfo struct {
	Chain      string `json:"chain"`
	HTLCID     string `json:"htlcId,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Hashlock   string `json:"hashlock,omitempty"`
	Timelock   int64  `json:"timelock,omitempty"`
	State      string `json:"state,omitempty"`
	TxIDCreate string `json:"txIdCreate,omitempty"`
	TxIDClaim  string `json:"txIdClaim,omitempty"`
	TxIDRefund string `json:"txIdRefund,omitempty"`
}

// SwapInfo reports one HtlcStateMachine instance for an order.
type SwapInfo struct {
	OrderHash  string   `json:"orderHash"`
	InstanceID string   `json:"instanceId"`
	SwapState  string   `json:"swapState"`
	EvmLeg     *LegInfo `json:"evmLeg,omitempty"`
	AlgoLeg    *LegInfo `json:"algoLeg,omitempty"`
	LastUpdate int64    `json:"lastUpdate"`
}

// HealthStatus is the /v1/health payload.
type HealthStatus struct {
	Status        string `json:"status"`
	EvmHeight     uint64 `json:"evmHeight"`
	AlgoHeight    uint64 `json:"algoHeight"`
	EvmCheckpoint uint64 `json:"evmCheckpoint"`
	AlgoCheckpoint uint64 `json:"algoCheckpoint"`
}

// ErrorResponse is returned for all non-2xx responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WSMessage wraps every message pushed on the /v1/stream websocket.
type WSMessage struct {
	Type string      `json:"type"` // "swap"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by a client to scope the stream to one order.
type WSSubscribeRequest struct {
	Op        string `json:"op"` // "subscribe" or "unsubscribe"
	OrderHash string `json:"orderHash"`
}
