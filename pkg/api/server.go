package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/order"
)

// Server exposes the read-only status/query API a relayer operator or a
// resolver's bidding bot polls against (SPEC_FULL.md §3). It never
// accepts writes — intents, bids, and secrets arrive through the chain
// adapters, not this surface.
type Server struct {
	orders   *order.Store
	auctions *auction.Store
	corr     correlation.Store
	evm      chainadapter.Adapter
	algo     chainadapter.Adapter

	router *mux.Router
	hub    *swapHub
	log    *zap.SugaredLogger
}

func NewServer(orders *order.Store, auctions *auction.Store, corr correlation.Store, evm, algo chainadapter.Adapter, log *zap.SugaredLogger) *Server {
	s := &Server{
		orders:   orders,
		auctions: auctions,
		corr:     corr,
		evm:      evm,
		algo:     algo,
		router:   mux.NewRouter(),
		hub:      newSwapHub(log),
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	v1.HandleFunc("/orders/{orderHash}", s.handleGetOrder).Methods("GET")
	v1.HandleFunc("/orders/{orderHash}/bids", s.handleListBids).Methods("GET")
	v1.HandleFunc("/swaps/{orderHash}", s.handleGetSwaps).Methods("GET")
	v1.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/v1/stream", s.handleWebSocket)
}

// Start runs the hub and the HTTP server; it blocks until the listener
// returns an error (mirrors the teacher's ListenAndServe-in-Start shape).
func (s *Server) Start(addr string) error {
	go s.hub.run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Infow("api server starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.ListFilter{}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}
	if st := q.Get("state"); st != "" {
		filter.States = []order.State{order.State(st)}
	}

	orders, err := s.orders.List(filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list failed", err.Error())
		return
	}

	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = toOrderInfo(o)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hash, err := parseOrderHash(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order hash", err.Error())
		return
	}

	o, found, err := s.orders.Get(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "lookup failed", err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "order not found", "")
		return
	}
	respondJSON(w, toOrderInfo(o))
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	hash, err := parseOrderHash(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order hash", err.Error())
		return
	}

	bids, err := s.auctions.ListActive(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list bids failed", err.Error())
		return
	}

	out := make([]BidInfo, len(bids))
	for i, b := range bids {
		out[i] = toBidInfo(b)
	}
	respondJSON(w, out)
}

// handleGetSwaps reports every HtlcStateMachine instance seen for an
// order: the pre-selection base record plus one per selected bid. The
// correlation store has no order-scoped index, so this walks the
// order's known bid ids rather than a full table scan.
func (s *Server) handleGetSwaps(w http.ResponseWriter, r *http.Request) {
	hash, err := parseOrderHash(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order hash", err.Error())
		return
	}

	var out []SwapInfo
	if rec, found, err := s.corr.LookupByOrder(hash, "0"); err == nil && found {
		out = append(out, toSwapInfo(rec))
	}

	bids, err := s.auctions.ListActive(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list bids failed", err.Error())
		return
	}
	for _, b := range bids {
		if rec, found, err := s.corr.LookupByOrder(hash, b.BidID); err == nil && found {
			out = append(out, toSwapInfo(rec))
		}
	}

	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok"}
	if h, err := s.evm.GetHeight(r.Context()); err == nil {
		status.EvmHeight = h
	}
	if h, err := s.algo.GetHeight(r.Context()); err == nil {
		status.AlgoHeight = h
	}
	if cp, found, err := s.corr.LastCheckpoint(chainadapter.ChainEvm); err == nil && found {
		status.EvmCheckpoint = cp
	}
	if cp, found, err := s.corr.LastCheckpoint(chainadapter.ChainAlgo); err == nil && found {
		status.AlgoCheckpoint = cp
	}
	respondJSON(w, status)
}

// BroadcastSwap pushes a swap-state transition to every client watching
// this order, plus anyone subscribed to the wildcard feed. Nothing in
// this module calls it: the Relayer does not publish its
// HtlcStateMachine transitions here, so /v1/stream carries only what a
// caller of BroadcastSwap sends.
func (s *Server) BroadcastSwap(rec correlation.Record) {
	info := toSwapInfo(rec)
	s.hub.broadcastToChannel("swap:"+rec.OrderHash.String(), WSMessage{Type: "swap", Data: info})
	s.hub.broadcastToChannel("swap:*", WSMessage{Type: "swap", Data: info})
}

func parseOrderHash(r *http.Request) (cryptoutil.Hash, error) {
	return cryptoutil.HashFromHex(mux.Vars(r)["orderHash"])
}

func toOrderInfo(o *order.Order) OrderInfo {
	return OrderInfo{
		OrderHash:       o.OrderHash.String(),
		Maker:           o.Intent.Maker.Hex(),
		Direction:       o.Intent.Direction().String(),
		MakerAmount:     o.Intent.MakerAmount.String(),
		TakerAmount:     o.Intent.TakerAmount.String(),
		FilledAmount:    o.FilledAmount.String(),
		RemainingAmount: o.RemainingAmount.String(),
		InFlightAmount:  o.InFlightAmount.String(),
		State:           string(o.State),
		Deadline:        o.Intent.Deadline.Unix(),
		WinningBidID:    o.WinningBidID,
		CreatedAt:       o.CreatedAt.Unix(),
		UpdatedAt:       o.UpdatedAt.Unix(),
	}
}

func toBidInfo(b *auction.Bid) BidInfo {
	gas := "0"
	if b.GasEstimate != nil {
		gas = b.GasEstimate.String()
	}
	return BidInfo{
		BidID:        b.BidID,
		Resolver:     b.Resolver.Hex(),
		InputAmount:  b.InputAmount.String(),
		OutputAmount: b.OutputAmount.String(),
		GasEstimate:  gas,
		PlacedAt:     b.PlacedAt.Unix(),
		Active:       b.Active,
	}
}

func toSwapInfo(rec correlation.Record) SwapInfo {
	info := SwapInfo{
		OrderHash:  rec.OrderHash.String(),
		InstanceID: rec.InstanceID,
		SwapState:  string(rec.SwapState),
		LastUpdate: rec.LastUpdate.Unix(),
	}
	if rec.EvmLeg != nil {
		info.EvmLeg = toLegInfo(rec.EvmLeg)
	}
	if rec.AlgoLeg != nil {
		info.AlgoLeg = toLegInfo(rec.AlgoLeg)
	}
	return info
}

func toLegInfo(leg *correlation.HtlcLeg) *LegInfo {
	out := &LegInfo{
		Chain:      string(leg.Chain),
		HTLCID:     leg.HTLCID,
		Hashlock:   leg.Hashlock.String(),
		State:      string(leg.State),
		TxIDCreate: string(leg.TxIDCreate),
		TxIDClaim:  string(leg.TxIDClaim),
		TxIDRefund: string(leg.TxIDRefund),
	}
	if leg.Amount != nil {
		out.Amount = leg.Amount.String()
	}
	if !leg.Timelock.IsZero() {
		out.Timelock = leg.Timelock.Unix()
	}
	return out
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
