package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/order"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

// heightOnlyAdapter answers only the two calls handleHealth needs;
// everything else is unreachable from this package's tests.
type heightOnlyAdapter struct {
	chainadapter.Adapter
	chain  chainadapter.Chain
	height uint64
}

func (a *heightOnlyAdapter) Chain() chainadapter.Chain              { return a.chain }
func (a *heightOnlyAdapter) GetHeight(ctx context.Context) (uint64, error) { return a.height, nil }

func newTestServer(t *testing.T) (*Server, *order.Store, *auction.Store, correlation.Store) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "api"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	orders := order.NewStore(db)
	bids := auction.NewStore(db)
	corr := correlation.NewPebbleStore(db)

	evm := &heightOnlyAdapter{chain: chainadapter.ChainEvm, height: 100}
	algo := &heightOnlyAdapter{chain: chainadapter.ChainAlgo, height: 200}

	s := NewServer(orders, bids, corr, evm, algo, zap.NewNop().Sugar())
	return s, orders, bids, corr
}

func seedOrder(t *testing.T, orders *order.Store, hash cryptoutil.Hash) {
	t.Helper()
	o := &order.Order{
		OrderHash: hash,
		Intent: order.Intent{
			Maker:       common.HexToAddress("0xMaker0000000000000000000000000000000001"),
			MakerAmount: big.NewInt(1_000_000),
			TakerAmount: big.NewInt(2_000_000),
			Deadline:    time.Now().UTC().Add(time.Hour),
		},
		FilledAmount:    big.NewInt(0),
		RemainingAmount: big.NewInt(1_000_000),
		InFlightAmount:  big.NewInt(0),
		State:           order.StateOpen,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if err := orders.Save(o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestHandleListOrdersReturnsSeededOrder(t *testing.T) {
	s, orders, _, _ := newTestServer(t)
	hash := cryptoutil.Keccak256([]byte("api-order-1"))
	seedOrder(t, orders, hash)

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out []OrderInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out) != 1 || out[0].OrderHash != hash.String() {
		t.Fatalf("expected one order matching %s, got %+v", hash.String(), out)
	}
}

func TestHandleGetOrderNotFound(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	hash := cryptoutil.Keccak256([]byte("missing-order"))

	req := httptest.NewRequest(http.MethodGet, "/v1/orders/"+hash.String(), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleHealthReportsBothChainHeights(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.EvmHeight != 100 || status.AlgoHeight != 200 {
		t.Fatalf("expected evm=100 algo=200, got %+v", status)
	}
}
