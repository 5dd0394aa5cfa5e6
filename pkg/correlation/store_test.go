package correlation

import (
	"path/filepath"
	"testing"

	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

func newTestStore(t *testing.T) *PebbleStore {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "corr"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPebbleStore(db)
}

func TestPutMappingAndLookupByOrder(t *testing.T) {
	s := newTestStore(t)
	secret, _ := cryptoutil.RandomSecret()
	hashlock := cryptoutil.HashlockFor(secret)
	orderHash := cryptoutil.Keccak256([]byte("order-1"))

	evmLeg := &HtlcLeg{Chain: chainadapter.ChainEvm, HTLCID: "0xabc", Hashlock: hashlock, State: LegLocked}
	if err := s.PutMapping(orderHash, "0", evmLeg, nil); err != nil {
		t.Fatalf("put mapping: %v", err)
	}

	rec, found, err := s.LookupByOrder(orderHash, "0")
	if err != nil || !found {
		t.Fatalf("lookup by order: found=%v err=%v", found, err)
	}
	if rec.EvmLeg == nil || rec.EvmLeg.HTLCID != "0xabc" {
		t.Fatalf("unexpected evm leg: %+v", rec.EvmLeg)
	}
	if rec.SwapState != SwapCreated {
		t.Fatalf("expected fresh record in SwapCreated, got %s", rec.SwapState)
	}
}

func TestLookupByLegSecondaryIndex(t *testing.T) {
	s := newTestStore(t)
	orderHash := cryptoutil.Keccak256([]byte("order-2"))
	evmLeg := &HtlcLeg{Chain: chainadapter.ChainEvm, HTLCID: "0xdef"}
	if err := s.PutMapping(orderHash, "0", evmLeg, nil); err != nil {
		t.Fatalf("put mapping: %v", err)
	}

	rec, found, err := s.LookupByLeg(chainadapter.ChainEvm, "0xdef")
	if err != nil || !found {
		t.Fatalf("lookup by leg: found=%v err=%v", found, err)
	}
	if rec.OrderHash != orderHash {
		t.Fatalf("leg index resolved to wrong order: got %s want %s", rec.OrderHash, orderHash)
	}
}

func TestSetSecretRequiresExistingRecord(t *testing.T) {
	s := newTestStore(t)
	orderHash := cryptoutil.Keccak256([]byte("order-3"))
	secret, _ := cryptoutil.RandomSecret()
	if err := s.SetSecret(orderHash, "0", secret); err == nil {
		t.Fatal("expected error setting secret on missing record")
	}
}

func TestIterActiveSkipsTerminalRecords(t *testing.T) {
	s := newTestStore(t)
	active := cryptoutil.Keccak256([]byte("active"))
	settled := cryptoutil.Keccak256([]byte("settled"))

	if err := s.PutMapping(active, "0", &HtlcLeg{Chain: chainadapter.ChainEvm}, nil); err != nil {
		t.Fatalf("put active: %v", err)
	}
	if err := s.PutMapping(settled, "0", &HtlcLeg{Chain: chainadapter.ChainEvm}, nil); err != nil {
		t.Fatalf("put settled: %v", err)
	}
	if err := s.SetState(settled, "0", SwapSettled); err != nil {
		t.Fatalf("set state: %v", err)
	}

	var seen []string
	err := s.IterActive(func(r Record) error {
		seen = append(seen, r.OrderHash.String())
		return nil
	})
	if err != nil {
		t.Fatalf("iter active: %v", err)
	}
	if len(seen) != 1 || seen[0] != active.String() {
		t.Fatalf("expected only active record, got %v", seen)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if _, found, _ := s.LastCheckpoint(chainadapter.ChainEvm); found {
		t.Fatal("expected no checkpoint initially")
	}
	if err := s.Checkpoint(chainadapter.ChainEvm, 12345); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	n, found, err := s.LastCheckpoint(chainadapter.ChainEvm)
	if err != nil || !found || n != 12345 {
		t.Fatalf("last checkpoint: n=%d found=%v err=%v", n, found, err)
	}
}
