package correlation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

// Store is the CorrelationStore contract (spec.md §4.6).
type Store interface {
	PutMapping(orderHash cryptoutil.Hash, instanceID string, evmLeg, algoLeg *HtlcLeg) error
	SetSecret(orderHash cryptoutil.Hash, instanceID string, secret cryptoutil.Secret) error
	LookupByOrder(orderHash cryptoutil.Hash, instanceID string) (Record, bool, error)
	LookupByLeg(chain chainadapter.Chain, htlcID string) (Record, bool, error)
	SetState(orderHash cryptoutil.Hash, instanceID string, state SwapState) error
	IterActive(fn func(Record) error) error
	Checkpoint(chain chainadapter.Chain, blockNumber uint64) error
	LastCheckpoint(chain chainadapter.Chain) (uint64, bool, error)
}

// PebbleStore is the Store implementation backed by the shared
// storage.Store (spec.md §4.6: "the implementer may use any embedded
// key-value store").
type PebbleStore struct {
	db *storage.Store
}

func NewPebbleStore(db *storage.Store) *PebbleStore {
	return &PebbleStore{db: db}
}

func recordKey(orderHash cryptoutil.Hash, instanceID string) string {
	return fmt.Sprintf("%s:%s", orderHash.String(), instanceID)
}

// PutMapping creates or replaces the record's legs. After it returns the
// mapping survives a process crash (spec.md §4.6 durability contract):
// Pebble's Sync write mode, used by storage.Store.Put, guarantees this.
func (s *PebbleStore) PutMapping(orderHash cryptoutil.Hash, instanceID string, evmLeg, algoLeg *HtlcLeg) error {
	key := recordKey(orderHash, instanceID)
	rec, found, err := s.getRecord(key)
	if err != nil {
		return err
	}
	if !found {
		rec = Record{OrderHash: orderHash, InstanceID: instanceID, SwapState: SwapCreated}
	}
	rec.EvmLeg = evmLeg
	rec.AlgoLeg = algoLeg
	rec.LastUpdate = time.Now().UTC()

	if err := s.putRecord(key, rec); err != nil {
		return err
	}
	if evmLeg != nil {
		if err := s.db.Put(storage.LegIndexKey(string(chainadapter.ChainEvm), evmLeg.HTLCID), []byte(key)); err != nil {
			return err
		}
	}
	if algoLeg != nil {
		if err := s.db.Put(storage.LegIndexKey(string(chainadapter.ChainAlgo), algoLeg.HTLCID), []byte(key)); err != nil {
			return err
		}
	}
	return nil
}

func (s *PebbleStore) SetSecret(orderHash cryptoutil.Hash, instanceID string, secret cryptoutil.Secret) error {
	key := recordKey(orderHash, instanceID)
	rec, found, err := s.getRecord(key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("correlation record %s not found", key)
	}
	rec.Secret = &secret
	rec.LastUpdate = time.Now().UTC()
	return s.putRecord(key, rec)
}

func (s *PebbleStore) LookupByOrder(orderHash cryptoutil.Hash, instanceID string) (Record, bool, error) {
	return s.getRecord(recordKey(orderHash, instanceID))
}

func (s *PebbleStore) LookupByLeg(chain chainadapter.Chain, htlcID string) (Record, bool, error) {
	key, found, err := s.db.Get(storage.LegIndexKey(string(chain), htlcID))
	if err != nil {
		return Record{}, false, err
	}
	if !found {
		return Record{}, false, nil
	}
	return s.getRecord(string(key))
}

func (s *PebbleStore) SetState(orderHash cryptoutil.Hash, instanceID string, state SwapState) error {
	key := recordKey(orderHash, instanceID)
	rec, found, err := s.getRecord(key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("correlation record %s not found", key)
	}
	rec.SwapState = state
	rec.LastUpdate = time.Now().UTC()
	return s.putRecord(key, rec)
}

// IterActive yields every non-terminal record (spec.md §4.6), used by the
// Relayer's expiry ticker.
func (s *PebbleStore) IterActive(fn func(Record) error) error {
	return s.db.ScanPrefix(storage.CorrelationPrefix(), func(_, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("unmarshal correlation record: %w", err)
		}
		if rec.SwapState.IsTerminal() {
			return nil
		}
		return fn(rec)
	})
}

// Checkpoint atomically records the last chain block consumed (spec.md
// §4.6); on restart the Relayer resubscribes from checkpoint-REORG_DEPTH.
func (s *PebbleStore) Checkpoint(chain chainadapter.Chain, blockNumber uint64) error {
	return s.db.Put(storage.CheckpointKey(string(chain)), []byte(fmt.Sprintf("%d", blockNumber)))
}

func (s *PebbleStore) LastCheckpoint(chain chainadapter.Chain) (uint64, bool, error) {
	val, found, err := s.db.Get(storage.CheckpointKey(string(chain)))
	if err != nil || !found {
		return 0, found, err
	}
	var n uint64
	if _, err := fmt.Sscanf(string(val), "%d", &n); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint for %s: %w", chain, err)
	}
	return n, true, nil
}

func (s *PebbleStore) getRecord(key string) (Record, bool, error) {
	val, found, err := s.db.Get(storage.CorrelationKey(key))
	if err != nil || !found {
		return Record{}, found, err
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, false, fmt.Errorf("unmarshal correlation record %s: %w", key, err)
	}
	return rec, true, nil
}

func (s *PebbleStore) putRecord(key string, rec Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal correlation record %s: %w", key, err)
	}
	return s.db.Put(storage.CorrelationKey(key), val)
}
