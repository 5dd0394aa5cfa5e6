package auction

import (
	"encoding/json"
	"fmt"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

// Store persists Bid records, scoped per order (spec.md §3 "Bid... owned
// by Order").
type Store struct {
	db *storage.Store
}

func NewStore(db *storage.Store) *Store { return &Store{db: db} }

func (s *Store) Save(b *Bid) error {
	val, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bid %s: %w", b.BidID, err)
	}
	return s.db.Put(storage.BidKey(b.OrderHash.String(), b.BidID), val)
}

func (s *Store) Get(orderHash cryptoutil.Hash, bidID string) (*Bid, bool, error) {
	val, found, err := s.db.Get(storage.BidKey(orderHash.String(), bidID))
	if err != nil || !found {
		return nil, found, err
	}
	var b Bid
	if err := json.Unmarshal(val, &b); err != nil {
		return nil, false, fmt.Errorf("unmarshal bid %s: %w", bidID, err)
	}
	return &b, true, nil
}

// ListActive returns every active bid placed against an order.
func (s *Store) ListActive(orderHash cryptoutil.Hash) ([]*Bid, error) {
	var bids []*Bid
	err := s.db.ScanPrefix(storage.BidPrefix(orderHash.String()), func(_, value []byte) error {
		var b Bid
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("unmarshal bid: %w", err)
		}
		if b.Active {
			bids = append(bids, &b)
		}
		return nil
	})
	return bids, err
}

// DeleteAll removes every bid for an order, called once it reaches a
// terminal state (spec.md §3 "Bids are owned by their Order and deleted
// when the Order becomes terminal").
func (s *Store) DeleteAll(orderHash cryptoutil.Hash) error {
	active, err := s.ListActive(orderHash)
	if err != nil {
		return err
	}
	for _, b := range active {
		if err := s.db.Delete(storage.BidKey(orderHash.String(), b.BidID)); err != nil {
			return err
		}
	}
	return nil
}
