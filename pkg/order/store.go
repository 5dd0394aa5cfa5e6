package order

import (
	"encoding/json"
	"fmt"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/storage"
)

// Store persists Order records in the shared storage.Store.
type Store struct {
	db *storage.Store
}

func NewStore(db *storage.Store) *Store { return &Store{db: db} }

func (s *Store) Save(o *Order) error {
	val, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", o.OrderHash, err)
	}
	return s.db.Put(storage.OrderKey(o.OrderHash.String()), val)
}

func (s *Store) Get(orderHash cryptoutil.Hash) (*Order, bool, error) {
	val, found, err := s.db.Get(storage.OrderKey(orderHash.String()))
	if err != nil || !found {
		return nil, found, err
	}
	var o Order
	if err := json.Unmarshal(val, &o); err != nil {
		return nil, false, fmt.Errorf("unmarshal order %s: %w", orderHash, err)
	}
	return &o, true, nil
}

// List scans every persisted order and applies filter in-process. Order
// volume for this system is modest enough that a secondary index isn't
// worth the complexity yet (spec.md §4.3 "finite; may be paged").
func (s *Store) List(filter ListFilter) ([]*Order, error) {
	var matched []*Order
	err := s.db.ScanPrefix(storage.OrderPrefix(), func(_, value []byte) error {
		var o Order
		if err := json.Unmarshal(value, &o); err != nil {
			return fmt.Errorf("unmarshal order: %w", err)
		}
		if matchesFilter(&o, filter) {
			matched = append(matched, &o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matchesFilter(o *Order, filter ListFilter) bool {
	if filter.Maker != nil && o.Intent.Maker != *filter.Maker {
		return false
	}
	if filter.Direction != 0 && o.Intent.Direction() != filter.Direction {
		return false
	}
	if len(filter.States) > 0 {
		ok := false
		for _, st := range filter.States {
			if o.State == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
