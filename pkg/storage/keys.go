// Package storage provides the single embedded Pebble database the
// relayer process opens once and shares between order persistence and
// the correlation store (spec.md §6: "one data directory... no other
// files"). Key layout follows the teacher's prefix-per-concern scheme.
package storage

import "fmt"

const (
	prefixOrder       = "ord:"
	prefixCorrelation = "cor:"
	prefixLegIndex    = "leg:"
	prefixCheckpoint  = "chk:"
	prefixBid         = "bid:"
)

// OrderKey is the persistence key for an Order record, keyed by order hash.
func OrderKey(orderHash string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixOrder, orderHash))
}

// OrderPrefix bounds a scan over all Order records.
func OrderPrefix() []byte { return []byte(prefixOrder) }

// CorrelationKey is the persistence key for a CorrelationRecord. The
// correlation store passes "orderHash:instanceID", so records are keyed by
// order hash and instance id (the primary index; spec.md §4.3).
func CorrelationKey(orderHash string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixCorrelation, orderHash))
}

// CorrelationPrefix bounds a scan over all correlation records (iter_active).
func CorrelationPrefix() []byte { return []byte(prefixCorrelation) }

// LegIndexKey supports lookup_by_leg(chain, htlc_id) without a full scan
// (spec.md §4.3's secondary index).
func LegIndexKey(chain, htlcID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixLegIndex, chain, htlcID))
}

// CheckpointKey is the per-chain last-processed-block marker.
func CheckpointKey(chain string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixCheckpoint, chain))
}

// BidKey is the persistence key for a Bid, keyed by its owning order and
// bid id so every bid for an order sorts contiguously.
func BidKey(orderHash, bidID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBid, orderHash, bidID))
}

// BidPrefix bounds a scan over every bid belonging to one order.
func BidPrefix(orderHash string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixBid, orderHash))
}

// KeyUpperBound returns the exclusive upper bound for a prefix scan.
func KeyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
