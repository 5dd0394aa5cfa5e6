package auction

import "github.com/ethereum/go-ethereum/common"

// OpenWhitelist authorizes every resolver (spec.md §4.4's whitelist is
// optional — an operator who hasn't configured one runs permissionless).
type OpenWhitelist struct{}

func (OpenWhitelist) IsAuthorized(common.Address) bool { return true }

// StaticWhitelist authorizes only a fixed, configured set of resolvers.
type StaticWhitelist struct {
	allowed map[common.Address]struct{}
}

func NewStaticWhitelist(addrs []common.Address) *StaticWhitelist {
	allowed := make(map[common.Address]struct{}, len(addrs))
	for _, a := range addrs {
		allowed[a] = struct{}{}
	}
	return &StaticWhitelist{allowed: allowed}
}

func (w *StaticWhitelist) IsAuthorized(addr common.Address) bool {
	_, ok := w.allowed[addr]
	return ok
}
