package chainadapter

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// resolverABIJSON is the fixed, deployed Resolver contract's ABI
// (spec.md §6). This core consumes the ABI; it does not generate or own
// the Solidity source, which is explicitly out of scope (§1).
const resolverABIJSON = `[
  {"type":"function","name":"createCrossChainHTLC","stateMutability":"payable",
   "inputs":[
     {"name":"hashlock","type":"bytes32"},
     {"name":"timelock","type":"uint256"},
     {"name":"token","type":"address"},
     {"name":"amount","type":"uint256"},
     {"name":"recipient","type":"address"},
     {"name":"algorandAddress","type":"string"}],
   "outputs":[{"name":"orderHash","type":"bytes32"}]},
  {"type":"function","name":"submitLimitOrder","stateMutability":"payable",
   "inputs":[
     {"name":"intent","type":"tuple","components":[
        {"name":"maker","type":"address"},
        {"name":"makerToken","type":"address"},
        {"name":"takerToken","type":"address"},
        {"name":"makerAmount","type":"uint256"},
        {"name":"takerAmount","type":"uint256"},
        {"name":"deadline","type":"uint256"},
        {"name":"algorandChainId","type":"uint256"},
        {"name":"algorandAddress","type":"string"},
        {"name":"salt","type":"uint256"},
        {"name":"allowPartialFills","type":"bool"},
        {"name":"minPartialFill","type":"uint256"}]},
     {"name":"signature","type":"bytes"},
     {"name":"hashlock","type":"bytes32"},
     {"name":"timelock","type":"uint256"}],
   "outputs":[{"name":"orderId","type":"bytes32"}]},
  {"type":"function","name":"placeBid","stateMutability":"nonpayable",
   "inputs":[
     {"name":"orderId","type":"bytes32"},
     {"name":"inputAmount","type":"uint256"},
     {"name":"outputAmount","type":"uint256"},
     {"name":"gasEstimate","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"selectBestBidAndExecute","stateMutability":"nonpayable",
   "inputs":[
     {"name":"orderId","type":"bytes32"},
     {"name":"bidIndex","type":"uint256"},
     {"name":"secret","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"executePartialFill","stateMutability":"nonpayable",
   "inputs":[
     {"name":"orderId","type":"bytes32"},
     {"name":"fillAmount","type":"uint256"},
     {"name":"algoAmount","type":"uint256"},
     {"name":"secret","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"executeCrossChainSwap","stateMutability":"nonpayable",
   "inputs":[
     {"name":"orderHash","type":"bytes32"},
     {"name":"secret","type":"bytes32"}],
   "outputs":[]},
  {"type":"function","name":"getCrossChainOrder","stateMutability":"view",
   "inputs":[{"name":"orderHash","type":"bytes32"}],
   "outputs":[{"name":"","type":"bytes"}]},
  {"type":"function","name":"getRevealedSecret","stateMutability":"view",
   "inputs":[{"name":"orderHash","type":"bytes32"}],
   "outputs":[{"name":"secret","type":"bytes32"}]},
  {"type":"function","name":"refundHTLC","stateMutability":"nonpayable",
   "inputs":[{"name":"orderHash","type":"bytes32"}],
   "outputs":[]},
  {"type":"event","name":"CrossChainOrderCreated","anonymous":false,
   "inputs":[
     {"name":"orderHash","type":"bytes32","indexed":true},
     {"name":"maker","type":"address","indexed":true},
     {"name":"hashlock","type":"bytes32","indexed":false},
     {"name":"timelock","type":"uint256","indexed":false},
     {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"LimitOrderCreated","anonymous":false,
   "inputs":[
     {"name":"orderId","type":"bytes32","indexed":true},
     {"name":"maker","type":"address","indexed":true},
     {"name":"makerAmount","type":"uint256","indexed":false},
     {"name":"takerAmount","type":"uint256","indexed":false},
     {"name":"deadline","type":"uint256","indexed":false}]},
  {"type":"event","name":"BidPlaced","anonymous":false,
   "inputs":[
     {"name":"orderId","type":"bytes32","indexed":true},
     {"name":"resolver","type":"address","indexed":true},
     {"name":"bidIndex","type":"uint256","indexed":false},
     {"name":"inputAmount","type":"uint256","indexed":false},
     {"name":"outputAmount","type":"uint256","indexed":false},
     {"name":"gasEstimate","type":"uint256","indexed":false}]},
  {"type":"event","name":"BestBidSelected","anonymous":false,
   "inputs":[
     {"name":"orderId","type":"bytes32","indexed":true},
     {"name":"resolver","type":"address","indexed":true},
     {"name":"bidIndex","type":"uint256","indexed":false}]},
  {"type":"event","name":"LimitOrderPartiallyFilled","anonymous":false,
   "inputs":[
     {"name":"orderId","type":"bytes32","indexed":true},
     {"name":"fillAmount","type":"uint256","indexed":false},
     {"name":"remainingAmount","type":"uint256","indexed":false}]},
  {"type":"event","name":"CrossChainSwapExecuted","anonymous":false,
   "inputs":[
     {"name":"orderHash","type":"bytes32","indexed":true},
     {"name":"secret","type":"bytes32","indexed":false}]},
  {"type":"event","name":"HTLCRefunded","anonymous":false,
   "inputs":[
     {"name":"orderHash","type":"bytes32","indexed":true}]}
]`

func parseResolverABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(resolverABIJSON))
}
