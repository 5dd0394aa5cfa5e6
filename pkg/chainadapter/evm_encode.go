package chainadapter

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// evmCallRequest is the wire shape of an EVM UnsignedTx.Payload: a
// not-yet-signed call the relayer's signer turns into a *types.Transaction.
type evmCallRequest struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

func encodeCall(req evmCallRequest) (UnsignedTx, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("marshal evm call request: %w", err)
	}
	return UnsignedTx{Chain: ChainEvm, Payload: b}, nil
}

func decodeCall(tx UnsignedTx) (evmCallRequest, error) {
	var req evmCallRequest
	if err := json.Unmarshal(tx.Payload, &req); err != nil {
		return evmCallRequest{}, fmt.Errorf("unmarshal evm call request: %w", err)
	}
	return req, nil
}

// EncodeHTLCCreate builds the createCrossChainHTLC call (spec.md §6).
// aux["token"] selects the ERC-20-like token id, empty/zero for native ETH.
func (a *EvmAdapter) EncodeHTLCCreate(hashlock cryptoutil.Hash, timelock time.Time, amount *big.Int, recipient string, aux map[string]string) (UnsignedTx, error) {
	token := common.Address{}
	if t, ok := aux["token"]; ok && t != "" {
		token = common.HexToAddress(t)
	}
	algorandAddress := aux["algorandAddress"]

	data, err := a.abi.Pack("createCrossChainHTLC",
		[32]byte(hashlock),
		big.NewInt(timelock.Unix()),
		token,
		amount,
		common.HexToAddress(recipient),
		algorandAddress,
	)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack createCrossChainHTLC: %w", err)
	}

	value := big.NewInt(0)
	if token == (common.Address{}) {
		value = amount
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: value, Data: data})
}

// EncodeHTLCClaim builds the executeCrossChainSwap call.
func (a *EvmAdapter) EncodeHTLCClaim(ref HTLCRef, secret cryptoutil.Secret) (UnsignedTx, error) {
	orderHash, err := cryptoutil.HashFromHex(ref.HTLCID)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("parse order hash: %w", err)
	}
	data, err := a.abi.Pack("executeCrossChainSwap", [32]byte(orderHash), [32]byte(secret))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack executeCrossChainSwap: %w", err)
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: big.NewInt(0), Data: data})
}

// EncodeHTLCRefund builds the refundHTLC call.
func (a *EvmAdapter) EncodeHTLCRefund(ref HTLCRef) (UnsignedTx, error) {
	orderHash, err := cryptoutil.HashFromHex(ref.HTLCID)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("parse order hash: %w", err)
	}
	data, err := a.abi.Pack("refundHTLC", [32]byte(orderHash))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack refundHTLC: %w", err)
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: big.NewInt(0), Data: data})
}

// EncodeSubmitLimitOrder builds submitLimitOrder, the one transaction the
// maker (not the relayer) must originate and fund for an ETH-source order
// (spec.md §4.7 "gasless user" property).
func (a *EvmAdapter) EncodeSubmitLimitOrder(intent cryptoutil.LimitOrderIntent, signature []byte, hashlock cryptoutil.Hash, timelock time.Time, value *big.Int) (UnsignedTx, error) {
	tuple := struct {
		Maker             common.Address
		MakerToken        common.Address
		TakerToken        common.Address
		MakerAmount       *big.Int
		TakerAmount       *big.Int
		Deadline          *big.Int
		AlgorandChainId   *big.Int
		AlgorandAddress   string
		Salt              *big.Int
		AllowPartialFills bool
		MinPartialFill    *big.Int
	}{
		Maker:             intent.Maker,
		MakerToken:        intent.MakerToken,
		TakerToken:        intent.TakerToken,
		MakerAmount:       intent.MakerAmount,
		TakerAmount:       intent.TakerAmount,
		Deadline:          intent.Deadline,
		AlgorandChainId:   intent.AlgorandChainID,
		AlgorandAddress:   intent.AlgorandAddress,
		Salt:              intent.Salt,
		AllowPartialFills: intent.AllowPartialFills,
		MinPartialFill:    intent.MinPartialFill,
	}

	data, err := a.abi.Pack("submitLimitOrder", tuple, signature, [32]byte(hashlock), big.NewInt(timelock.Unix()))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack submitLimitOrder: %w", err)
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: value, Data: data})
}

// EncodePlaceBid builds placeBid for a resolver's bid (spec.md §6).
func (a *EvmAdapter) EncodePlaceBid(orderID cryptoutil.Hash, inputAmount, outputAmount, gasEstimate *big.Int) (UnsignedTx, error) {
	data, err := a.abi.Pack("placeBid", [32]byte(orderID), inputAmount, outputAmount, gasEstimate)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack placeBid: %w", err)
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: big.NewInt(0), Data: data})
}

// EncodeSelectBestBidAndExecute builds selectBestBidAndExecute.
func (a *EvmAdapter) EncodeSelectBestBidAndExecute(orderID cryptoutil.Hash, bidIndex *big.Int, secret cryptoutil.Secret) (UnsignedTx, error) {
	data, err := a.abi.Pack("selectBestBidAndExecute", [32]byte(orderID), bidIndex, [32]byte(secret))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack selectBestBidAndExecute: %w", err)
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: big.NewInt(0), Data: data})
}

// EncodeExecutePartialFill builds executePartialFill.
func (a *EvmAdapter) EncodeExecutePartialFill(orderID cryptoutil.Hash, fillAmount, algoAmount *big.Int, secret cryptoutil.Secret) (UnsignedTx, error) {
	data, err := a.abi.Pack("executePartialFill", [32]byte(orderID), fillAmount, algoAmount, [32]byte(secret))
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("pack executePartialFill: %w", err)
	}
	return encodeCall(evmCallRequest{To: a.cfg.ResolverAddress, Value: big.NewInt(0), Data: data})
}
