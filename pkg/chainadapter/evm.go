package chainadapter

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// EvmConfig parameterizes EvmAdapter construction (spec.md §6).
type EvmConfig struct {
	RPCURL          string
	ChainID         *big.Int
	ResolverAddress common.Address
	Confirmations   uint64
	ReorgDepth      uint64
}

// EvmAdapter implements Adapter against an EVM chain (Ethereum Sepolia)
// and the fixed Resolver contract ABI (spec.md §4.2/§6).
type EvmAdapter struct {
	cfg    EvmConfig
	client *ethclient.Client
	abi    abi.ABI
	signer EvmSigner
	log    *zap.SugaredLogger
}

// NewEvmAdapter dials the configured RPC endpoint and parses the fixed
// Resolver ABI once at construction (§9 "global singletons -> injected
// dependencies": the client is built once here, not per call).
func NewEvmAdapter(ctx context.Context, cfg EvmConfig, signer EvmSigner, log *zap.SugaredLogger) (*EvmAdapter, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	parsed, err := parseResolverABI()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse resolver abi: %w", err)
	}
	return &EvmAdapter{cfg: cfg, client: client, abi: parsed, signer: signer, log: log}, nil
}

func (a *EvmAdapter) Chain() Chain { return ChainEvm }

func (a *EvmAdapter) Close() { a.client.Close() }

func (a *EvmAdapter) GetHeight(ctx context.Context) (uint64, error) {
	h, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	return h, nil
}

func (a *EvmAdapter) GetBalance(ctx context.Context, account string) (*big.Int, error) {
	bal, err := a.client.BalanceAt(ctx, common.HexToAddress(account), nil)
	if err != nil {
		return nil, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	return bal, nil
}

func (a *EvmAdapter) EstimateFee(ctx context.Context, shape TxShape) (Fee, error) {
	tipCap, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return Fee{}, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return Fee{}, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	baseFee := big.NewInt(0)
	if head.BaseFee != nil {
		baseFee = head.BaseFee
	}
	feeCap := new(big.Int).Add(baseFee, tipCap)
	feeCap.Mul(feeCap, big.NewInt(2))

	gasLimit := uint64(21000)
	switch shape.Kind {
	case "create":
		gasLimit = 180000
	case "claim":
		gasLimit = 140000
	case "refund":
		gasLimit = 100000
	case "order":
		gasLimit = 220000
	}

	total := new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gasLimit))
	return Fee{Chain: ChainEvm, Amount: total}, nil
}

// GetRevealedSecret calls the Resolver contract's getRevealedSecret view
// (spec.md §6), used when a BestBidSelected log is observed without the
// secret itself in its payload — the contract only ever learns the
// secret through the maker/resolver's own selectBestBidAndExecute call,
// so by the time the event is confirmed the view already has it.
func (a *EvmAdapter) GetRevealedSecret(ctx context.Context, orderHash cryptoutil.Hash) (cryptoutil.Secret, bool, error) {
	data, err := a.abi.Pack("getRevealedSecret", [32]byte(orderHash))
	if err != nil {
		return cryptoutil.Secret{}, false, fmt.Errorf("pack getRevealedSecret: %w", err)
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.cfg.ResolverAddress, Data: data}, nil)
	if err != nil {
		return cryptoutil.Secret{}, false, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	var result struct{ Secret [32]byte }
	if err := a.abi.UnpackIntoInterface(&result, "getRevealedSecret", out); err != nil {
		return cryptoutil.Secret{}, false, fmt.Errorf("unpack getRevealedSecret: %w", err)
	}
	if result.Secret == ([32]byte{}) {
		return cryptoutil.Secret{}, false, nil
	}
	return cryptoutil.Secret(result.Secret), true, nil
}

// confirmedHeight returns the tip minus the configured reorg depth —
// events above this height are not yet considered final (spec.md §4.2,
// scenario 5).
func (a *EvmAdapter) confirmedHeight(ctx context.Context) (uint64, error) {
	tip, err := a.GetHeight(ctx)
	if err != nil {
		return 0, err
	}
	if tip < a.cfg.ReorgDepth {
		return 0, nil
	}
	return tip - a.cfg.ReorgDepth, nil
}
