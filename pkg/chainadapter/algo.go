package chainadapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/indexer"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// AlgoConfig parameterizes AlgoAdapter construction (spec.md §6).
type AlgoConfig struct {
	RPCURL        string
	RPCToken      string
	IndexerURL    string
	IndexerToken  string
	AppID         uint64
	Confirmations uint64
	ReorgDepth    uint64
}

// AlgoAdapter implements Adapter against Algorand's single, fixed HTLC
// application (spec.md §4.2/§6). Algorand has no log-subscription RPC, so
// event discovery is done by polling the indexer for application
// transactions (§9 "callback chains -> typed event queue").
type AlgoAdapter struct {
	cfg     AlgoConfig
	algod   *algod.Client
	indexer *indexer.Client
	signer  AlgoSigner
	log     *zap.SugaredLogger
}

func NewAlgoAdapter(cfg AlgoConfig, signer AlgoSigner, log *zap.SugaredLogger) (*AlgoAdapter, error) {
	algodClient, err := algod.MakeClient(cfg.RPCURL, cfg.RPCToken)
	if err != nil {
		return nil, fmt.Errorf("make algod client: %w", err)
	}
	indexerClient, err := indexer.MakeClient(cfg.IndexerURL, cfg.IndexerToken)
	if err != nil {
		return nil, fmt.Errorf("make indexer client: %w", err)
	}
	return &AlgoAdapter{cfg: cfg, algod: algodClient, indexer: indexerClient, signer: signer, log: log}, nil
}

func (a *AlgoAdapter) Chain() Chain { return ChainAlgo }

func (a *AlgoAdapter) GetHeight(ctx context.Context) (uint64, error) {
	status, err := a.algod.Status().Do(ctx)
	if err != nil {
		return 0, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	return status.LastRound, nil
}

// GetBalance returns the account's microAlgo balance.
func (a *AlgoAdapter) GetBalance(ctx context.Context, account string) (*big.Int, error) {
	info, err := a.algod.AccountInformation(account).Do(ctx)
	if err != nil {
		return nil, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	return new(big.Int).SetUint64(info.Amount), nil
}

// GetRevealedSecret has no Algorand counterpart: Algorand reveals the
// secret as a claim_htlc app-call argument observed directly off the
// indexer (decodeAlgoTxn), never through a resolver-style view call.
func (a *AlgoAdapter) GetRevealedSecret(ctx context.Context, orderHash cryptoutil.Hash) (cryptoutil.Secret, bool, error) {
	return cryptoutil.Secret{}, false, fmt.Errorf("getRevealedSecret has no algorand equivalent: secrets are observed from claim_htlc calls, not polled")
}

func (a *AlgoAdapter) confirmedHeight(ctx context.Context) (uint64, error) {
	tip, err := a.GetHeight(ctx)
	if err != nil {
		return 0, err
	}
	if tip < a.cfg.ReorgDepth {
		return 0, nil
	}
	return tip - a.cfg.ReorgDepth, nil
}

func (a *AlgoAdapter) suggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	sp, err := a.algod.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, &AdapterError{Kind: ErrNetwork, Err: err}
	}
	return sp, nil
}
