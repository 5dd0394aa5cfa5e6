// Command relayer runs the cross-chain atomic-swap relayer: it loads
// config, opens the durable stores, dials both chain adapters, and
// drives OrderEngine / AuctionEngine / HtlcStateMachine off the event
// queue until it receives SIGINT/SIGTERM (mirrors the teacher's
// cmd/node/main.go process shape).
package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/relayerlabs/swaprelay/pkg/api"
	"github.com/relayerlabs/swaprelay/pkg/auction"
	"github.com/relayerlabs/swaprelay/pkg/chainadapter"
	"github.com/relayerlabs/swaprelay/pkg/config"
	"github.com/relayerlabs/swaprelay/pkg/correlation"
	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
	"github.com/relayerlabs/swaprelay/pkg/htlc"
	"github.com/relayerlabs/swaprelay/pkg/order"
	"github.com/relayerlabs/swaprelay/pkg/relayer"
	"github.com/relayerlabs/swaprelay/pkg/storage"
	"github.com/relayerlabs/swaprelay/pkg/util"
)

func main() {
	configPath := os.Getenv("RELAYER_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logPath := os.Getenv("LOG_FILE")
	if logPath == "" {
		logPath = filepath.Join(cfg.DataDir, "relayer.log")
	}
	verbose := os.Getenv("VERBOSE") == "true"
	logger, err := util.NewLoggerWithFile(logPath, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logPath, "verbose", verbose)

	db, err := storage.Open(filepath.Join(cfg.DataDir, "relayer.db"))
	if err != nil {
		sugar.Fatalw("open store", "err", err)
	}
	defer db.Close()

	orders := order.NewStore(db)
	corr := correlation.NewPebbleStore(db)
	bids := auction.NewStore(db)

	relayerEvmKey := chainadapter.SignerKeyRef(cfg.Relayer.SignerEth)
	relayerAlgoKey := chainadapter.SignerKeyRef(cfg.Relayer.SignerAlgo)

	evmSigner := chainadapter.NewLocalEvmSigner(cfg.Evm.ChainID)
	if key := os.Getenv("RELAYER_EVM_PRIVATE_KEY"); key != "" {
		if err := evmSigner.AddKey(relayerEvmKey, key); err != nil {
			sugar.Fatalw("load evm signer key", "err", err)
		}
	}

	algoSigner := chainadapter.NewLocalAlgoSigner()
	if mn := os.Getenv("RELAYER_ALGO_MNEMONIC"); mn != "" {
		if err := algoSigner.AddKeyFromMnemonic(relayerAlgoKey, mn); err != nil {
			sugar.Fatalw("load algo signer key", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	evmAdapter, err := chainadapter.NewEvmAdapter(ctx, chainadapter.EvmConfig{
		RPCURL:          cfg.Evm.RPCURL,
		ChainID:         big.NewInt(cfg.Evm.ChainID),
		ResolverAddress: common.HexToAddress(cfg.Evm.ResolverAddress),
		Confirmations:   cfg.Evm.Confirmations,
		ReorgDepth:      cfg.Evm.ReorgDepth,
	}, evmSigner, sugar)
	if err != nil {
		sugar.Fatalw("evm adapter", "err", err)
	}
	defer evmAdapter.Close()

	algoAdapter, err := chainadapter.NewAlgoAdapter(chainadapter.AlgoConfig{
		RPCURL:        cfg.Algo.RPCURL,
		RPCToken:      cfg.Algo.RPCToken,
		IndexerURL:    cfg.Algo.IndexerURL,
		IndexerToken:  cfg.Algo.IndexerToken,
		AppID:         cfg.Algo.AppID,
		Confirmations: cfg.Algo.Confirmations,
		ReorgDepth:    cfg.Algo.ReorgDepth,
	}, algoSigner, sugar)
	if err != nil {
		sugar.Fatalw("algo adapter", "err", err)
	}

	minOrderValue, err := cfg.Limits.MinOrderValueWei()
	if err != nil {
		sugar.Fatalw("limits.min_order_value", "err", err)
	}

	domain := cryptoutil.BridgeDomain(big.NewInt(cfg.Evm.ChainID), common.HexToAddress(cfg.Evm.ResolverAddress))
	orderEngine := order.NewEngineWithLimits(orders, evmAdapter, relayerEvmKey, domain, minOrderValue, cfg.Limits.MinTimelock, sugar)

	machine := htlc.NewMachine(evmAdapter, algoAdapter, corr, orders, bids, relayerEvmKey, relayerAlgoKey, sugar).
		WithRetryPolicy(chainadapter.RetryPolicyWithMaxAttempts(cfg.Limits.MaxTxAttempts)).
		WithConfirmTimeouts(cfg.Timeouts.TxConfirmEvm, cfg.Timeouts.TxConfirmAlgo).
		WithAlertFunc(func(_ context.Context, orderHash cryptoutil.Hash, reason string) {
			sugar.Errorw("operator_alert", "order_hash", orderHash.String(), "reason", reason)
		})
	auctionEngine := auction.NewEngineWithBidWindow(orders, bids, auction.OpenWhitelist{}, machine, cfg.Timeouts.BidWindow, sugar)

	r := relayer.New(evmAdapter, algoAdapter, corr, orders, orderEngine, auctionEngine, machine, sugar)

	evmFrom, _, _ := corr.LastCheckpoint(chainadapter.ChainEvm)
	algoFrom, _, _ := corr.LastCheckpoint(chainadapter.ChainAlgo)
	if evmFrom > cfg.Evm.ReorgDepth {
		evmFrom -= cfg.Evm.ReorgDepth
	}
	if algoFrom > cfg.Algo.ReorgDepth {
		algoFrom -= cfg.Algo.ReorgDepth
	}

	relayerDone := make(chan error, 1)
	go func() {
		relayerDone <- r.Run(ctx, evmFrom, algoFrom)
	}()

	apiAddr := os.Getenv("API_ADDR")
	if apiAddr == "" {
		apiAddr = ":8080"
	}
	apiServer := api.NewServer(orders, bids, corr, evmAdapter, algoAdapter, sugar)
	go func() {
		sugar.Infow("api_server_starting", "addr", apiAddr)
		if err := apiServer.Start(apiAddr); err != nil {
			sugar.Errorw("api_server_failed", "err", err)
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	sugar.Infow("relayer_starting", "evm_from_block", evmFrom, "algo_from_round", algoFrom)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := r.Shutdown(shutdownCtx); err != nil {
				sugar.Errorw("shutdown", "err", err)
			}
			cancel()
			return
		case err := <-relayerDone:
			if err != nil {
				sugar.Errorw("relayer_run_exited", "err", err)
			}
			return
		case <-ticker.C:
			sugar.Info("relayer_alive")
		}
	}
}
