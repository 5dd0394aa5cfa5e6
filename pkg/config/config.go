// Package config loads the relayer's configuration surface (spec.md §6)
// from a config file, environment variables, and a .env file, layered
// with viper the way the teacher layers godotenv over its own env-only
// config.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type EvmConfig struct {
	RPCURL          string
	ChainID         int64
	ResolverAddress string
	Confirmations   uint64
	ReorgDepth      uint64
}

type AlgoConfig struct {
	RPCURL        string
	RPCToken      string
	IndexerURL    string
	IndexerToken  string
	AppID         uint64
	Confirmations uint64
	ReorgDepth    uint64
}

type RelayerKeys struct {
	SignerEth  string // key reference, never a raw key (spec.md §6)
	SignerAlgo string
}

type Timeouts struct {
	TxConfirmEvm  time.Duration
	TxConfirmAlgo time.Duration
	BidWindow     time.Duration
}

type Limits struct {
	MinOrderValue string // decimal string; parsed into *big.Int by callers
	MinTimelock   time.Duration
	MaxTxAttempts int
}

// MinOrderValueWei parses MinOrderValue, the wire form callers bind
// against limits.min_order_value (spec.md §6).
func (l Limits) MinOrderValueWei() (*big.Int, error) {
	v, ok := new(big.Int).SetString(l.MinOrderValue, 10)
	if !ok {
		return nil, fmt.Errorf("limits.min_order_value %q is not a valid decimal integer", l.MinOrderValue)
	}
	return v, nil
}

type Config struct {
	DataDir  string
	Evm      EvmConfig
	Algo     AlgoConfig
	Relayer  RelayerKeys
	Timeouts Timeouts
	Limits   Limits
}

// Default mirrors spec.md §6's recognized options and their defaults.
func Default() Config {
	return Config{
		DataDir: "data",
		Evm: EvmConfig{
			Confirmations: 2,
			ReorgDepth:    6,
		},
		Algo: AlgoConfig{
			Confirmations: 4,
			ReorgDepth:    2,
		},
		Timeouts: Timeouts{
			TxConfirmEvm:  10 * time.Minute,
			TxConfirmAlgo: 2 * time.Minute,
			BidWindow:     10 * time.Minute,
		},
		Limits: Limits{
			MinOrderValue: "1000000000000000", // 0.001 ETH, spec.md §6
			MinTimelock:   24 * time.Hour,
			MaxTxAttempts: 8,
		},
	}
}

// Load reads configPath (if non-empty) plus any SWAPRELAY_*-prefixed
// environment variables, and a .env file in the working directory,
// layered over Default() (env > file > defaults, matching the teacher's
// ENV > .env > defaults precedence).
func Load(configPath string) (Config, error) {
	cfg := Default()

	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("swaprelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bind := []string{
		"data_dir",
		"evm.rpc_url", "evm.chain_id", "evm.resolver_address", "evm.confirmations", "evm.reorg_depth",
		"algo.rpc_url", "algo.rpc_token", "algo.indexer_url", "algo.indexer_token", "algo.app_id", "algo.confirmations", "algo.reorg_depth",
		"relayer.signer_eth", "relayer.signer_algo",
		"timeouts.tx_confirm_evm", "timeouts.tx_confirm_algo", "timeouts.bid_window",
		"limits.min_order_value", "limits.min_timelock", "limits.max_tx_attempts",
	}
	for _, key := range bind {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if s := v.GetString("data_dir"); s != "" {
		cfg.DataDir = s
	}
	if s := v.GetString("evm.rpc_url"); s != "" {
		cfg.Evm.RPCURL = s
	}
	if n := v.GetInt64("evm.chain_id"); n != 0 {
		cfg.Evm.ChainID = n
	}
	if s := v.GetString("evm.resolver_address"); s != "" {
		cfg.Evm.ResolverAddress = s
	}
	if n := v.GetUint64("evm.confirmations"); n != 0 {
		cfg.Evm.Confirmations = n
	}
	if n := v.GetUint64("evm.reorg_depth"); n != 0 {
		cfg.Evm.ReorgDepth = n
	}

	if s := v.GetString("algo.rpc_url"); s != "" {
		cfg.Algo.RPCURL = s
	}
	if s := v.GetString("algo.rpc_token"); s != "" {
		cfg.Algo.RPCToken = s
	}
	if s := v.GetString("algo.indexer_url"); s != "" {
		cfg.Algo.IndexerURL = s
	}
	if s := v.GetString("algo.indexer_token"); s != "" {
		cfg.Algo.IndexerToken = s
	}
	if n := v.GetUint64("algo.app_id"); n != 0 {
		cfg.Algo.AppID = n
	}
	if n := v.GetUint64("algo.confirmations"); n != 0 {
		cfg.Algo.Confirmations = n
	}
	if n := v.GetUint64("algo.reorg_depth"); n != 0 {
		cfg.Algo.ReorgDepth = n
	}

	if s := v.GetString("relayer.signer_eth"); s != "" {
		cfg.Relayer.SignerEth = s
	}
	if s := v.GetString("relayer.signer_algo"); s != "" {
		cfg.Relayer.SignerAlgo = s
	}

	if d := v.GetDuration("timeouts.tx_confirm_evm"); d != 0 {
		cfg.Timeouts.TxConfirmEvm = d
	}
	if d := v.GetDuration("timeouts.tx_confirm_algo"); d != 0 {
		cfg.Timeouts.TxConfirmAlgo = d
	}
	if d := v.GetDuration("timeouts.bid_window"); d != 0 {
		cfg.Timeouts.BidWindow = d
	}

	if s := v.GetString("limits.min_order_value"); s != "" {
		cfg.Limits.MinOrderValue = s
	}
	if d := v.GetDuration("limits.min_timelock"); d != 0 {
		cfg.Limits.MinTimelock = d
	}
	if n := v.GetInt("limits.max_tx_attempts"); n != 0 {
		cfg.Limits.MaxTxAttempts = n
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Evm.RPCURL == "" {
		return fmt.Errorf("evm.rpc_url is required")
	}
	if c.Evm.ResolverAddress == "" {
		return fmt.Errorf("evm.resolver_address is required")
	}
	if c.Algo.RPCURL == "" {
		return fmt.Errorf("algo.rpc_url is required")
	}
	if c.Algo.AppID == 0 {
		return fmt.Errorf("algo.app_id is required")
	}
	return nil
}
