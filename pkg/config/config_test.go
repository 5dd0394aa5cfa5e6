package config

import (
	"os"
	"testing"
)

func TestLoadAppliesEnvOverridesOverDefaults(t *testing.T) {
	t.Setenv("SWAPRELAY_EVM_RPC_URL", "https://sepolia.example/rpc")
	t.Setenv("SWAPRELAY_EVM_RESOLVER_ADDRESS", "0xResolver000000000000000000000000000001")
	t.Setenv("SWAPRELAY_ALGO_RPC_URL", "https://algo.example/rpc")
	t.Setenv("SWAPRELAY_ALGO_APP_ID", "12345")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Evm.RPCURL != "https://sepolia.example/rpc" {
		t.Fatalf("unexpected evm rpc url: %s", cfg.Evm.RPCURL)
	}
	if cfg.Algo.AppID != 12345 {
		t.Fatalf("unexpected algo app id: %d", cfg.Algo.AppID)
	}
	if cfg.Evm.Confirmations != 2 {
		t.Fatalf("expected default confirmations, got %d", cfg.Evm.Confirmations)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	for _, key := range []string{
		"SWAPRELAY_EVM_RPC_URL", "SWAPRELAY_EVM_RESOLVER_ADDRESS",
		"SWAPRELAY_ALGO_RPC_URL", "SWAPRELAY_ALGO_APP_ID",
	} {
		os.Unsetenv(key)
	}
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error with no config supplied")
	}
}
