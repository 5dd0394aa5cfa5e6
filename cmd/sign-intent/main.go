// Command sign-intent is a dev/test helper: it generates (or loads) a
// key, builds a LimitOrderIntent, signs it under the EIP-712 domain,
// and prints the signed payload a maker would submit on-chain to
// OrderEngine::submit_intent.
package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

type signedIntent struct {
	OrderHash string                      `json:"orderHash"`
	Intent    cryptoutil.LimitOrderIntent `json:"intent"`
	Signature string                      `json:"signature"`
}

func main() {
	var (
		privateKeyHex   = flag.String("key", "", "hex private key (generates a new one if empty)")
		chainID         = flag.Int64("chain-id", 11155111, "EVM chain id (default Sepolia)")
		resolverAddr    = flag.String("resolver", "0x000000000000000000000000000000000000dEaD", "Resolver contract address")
		takerToken      = flag.String("taker-token", "0x0000000000000000000000000000000000dEaD", "ERC-20 taker token, zero address for native ETH")
		makerAmount     = flag.String("maker-amount", "1000000000000000000", "maker amount, base units")
		takerAmount     = flag.String("taker-amount", "2000000", "taker amount, base units")
		algorandAddress = flag.String("algo-address", "", "Algorand recipient address")
		deadlineMinutes = flag.Int("deadline-minutes", 180, "minutes until the intent's deadline")
		allowPartial    = flag.Bool("allow-partial", true, "allow partial fills")
	)
	flag.Parse()

	key, err := loadOrGenerateKey(*privateKeyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "key: %v\n", err)
		os.Exit(1)
	}
	address := crypto.PubkeyToAddress(key.PublicKey)
	fmt.Printf("maker address: %s\n", address.Hex())

	mAmt, ok := new(big.Int).SetString(*makerAmount, 10)
	if !ok {
		fmt.Fprintln(os.Stderr, "invalid maker-amount")
		os.Exit(1)
	}
	tAmt, ok := new(big.Int).SetString(*takerAmount, 10)
	if !ok {
		fmt.Fprintln(os.Stderr, "invalid taker-amount")
		os.Exit(1)
	}

	salt, err := randomSalt()
	if err != nil {
		fmt.Fprintf(os.Stderr, "salt: %v\n", err)
		os.Exit(1)
	}

	intent := &cryptoutil.LimitOrderIntent{
		Maker:             address,
		TakerToken:        common.HexToAddress(*takerToken),
		MakerAmount:       mAmt,
		TakerAmount:       tAmt,
		Deadline:          big.NewInt(time.Now().Add(time.Duration(*deadlineMinutes) * time.Minute).Unix()),
		AlgorandChainID:   big.NewInt(416002),
		AlgorandAddress:   *algorandAddress,
		Salt:              salt,
		AllowPartialFills: *allowPartial,
		MinPartialFill:    big.NewInt(0),
	}

	domain := cryptoutil.BridgeDomain(big.NewInt(*chainID), common.HexToAddress(*resolverAddr))
	signer := cryptoutil.NewSigner(domain)

	hash, err := signer.HashIntent(intent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash intent: %v\n", err)
		os.Exit(1)
	}

	privHex := fmt.Sprintf("%x", crypto.FromECDSA(key))
	sig, err := cryptoutil.SignIntent(hash, privHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign intent: %v\n", err)
		os.Exit(1)
	}

	recovered, err := cryptoutil.RecoverSigner(hash, sig)
	if err != nil || recovered != address {
		fmt.Fprintf(os.Stderr, "signature self-check failed: recovered=%s err=%v\n", recovered.Hex(), err)
		os.Exit(1)
	}

	out := signedIntent{
		OrderHash: hash.String(),
		Intent:    *intent,
		Signature: fmt.Sprintf("0x%x", sig),
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(payload))
}

func loadOrGenerateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return crypto.GenerateKey()
	}
	return crypto.HexToECDSA(hexKey)
}

func randomSalt() (*big.Int, error) {
	secret, err := cryptoutil.RandomSecret()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(secret[:]), nil
}
