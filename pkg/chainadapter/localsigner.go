package chainadapter

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	algocrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	algotypes "github.com/algorand/go-algorand-sdk/v2/types"
)

// LocalEvmSigner holds ECDSA keys in process memory, keyed by an opaque
// SignerKeyRef (spec.md §1/§6: key management itself is out of scope —
// this is the minimal concrete Signer the relayer process needs to wire
// at startup, the same role the teacher's crypto.Signer fills).
type LocalEvmSigner struct {
	mu      sync.RWMutex
	keys    map[SignerKeyRef]*ecdsa.PrivateKey
	eipSigner gethtypes.Signer
}

func NewLocalEvmSigner(chainID int64) *LocalEvmSigner {
	return &LocalEvmSigner{
		keys:      make(map[SignerKeyRef]*ecdsa.PrivateKey),
		eipSigner: gethtypes.NewLondonSigner(big.NewInt(chainID)),
	}
}

// AddKey registers a hex-encoded private key under ref.
func (s *LocalEvmSigner) AddKey(ref SignerKeyRef, privateKeyHex string) error {
	key, err := ethcrypto.HexToECDSA(stripHex(privateKeyHex))
	if err != nil {
		return fmt.Errorf("parse evm key %s: %w", ref, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[ref] = key
	return nil
}

func (s *LocalEvmSigner) SignTx(ctx context.Context, tx *gethtypes.Transaction, keyRef SignerKeyRef) (*gethtypes.Transaction, error) {
	s.mu.RLock()
	key, ok := s.keys[keyRef]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown evm signer key ref %s", keyRef)
	}
	return gethtypes.SignTx(tx, s.eipSigner, key)
}

func (s *LocalEvmSigner) Address(ctx context.Context, keyRef SignerKeyRef) (string, error) {
	s.mu.RLock()
	key, ok := s.keys[keyRef]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown evm signer key ref %s", keyRef)
	}
	return ethcrypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func stripHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// LocalAlgoSigner holds Algorand ed25519 keys in process memory, keyed
// by an opaque SignerKeyRef.
type LocalAlgoSigner struct {
	mu   sync.RWMutex
	keys map[SignerKeyRef]algocrypto.Account
}

func NewLocalAlgoSigner() *LocalAlgoSigner {
	return &LocalAlgoSigner{keys: make(map[SignerKeyRef]algocrypto.Account)}
}

// AddKeyFromMnemonic registers an Algorand account derived from its
// 25-word mnemonic under ref.
func (s *LocalAlgoSigner) AddKeyFromMnemonic(ref SignerKeyRef, mn string) error {
	sk, err := mnemonic.ToPrivateKey(mn)
	if err != nil {
		return fmt.Errorf("parse algo mnemonic for %s: %w", ref, err)
	}
	account, err := algocrypto.AccountFromPrivateKey(sk)
	if err != nil {
		return fmt.Errorf("derive algo account for %s: %w", ref, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[ref] = account
	return nil
}

func (s *LocalAlgoSigner) SignTxn(ctx context.Context, rawTxn []byte, keyRef SignerKeyRef) ([]byte, error) {
	s.mu.RLock()
	account, ok := s.keys[keyRef]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown algo signer key ref %s", keyRef)
	}

	var txn algotypes.Transaction
	if err := msgpack.Decode(rawTxn, &txn); err != nil {
		return nil, fmt.Errorf("decode algo txn: %w", err)
	}

	_, signedBytes, err := algocrypto.SignTransaction(account.PrivateKey, txn)
	if err != nil {
		return nil, fmt.Errorf("sign algo txn: %w", err)
	}
	return signedBytes, nil
}

func (s *LocalAlgoSigner) Address(ctx context.Context, keyRef SignerKeyRef) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.keys[keyRef]
	if !ok {
		return "", fmt.Errorf("unknown algo signer key ref %s", keyRef)
	}
	return account.Address.String(), nil
}
