package cryptoutil

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain separator. Must be bit-exact with the
// deployed Resolver contract (§6): name "EnhancedLimitOrderBridge",
// version "1".
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// BridgeDomain returns the fixed domain the Resolver contract signs
// against, parameterized only by chain id and the deployed address.
func BridgeDomain(chainID *big.Int, verifyingContract common.Address) Domain {
	return Domain{
		Name:              "EnhancedLimitOrderBridge",
		Version:           "1",
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// LimitOrderIntent mirrors the Intent data model of spec.md §3, field
// order matching the contract's EIP-712 type exactly — reordering these
// fields changes the hash.
type LimitOrderIntent struct {
	Maker              common.Address
	MakerToken         common.Address
	TakerToken         common.Address
	MakerAmount        *big.Int
	TakerAmount        *big.Int
	Deadline           *big.Int
	AlgorandChainID    *big.Int
	AlgorandAddress    string
	Salt               *big.Int
	AllowPartialFills  bool
	MinPartialFill     *big.Int
}

// Signer hashes and signs LimitOrderIntent values under a fixed domain.
type Signer struct {
	domain Domain
}

// NewSigner builds a Signer bound to a domain.
func NewSigner(domain Domain) *Signer {
	return &Signer{domain: domain}
}

func (s *Signer) intentTypedData(intent *LimitOrderIntent) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"LimitOrderIntent": []apitypes.Type{
				{Name: "maker", Type: "address"},
				{Name: "makerToken", Type: "address"},
				{Name: "takerToken", Type: "address"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
				{Name: "algorandChainId", Type: "uint256"},
				{Name: "algorandAddress", Type: "string"},
				{Name: "salt", Type: "uint256"},
				{Name: "allowPartialFills", Type: "bool"},
				{Name: "minPartialFill", Type: "uint256"},
			},
		},
		PrimaryType: "LimitOrderIntent",
		Domain: apitypes.TypedDataDomain{
			Name:              s.domain.Name,
			Version:           s.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(s.domain.ChainID),
			VerifyingContract: s.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"maker":             intent.Maker.Hex(),
			"makerToken":        intent.MakerToken.Hex(),
			"takerToken":        intent.TakerToken.Hex(),
			"makerAmount":       intent.MakerAmount.String(),
			"takerAmount":       intent.TakerAmount.String(),
			"deadline":          intent.Deadline.String(),
			"algorandChainId":   intent.AlgorandChainID.String(),
			"algorandAddress":   intent.AlgorandAddress,
			"salt":              intent.Salt.String(),
			"allowPartialFills": intent.AllowPartialFills,
			"minPartialFill":    intent.MinPartialFill.String(),
		},
	}
}

// HashIntent computes order_hash = EIP712(domain, "LimitOrderIntent", intent).
func (s *Signer) HashIntent(intent *LimitOrderIntent) (Hash, error) {
	typedData := s.intentTypedData(intent)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return Hash{}, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return Hash{}, fmt.Errorf("hash message: %w", err)
	}

	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	return Hash(crypto.Keccak256Hash(rawData)), nil
}

// SignIntent signs an intent's EIP-712 digest with an ECDSA key.
func SignIntent(hash Hash, privateKeyHex string) ([]byte, error) {
	key, err := crypto.HexToECDSA(stripHexPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// RecoverSigner recovers the address that produced signature over hash.
func RecoverSigner(hash Hash, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	pub, err := crypto.SigToPub(hash[:], signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover pubkey: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether signature over hash was produced by
// expectedSigner.
func VerifySignature(hash Hash, signature []byte, expectedSigner common.Address) (bool, error) {
	recovered, err := RecoverSigner(hash, signature)
	if err != nil {
		return false, err
	}
	return recovered == expectedSigner, nil
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
