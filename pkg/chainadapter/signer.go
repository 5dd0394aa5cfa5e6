package chainadapter

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
)

// Signer abstracts transaction signing so this package never touches
// raw key material (spec.md §1: key management is out of scope). The
// relayer process wires in a concrete implementation (local keystore,
// HSM, KMS, ...) at startup.
type EvmSigner interface {
	SignTx(ctx context.Context, tx *types.Transaction, keyRef SignerKeyRef) (*types.Transaction, error)
	Address(ctx context.Context, keyRef SignerKeyRef) (string, error)
}

// AlgoSigner signs raw Algorand transaction bytes and returns the signed
// blob ready for submission.
type AlgoSigner interface {
	SignTxn(ctx context.Context, txn []byte, keyRef SignerKeyRef) ([]byte, error)
	Address(ctx context.Context, keyRef SignerKeyRef) (string, error)
}
