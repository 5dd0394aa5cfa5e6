package chainadapter

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// SubmitTx signs (via the injected EvmSigner) and broadcasts an encoded
// call built by one of the Encode* methods.
func (a *EvmAdapter) SubmitTx(ctx context.Context, tx UnsignedTx, keyRef SignerKeyRef) (TxID, error) {
	req, err := decodeCall(tx)
	if err != nil {
		return "", &AdapterError{Kind: ErrRejected, Err: err}
	}

	from, err := a.signer.Address(ctx, keyRef)
	if err != nil {
		return "", &AdapterError{Kind: ErrRejected, Err: err}
	}
	fromAddr := common.HexToAddress(from)

	nonce, err := a.client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return "", &AdapterError{Kind: ErrNetwork, Err: err}
	}
	tipCap, err := a.client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", &AdapterError{Kind: ErrNetwork, Err: err}
	}
	head, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", &AdapterError{Kind: ErrNetwork, Err: err}
	}
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, head.BaseFee)
		feeCap.Mul(feeCap, big.NewInt(2))
	}

	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From: fromAddr, To: &req.To, Value: req.Value, Data: req.Data,
	})
	if err != nil {
		return "", classifyEstimateErr(err)
	}

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   a.cfg.ChainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &req.To,
		Value:     req.Value,
		Data:      req.Data,
	})

	signed, err := a.signer.SignTx(ctx, unsigned, keyRef)
	if err != nil {
		return "", &AdapterError{Kind: ErrRejected, Err: err}
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return "", classifySendErr(err)
	}
	return TxID(signed.Hash().Hex()), nil
}

// WaitForConfirmation polls for the transaction receipt and blocks until
// it has accumulated minConfirmations (spec.md §4.2). Returns a
// permanent AdapterError if the transaction reverted.
func (a *EvmAdapter) WaitForConfirmation(ctx context.Context, txID TxID, minConfirmations uint64) (Receipt, error) {
	hash := common.HexToHash(string(txID))
	for {
		receipt, err := a.client.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				select {
				case <-ctx.Done():
					return Receipt{}, &AdapterError{Kind: ErrTimeout, Err: ctx.Err()}
				case <-time.After(3 * time.Second):
					continue
				}
			}
			return Receipt{}, &AdapterError{Kind: ErrNetwork, Err: err}
		}

		tip, err := a.GetHeight(ctx)
		if err != nil {
			return Receipt{}, err
		}
		var confirmations uint64
		if tip >= receipt.BlockNumber.Uint64() {
			confirmations = tip - receipt.BlockNumber.Uint64() + 1
		}
		if confirmations < minConfirmations {
			select {
			case <-ctx.Done():
				return Receipt{}, &AdapterError{Kind: ErrTimeout, Err: ctx.Err()}
			case <-time.After(3 * time.Second):
				continue
			}
		}

		success := receipt.Status == types.ReceiptStatusSuccessful
		reason := ""
		if !success {
			reason = "execution reverted"
		}
		out := Receipt{
			TxID:          txID,
			Chain:         ChainEvm,
			BlockNumber:   receipt.BlockNumber.Uint64(),
			Confirmations: confirmations,
			Success:       success,
			RevertReason:  reason,
		}
		if !success {
			return out, &AdapterError{Kind: ErrReverted, Err: errors.New(reason)}
		}
		return out, nil
	}
}

func classifyEstimateErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return &AdapterError{Kind: ErrInsufficientFunds, Err: err}
	case strings.Contains(msg, "revert"):
		return &AdapterError{Kind: ErrReverted, Err: err}
	default:
		return &AdapterError{Kind: ErrNetwork, Err: err}
	}
}

func classifySendErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce"):
		return &AdapterError{Kind: ErrNonce, Err: err}
	case strings.Contains(msg, "insufficient funds"):
		return &AdapterError{Kind: ErrInsufficientFunds, Err: err}
	case strings.Contains(msg, "underpriced") || strings.Contains(msg, "replacement"):
		return &AdapterError{Kind: ErrRejected, Err: err}
	default:
		return &AdapterError{Kind: ErrNetwork, Err: err}
	}
}
