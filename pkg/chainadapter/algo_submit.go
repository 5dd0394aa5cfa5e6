package chainadapter

import (
	"context"
	"strings"
	"time"
)

// SubmitTx signs every transaction in the group (via the injected
// AlgoSigner) and submits them together. For HTLC-create this is the
// funding payment plus the create_htlc app-call sharing one group id
// (spec.md §4.2); claim/refund groups contain a single transaction.
func (a *AlgoAdapter) SubmitTx(ctx context.Context, tx UnsignedTx, keyRef SignerKeyRef) (TxID, error) {
	req, err := decodeAlgoGroup(tx)
	if err != nil {
		return "", &AdapterError{Kind: ErrRejected, Err: err}
	}

	var signedBlob []byte
	var lastTxID string
	for _, raw := range req.Txns {
		signed, err := a.signer.SignTxn(ctx, raw, keyRef)
		if err != nil {
			return "", &AdapterError{Kind: ErrRejected, Err: err}
		}
		signedBlob = append(signedBlob, signed...)
	}

	txID, err := a.algod.SendRawTransaction(signedBlob).Do(ctx)
	if err != nil {
		return "", classifyAlgoSendErr(err)
	}
	lastTxID = txID
	return TxID(lastTxID), nil
}

// WaitForConfirmation polls pending-transaction info until the group's
// lead transaction has a confirmed-round, then waits until it has
// minConfirmations confirmations, counting the confirming round as the
// first (spec.md §4.2).
func (a *AlgoAdapter) WaitForConfirmation(ctx context.Context, txID TxID, minConfirmations uint64) (Receipt, error) {
	var confirmedRound uint64
	for {
		info, err := a.algod.PendingTransactionInformation(string(txID)).Do(ctx)
		if err != nil {
			return Receipt{}, &AdapterError{Kind: ErrNetwork, Err: err}
		}
		if info.PoolError != "" {
			return Receipt{}, &AdapterError{Kind: ErrReverted, Err: &poolError{info.PoolError}}
		}
		if info.ConfirmedRound > 0 {
			confirmedRound = info.ConfirmedRound
			break
		}
		select {
		case <-ctx.Done():
			return Receipt{}, &AdapterError{Kind: ErrTimeout, Err: ctx.Err()}
		case <-time.After(2 * time.Second):
		}
	}

	for {
		tip, err := a.GetHeight(ctx)
		if err != nil {
			return Receipt{}, err
		}
		if tip >= confirmedRound+minConfirmations-1 {
			return Receipt{
				TxID:          txID,
				Chain:         ChainAlgo,
				BlockNumber:   confirmedRound,
				Confirmations: tip - confirmedRound + 1,
				Success:       true,
			}, nil
		}
		select {
		case <-ctx.Done():
			return Receipt{}, &AdapterError{Kind: ErrTimeout, Err: ctx.Err()}
		case <-time.After(2 * time.Second):
		}
	}
}

type poolError struct{ msg string }

func (e *poolError) Error() string { return e.msg }

func classifyAlgoSendErr(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "overspend") || strings.Contains(msg, "insufficient"):
		return &AdapterError{Kind: ErrInsufficientFunds, Err: err}
	case strings.Contains(msg, "below min fee") || strings.Contains(msg, "fee"):
		return &AdapterError{Kind: ErrRejected, Err: err}
	default:
		return &AdapterError{Kind: ErrNetwork, Err: err}
	}
}
