package chainadapter

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/relayerlabs/swaprelay/pkg/cryptoutil"
)

// algoGroupRequest is the wire shape of an Algorand UnsignedTx: either a
// single application call (claim/refund) or, for HTLC-create, a grouped
// payment + application call that must be signed and submitted together
// under one group id (spec.md §4.2).
type algoGroupRequest struct {
	Txns [][]byte // msgpack-encoded types.Transaction, in submission order
}

func encodeAlgoGroup(req algoGroupRequest) (UnsignedTx, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("marshal algo group request: %w", err)
	}
	return UnsignedTx{Chain: ChainAlgo, Payload: b}, nil
}

func decodeAlgoGroup(tx UnsignedTx) (algoGroupRequest, error) {
	var req algoGroupRequest
	if err := json.Unmarshal(tx.Payload, &req); err != nil {
		return algoGroupRequest{}, fmt.Errorf("unmarshal algo group request: %w", err)
	}
	return req, nil
}

// EncodeHTLCCreate builds the two-transaction group spec.md §4.2 requires
// for an Algorand-destination HTLC: a payment funding the application
// account plus a "create_htlc" app-call carrying hashlock/timelock/target,
// both assigned the same group id so they submit atomically.
func (a *AlgoAdapter) EncodeHTLCCreate(hashlock cryptoutil.Hash, timelock time.Time, amount *big.Int, recipient string, aux map[string]string) (UnsignedTx, error) {
	ctx := context.Background()
	sp, err := a.suggestedParams(ctx)
	if err != nil {
		return UnsignedTx{}, err
	}

	relayerAddr := aux["relayerAddress"]
	appAddr := aux["appAddress"]
	if relayerAddr == "" || appAddr == "" {
		return UnsignedTx{}, fmt.Errorf("algo htlc create requires relayerAddress and appAddress in aux")
	}

	timelockBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(timelockBuf, uint64(timelock.Unix()))

	pay, err := transaction.MakePaymentTxn(relayerAddr, appAddr, amount.Uint64(), nil, "", sp)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("make funding payment: %w", err)
	}

	appCall, err := transaction.MakeApplicationNoOpTx(
		a.cfg.AppID,
		[][]byte{[]byte("create_htlc"), hashlock[:], timelockBuf, []byte(relayerAddr), []byte(recipient)},
		nil, nil, nil, nil,
		sp, mustDecodeAddress(relayerAddr), nil, types.Digest{}, [32]byte{}, types.Address{},
	)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("make create_htlc app call: %w", err)
	}

	grouped, err := transaction.AssignGroupID([]types.Transaction{pay, appCall})
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("assign group id: %w", err)
	}

	encoded := make([][]byte, len(grouped))
	for i, t := range grouped {
		encoded[i] = encodeUnsignedTxn(t)
	}
	return encodeAlgoGroup(algoGroupRequest{Txns: encoded})
}

// EncodeHTLCClaim builds a single claim_htlc app-call revealing secret.
func (a *AlgoAdapter) EncodeHTLCClaim(ref HTLCRef, secret cryptoutil.Secret) (UnsignedTx, error) {
	ctx := context.Background()
	sp, err := a.suggestedParams(ctx)
	if err != nil {
		return UnsignedTx{}, err
	}
	sender, err := a.signer.Address(ctx, "")
	if err != nil {
		return UnsignedTx{}, &AdapterError{Kind: ErrRejected, Err: err}
	}

	appCall, err := transaction.MakeApplicationNoOpTx(
		a.cfg.AppID,
		[][]byte{[]byte("claim_htlc"), secret[:]},
		nil, nil, nil, nil,
		sp, mustDecodeAddress(sender), nil, types.Digest{}, [32]byte{}, types.Address{},
	)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("make claim_htlc app call: %w", err)
	}
	return encodeAlgoGroup(algoGroupRequest{Txns: [][]byte{encodeUnsignedTxn(appCall)}})
}

// EncodeHTLCRefund builds a single refund_htlc app-call.
func (a *AlgoAdapter) EncodeHTLCRefund(ref HTLCRef) (UnsignedTx, error) {
	ctx := context.Background()
	sp, err := a.suggestedParams(ctx)
	if err != nil {
		return UnsignedTx{}, err
	}
	sender, err := a.signer.Address(ctx, "")
	if err != nil {
		return UnsignedTx{}, &AdapterError{Kind: ErrRejected, Err: err}
	}

	appCall, err := transaction.MakeApplicationNoOpTx(
		a.cfg.AppID,
		[][]byte{[]byte("refund_htlc"), []byte(ref.HTLCID)},
		nil, nil, nil, nil,
		sp, mustDecodeAddress(sender), nil, types.Digest{}, [32]byte{}, types.Address{},
	)
	if err != nil {
		return UnsignedTx{}, fmt.Errorf("make refund_htlc app call: %w", err)
	}
	return encodeAlgoGroup(algoGroupRequest{Txns: [][]byte{encodeUnsignedTxn(appCall)}})
}

func mustDecodeAddress(addr string) types.Address {
	a, err := types.DecodeAddress(addr)
	if err != nil {
		return types.Address{}
	}
	return a
}

func encodeUnsignedTxn(t types.Transaction) []byte {
	return msgpack.Encode(t)
}
