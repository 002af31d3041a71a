package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
)

// Receipt polling cadence while waiting for inclusion.
const receiptPollInterval = 2 * time.Second

// RelayBackend is the slice of the RPC pool the relay submitter needs.
type RelayBackend interface {
	ForwardBackend
	GetGasPrice(ctx context.Context) (*big.Int, error)
	GetPendingNonce(ctx context.Context, addr ethcommon.Address) (uint64, error)
	BroadcastTransaction(ctx context.Context, tx *types.Transaction) error
	GetTransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
}

// RelaySubmitter wraps forward requests in transactions signed by the
// admin relay account and waits for their inclusion. The admin account is
// the only key that ever pays gas.
type RelaySubmitter struct {
	backend          RelayBackend
	adminKey         *ecdsa.PrivateKey
	adminAddr        ethcommon.Address
	chainID          *big.Int
	addrs            Addresses
	audit            *AuditLog
	inclusionTimeout time.Duration
	logger           zerolog.Logger
}

func NewRelaySubmitter(backend RelayBackend, adminKey *ecdsa.PrivateKey, chainID int64, addrs Addresses, audit *AuditLog, inclusionTimeout time.Duration, log zerolog.Logger) *RelaySubmitter {
	return &RelaySubmitter{
		backend:          backend,
		adminKey:         adminKey,
		adminAddr:        crypto.PubkeyToAddress(adminKey.PublicKey),
		chainID:          big.NewInt(chainID),
		addrs:            addrs,
		audit:            audit,
		inclusionTimeout: inclusionTimeout,
		logger:           logger.Component(log, "relay_submitter"),
	}
}

// AdminAddress returns the relay account that funds submissions.
func (rs *RelaySubmitter) AdminAddress() ethcommon.Address {
	return rs.adminAddr
}

// Submit sends a forward request to the forwarder's execute entry point
// and blocks until the transaction is mined or the inclusion timeout
// elapses. The returned result carries the receipt's decoded events, so
// everything downstream is scoped to this submission's transaction hash
// and block.
func (rs *RelaySubmitter) Submit(ctx context.Context, action Action, req *ForwardedCallRequest) (*SubmitResult, error) {
	calldata, err := encodeExecute(req)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to encode execute call").WithCause(err)
	}

	tx, err := rs.buildSignedTx(ctx, calldata, req.Gas)
	if err != nil {
		return nil, err
	}

	if err := rs.backend.BroadcastTransaction(ctx, tx); err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to broadcast relay transaction").WithCause(err)
	}
	rs.logger.Info().
		Str("tx_hash", tx.Hash().Hex()).
		Str("action", string(action)).
		Str("from", req.From.Hex()).
		Msg("relay transaction broadcast")

	receipt, err := rs.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}

	rs.audit.Record(action, req, tx.Hash(), receipt)

	if receipt.Status != types.ReceiptStatusSuccessful {
		if action == ActionPermit {
			return nil, errors.Newf(errors.CodeApprovalRejected,
				"permit reverted in transaction %s", tx.Hash().Hex())
		}
		return nil, errors.Newf(errors.CodeLedgerExecutionFailed,
			"forwarded call reverted in transaction %s", tx.Hash().Hex())
	}

	events, err := ParseReceiptEvents(receipt, rs.addrs)
	if err != nil {
		return nil, err
	}

	return &SubmitResult{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Events:      events,
	}, nil
}

func (rs *RelaySubmitter) buildSignedTx(ctx context.Context, calldata []byte, innerGas uint64) (*types.Transaction, error) {
	nonce, err := rs.backend.GetPendingNonce(ctx, rs.adminAddr)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read relay account nonce").WithCause(err)
	}
	gasPrice, err := rs.backend.GetGasPrice(ctx)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read gas price").WithCause(err)
	}

	gasLimit, err := rs.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: rs.adminAddr,
		To:   &rs.addrs.Forwarder,
		Data: calldata,
	})
	if err != nil {
		// Estimation against the forwarder can fail on some nodes even
		// for calls that execute fine; the inner budget plus forwarder
		// overhead is a safe ceiling.
		gasLimit = innerGas + 100_000
	}

	tx := types.NewTransaction(nonce, rs.addrs.Forwarder, big.NewInt(0), gasLimit, gasPrice, calldata)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(rs.chainID), rs.adminKey)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to sign relay transaction").WithCause(err)
	}
	return signed, nil
}

// waitMined polls for the receipt on a fixed cadence. The wait is bounded:
// a transaction that has not landed inside the inclusion timeout is
// reported as a ledger failure rather than held open forever.
func (rs *RelaySubmitter) waitMined(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, rs.inclusionTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := rs.backend.GetTransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, errors.Newf(errors.CodeLedgerExecutionFailed,
				"transaction %s not mined within %s", txHash.Hex(), rs.inclusionTimeout)
		case <-ticker.C:
		}
	}
}
