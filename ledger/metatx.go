package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
)

const (
	// Gas is padded by half again over the node's estimate so forwarder
	// bookkeeping overhead never starves the inner call.
	gasPaddingNumerator   = 3
	gasPaddingDenominator = 2

	// Used when the node cannot produce an estimate.
	fallbackGasLimit = 1_000_000

	// A request older than this is stale and must be rebuilt.
	forwardRequestTTL = time.Hour
)

// ForwardBackend is the slice of the RPC pool the meta-transaction
// builder needs.
type ForwardBackend interface {
	ContractCaller
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// MetaTransactionBuilder produces signed forward requests for the
// ERC-2771 forwarder. The forwarder's nonce and EIP-712 domain are read
// live on every build, never cached, so a forwarder upgrade or redeploy
// cannot produce signatures over a stale domain.
type MetaTransactionBuilder struct {
	backend ForwardBackend
	addrs   Addresses
	logger  zerolog.Logger
}

func NewMetaTransactionBuilder(backend ForwardBackend, addrs Addresses, log zerolog.Logger) *MetaTransactionBuilder {
	return &MetaTransactionBuilder{
		backend: backend,
		addrs:   addrs,
		logger:  logger.Component(log, "metatx_builder"),
	}
}

// Build wraps calldata for a target contract into a forward request signed
// by the user's key. The request carries the forwarder's current nonce for
// the signer, so it is valid for exactly one execution.
func (b *MetaTransactionBuilder) Build(ctx context.Context, userKey *ecdsa.PrivateKey, target ethcommon.Address, calldata []byte) (*ForwardedCallRequest, error) {
	from := crypto.PubkeyToAddress(userKey.PublicKey)

	nonce, err := callNonces(ctx, b.backend, b.addrs.Forwarder, from)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read forwarder nonce").WithCause(err)
	}

	domain, err := callEIP712Domain(ctx, b.backend, b.addrs.Forwarder)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read forwarder signing domain").WithCause(err)
	}

	req := &ForwardedCallRequest{
		From:     from,
		To:       target,
		Value:    big.NewInt(0),
		Gas:      b.estimateGas(ctx, from, target, calldata),
		Nonce:    nonce,
		Deadline: time.Now().Add(forwardRequestTTL).Unix(),
		Data:     calldata,
	}

	sig, err := signTypedData(userKey, forwardRequestTypedData(domain, req))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to sign forward request").WithCause(err)
	}
	req.Signature = sig

	b.logger.Debug().
		Str("from", from.Hex()).
		Str("to", target.Hex()).
		Str("nonce", nonce.String()).
		Uint64("gas", req.Gas).
		Msg("built forward request")
	return req, nil
}

func (b *MetaTransactionBuilder) estimateGas(ctx context.Context, from, target ethcommon.Address, calldata []byte) uint64 {
	estimate, err := b.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &target,
		Data: calldata,
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("gas estimation failed, using fallback limit")
		return fallbackGasLimit
	}
	return estimate * gasPaddingNumerator / gasPaddingDenominator
}
