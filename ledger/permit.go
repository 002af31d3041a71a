package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
)

// A permit signature is short-lived on purpose: the spend happens in the
// same relay submission, so five minutes is ample.
const permitTTL = 5 * time.Minute

// GaslessApprovalBuilder produces ERC-2612 permit calls, wrapped as
// forward requests so the user never spends gas on the approval either.
type GaslessApprovalBuilder struct {
	backend ForwardBackend
	metatx  *MetaTransactionBuilder
	addrs   Addresses
	logger  zerolog.Logger
}

func NewGaslessApprovalBuilder(backend ForwardBackend, metatx *MetaTransactionBuilder, addrs Addresses, log zerolog.Logger) *GaslessApprovalBuilder {
	return &GaslessApprovalBuilder{
		backend: backend,
		metatx:  metatx,
		addrs:   addrs,
		logger:  logger.Component(log, "approval_builder"),
	}
}

// AuthorizeSpend builds a forward request that, once relayed, approves the
// relayer contract to pull value tokens from the user. The user's balance
// is checked first so an approval that could never be spent is rejected
// before anything is signed.
func (g *GaslessApprovalBuilder) AuthorizeSpend(ctx context.Context, userKey *ecdsa.PrivateKey, value *big.Int) (*ForwardedCallRequest, error) {
	owner := crypto.PubkeyToAddress(userKey.PublicKey)

	balance, err := callBalanceOf(ctx, g.backend, g.addrs.Token, owner)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read token balance").WithCause(err)
	}
	if balance.Cmp(value) < 0 {
		return nil, errors.Newf(errors.CodeInsufficientBalance,
			"balance %s is below the required fee %s", balance, value)
	}

	nonce, err := callNonces(ctx, g.backend, g.addrs.Token, owner)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read token permit nonce").WithCause(err)
	}

	domain, err := callEIP712Domain(ctx, g.backend, g.addrs.Token)
	if err != nil {
		return nil, errors.New(errors.CodeLedgerUnavailable, "failed to read token signing domain").WithCause(err)
	}

	deadline := big.NewInt(time.Now().Add(permitTTL).Unix())
	spender := g.addrs.Relayer

	sig, err := signTypedData(userKey, permitTypedData(domain, owner, spender, value, nonce, deadline))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to sign permit").WithCause(err)
	}
	v, r, s, err := splitSignature(sig)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to split permit signature").WithCause(err)
	}

	calldata, err := encodePermit(owner, spender, value, deadline, v, r, s)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to encode permit call").WithCause(err)
	}

	req, err := g.metatx.Build(ctx, userKey, g.addrs.Token, calldata)
	if err != nil {
		return nil, err
	}

	g.logger.Debug().
		Str("owner", owner.Hex()).
		Str("spender", spender.Hex()).
		Str("value", value.String()).
		Msg("built gasless approval")
	return req, nil
}

// SpenderFor reports the address that permits authorize. Exposed so
// callers can verify a quote and an approval target the same contract.
func (g *GaslessApprovalBuilder) SpenderFor() ethcommon.Address {
	return g.addrs.Relayer
}
