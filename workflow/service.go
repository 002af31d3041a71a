// Package workflow wires the key vault, content store, ledger builders and
// the milestone state machine into the subsystem's request/response
// operations. Every operation is sequential: nothing here runs its own
// scheduler, and once a forwarded call is submitted it either lands or
// times out.
package workflow

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/ledger"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/milestone"
	"github.com/chids04/0xm-relay/store"
)

// ledgerReadRetry bounds retries of idempotent ledger reads. Writes are
// never retried here: a failed workflow is retried whole by the caller.
var ledgerReadRetry = &errors.RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

// ContentStore is the slice of the content store the workflows use.
type ContentStore interface {
	AddBytes(ctx context.Context, data []byte) (string, error)
	Fetch(ctx context.Context, cid string) ([]byte, error)
	Remove(ctx context.Context, cid string) error
}

// KeyVault provides per-user signing keys and wallet records.
type KeyVault interface {
	CreateWallet(userID string) (*store.Wallet, error)
	Wallet(userID string) (*store.Wallet, error)
	SignerKey(userID string) (*ecdsa.PrivateKey, ethcommon.Address, error)
	UpdateCachedBalance(userID, balance string) error
}

// FeeQuoter prices an action for a caller against the live fee schedule.
type FeeQuoter interface {
	Quote(ctx context.Context, action ledger.Action, caller ethcommon.Address) (*ledger.Quote, error)
}

// ApprovalBuilder produces gasless fee-token spending authorizations.
type ApprovalBuilder interface {
	AuthorizeSpend(ctx context.Context, userKey *ecdsa.PrivateKey, value *big.Int) (*ledger.ForwardedCallRequest, error)
}

// RequestBuilder wraps calldata into signed forward requests.
type RequestBuilder interface {
	Build(ctx context.Context, userKey *ecdsa.PrivateKey, target ethcommon.Address, calldata []byte) (*ledger.ForwardedCallRequest, error)
}

// Submitter relays forward requests and waits for inclusion.
type Submitter interface {
	Submit(ctx context.Context, action ledger.Action, req *ledger.ForwardedCallRequest) (*ledger.SubmitResult, error)
}

// LedgerReader exposes the ledger's read-only views.
type LedgerReader interface {
	TokenBalance(ctx context.Context, owner ethcommon.Address) (*big.Int, error)
}

// EventSource replays tracked ledger events for reconciliation.
type EventSource interface {
	Scan(ctx context.Context, fromBlock, toBlock uint64) ([]ledger.Event, error)
}

// ChainHeight reads the ledger's latest block number.
type ChainHeight interface {
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// AuditReader lists past relayed submissions for an address.
type AuditReader interface {
	History(from ethcommon.Address, limit int) ([]store.RelayedTransaction, error)
}

// Service is the operation surface of the subsystem.
type Service struct {
	vault            KeyVault
	content          ContentStore
	oracle           FeeQuoter
	approvals        ApprovalBuilder
	metatx           RequestBuilder
	submitter        Submitter
	reader           LedgerReader
	events           EventSource
	chain            ChainHeight
	audit            AuditReader
	encoder          *ledger.ActionEncoder
	states           *milestone.StateMachine
	verifier         *milestone.VerificationEngine
	declineRetention time.Duration
	logger           zerolog.Logger
}

// Deps bundles the service's collaborators.
type Deps struct {
	Vault            KeyVault
	Content          ContentStore
	Oracle           FeeQuoter
	Approvals        ApprovalBuilder
	MetaTx           RequestBuilder
	Submitter        Submitter
	Reader           LedgerReader
	Events           EventSource
	Chain            ChainHeight
	Audit            AuditReader
	Encoder          *ledger.ActionEncoder
	States           *milestone.StateMachine
	Verifier         *milestone.VerificationEngine
	DeclineRetention time.Duration
}

func NewService(deps Deps, log zerolog.Logger) *Service {
	return &Service{
		vault:            deps.Vault,
		content:          deps.Content,
		oracle:           deps.Oracle,
		approvals:        deps.Approvals,
		metatx:           deps.MetaTx,
		submitter:        deps.Submitter,
		reader:           deps.Reader,
		events:           deps.Events,
		chain:            deps.Chain,
		audit:            deps.Audit,
		encoder:          deps.Encoder,
		states:           deps.States,
		verifier:         deps.Verifier,
		declineRetention: deps.DeclineRetention,
		logger:           logger.Component(log, "workflow"),
	}
}

// CreateWallet links a signing wallet to the user, creating one if none
// exists yet.
func (s *Service) CreateWallet(_ context.Context, userID string) (*store.Wallet, error) {
	return s.vault.CreateWallet(userID)
}

// WalletAddress returns the user's linked address.
func (s *Service) WalletAddress(_ context.Context, userID string) (string, error) {
	w, err := s.vault.Wallet(userID)
	if err != nil {
		return "", err
	}
	return w.Address, nil
}

// Balance reads the user's fee token balance from the ledger and refreshes
// the cached copy in the wallet record.
func (s *Service) Balance(ctx context.Context, userID string) (*big.Int, error) {
	w, err := s.vault.Wallet(userID)
	if err != nil {
		return nil, err
	}
	var balance *big.Int
	err = errors.RetryWithConfig(ctx, func() error {
		var readErr error
		balance, readErr = s.reader.TokenBalance(ctx, ethcommon.HexToAddress(w.Address))
		return readErr
	}, ledgerReadRetry)
	if err != nil {
		return nil, err
	}
	if err := s.vault.UpdateCachedBalance(userID, balance.String()); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to refresh cached balance")
	}
	return balance, nil
}

// historyLimit caps how many audit rows one history read returns.
const historyLimit = 50

// History lists the relayed transactions forwarded for the user's wallet,
// newest first. Reverted submissions are included.
func (s *Service) History(_ context.Context, userID string) ([]store.RelayedTransaction, error) {
	w, err := s.vault.Wallet(userID)
	if err != nil {
		return nil, err
	}
	return s.audit.History(ethcommon.HexToAddress(w.Address), historyLimit)
}

// QuoteFee prices an action for the user at the current schedule and tier.
func (s *Service) QuoteFee(ctx context.Context, userID string, action ledger.Action) (*ledger.Quote, error) {
	w, err := s.vault.Wallet(userID)
	if err != nil {
		return nil, err
	}
	var quote *ledger.Quote
	err = errors.RetryWithConfig(ctx, func() error {
		var quoteErr error
		quote, quoteErr = s.oracle.Quote(ctx, action, ethcommon.HexToAddress(w.Address))
		return quoteErr
	}, ledgerReadRetry)
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// payFee quotes the action, builds a permit for the discounted fee and
// relays it. Nothing has been written anywhere when this fails, so errors
// short-circuit with no cleanup.
func (s *Service) payFee(ctx context.Context, key *ecdsa.PrivateKey, addr ethcommon.Address, action ledger.Action) (*ledger.Quote, error) {
	quote, err := s.oracle.Quote(ctx, action, addr)
	if err != nil {
		return nil, err
	}
	if err := s.relayPermit(ctx, key, quote.DiscountedFee); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *Service) relayPermit(ctx context.Context, key *ecdsa.PrivateKey, value *big.Int) error {
	permit, err := s.approvals.AuthorizeSpend(ctx, key, value)
	if err != nil {
		return err
	}
	_, err = s.submitter.Submit(ctx, ledger.ActionPermit, permit)
	return err
}

// relayCall wraps a contract call for the user and submits it.
func (s *Service) relayCall(ctx context.Context, key *ecdsa.PrivateKey, action ledger.Action, call ledger.Call) (*ledger.SubmitResult, error) {
	fwd, err := s.metatx.Build(ctx, key, call.Target, call.Data)
	if err != nil {
		return nil, err
	}
	return s.submitter.Submit(ctx, action, fwd)
}

// removeArtifacts unpins uploaded CIDs after a failed ledger step. Best
// effort: the ledger never committed, so a leaked pin is the worst case.
func (s *Service) removeArtifacts(ctx context.Context, cids ...string) {
	for _, cid := range cids {
		if cid == "" {
			continue
		}
		if err := s.content.Remove(ctx, cid); err != nil {
			s.logger.Warn().Err(err).Str("cid", cid).Msg("failed to roll back uploaded artifact")
		}
	}
}

func requireHexAddress(addr string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(addr) {
		return ethcommon.Address{}, errors.Newf(errors.CodeValidation, "%q is not a valid address", addr)
	}
	return ethcommon.HexToAddress(addr), nil
}
