package workflow

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/ledger"
)

// TransferResult reports a relayed token transfer.
type TransferResult struct {
	TxHash string   `json:"txHash"`
	Amount *big.Int `json:"amount"`
	Fee    *big.Int `json:"fee"`
}

// MintResult reports a minted certificate.
type MintResult struct {
	TxHash   string `json:"txHash"`
	TokenID  string `json:"tokenId"`
	TokenURI string `json:"tokenUri"`
}

// Transfer moves fee tokens from the user to another address without the
// user paying gas. The permit covers the amount plus the transfer fee, so
// the balance check rejects transfers the fee would push underwater.
func (s *Service) Transfer(ctx context.Context, userID, to string, amount *big.Int) (*TransferResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.New(errors.CodeValidation, "amount must be positive")
	}
	recipient, err := requireHexAddress(to)
	if err != nil {
		return nil, err
	}

	key, addr, err := s.vault.SignerKey(userID)
	if err != nil {
		return nil, err
	}

	quote, err := s.oracle.Quote(ctx, ledger.ActionTransfer, addr)
	if err != nil {
		return nil, err
	}

	total := new(big.Int).Add(amount, quote.DiscountedFee)
	if err := s.relayPermit(ctx, key, total); err != nil {
		return nil, err
	}

	call, err := s.encoder.Transfer(recipient, amount)
	if err != nil {
		return nil, err
	}
	result, err := s.relayCall(ctx, key, ledger.ActionTransfer, call)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("to", recipient.Hex()).
		Str("amount", amount.String()).
		Str("tx_hash", result.TxHash.Hex()).
		Msg("transfer relayed")
	return &TransferResult{
		TxHash: result.TxHash.Hex(),
		Amount: amount,
		Fee:    quote.DiscountedFee,
	}, nil
}

// Subscribe relays a subscription tier change for the user.
func (s *Service) Subscribe(ctx context.Context, userID string, tier ledger.Tier) (string, error) {
	if tier > ledger.Tier2 {
		return "", errors.Newf(errors.CodeValidation, "unknown subscription tier %d", tier)
	}

	key, _, err := s.vault.SignerKey(userID)
	if err != nil {
		return "", err
	}

	call, err := s.encoder.Subscribe(tier)
	if err != nil {
		return "", err
	}
	result, err := s.relayCall(ctx, key, ledger.ActionSubscribe, call)
	if err != nil {
		return "", err
	}
	return result.TxHash.Hex(), nil
}

// certificateMetadata is the ERC-721 token metadata document.
type certificateMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// MintCertificate mints an ERC-721 certificate for a finalized milestone
// owned by the caller. Uploaded artifacts are rolled back if the mint
// never commits.
func (s *Service) MintCertificate(ctx context.Context, userID, milestoneID string, image []byte) (*MintResult, error) {
	m, err := s.states.Milestone(milestoneID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != userID {
		return nil, errors.Newf(errors.CodeNotAuthorized,
			"only the owner may mint a certificate for milestone %s", milestoneID)
	}
	if m.IsPending {
		return nil, errors.Newf(errors.CodeValidation,
			"milestone %s is not finalized", milestoneID)
	}
	if m.NFTTokenID != "" {
		return nil, errors.Newf(errors.CodeAlreadyExists,
			"milestone %s already has certificate token %s", milestoneID, m.NFTTokenID)
	}

	key, addr, err := s.vault.SignerKey(userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.payFee(ctx, key, addr, ledger.ActionMint); err != nil {
		return nil, err
	}

	var imageCID string
	if len(image) > 0 {
		if imageCID, err = s.content.AddBytes(ctx, image); err != nil {
			return nil, err
		}
	}

	meta := certificateMetadata{
		Name:        "Milestone certificate",
		Description: m.Description,
	}
	if imageCID != "" {
		meta.Image = "ipfs://" + imageCID
	}
	doc, err := json.Marshal(meta)
	if err != nil {
		s.removeArtifacts(ctx, imageCID)
		return nil, errors.New(errors.CodeInternal, "failed to render certificate metadata").WithCause(err)
	}
	metaCID, err := s.content.AddBytes(ctx, doc)
	if err != nil {
		s.removeArtifacts(ctx, imageCID)
		return nil, err
	}
	tokenURI := "ipfs://" + metaCID

	call, err := s.encoder.MintCertificate(addr, tokenURI)
	if err != nil {
		s.removeArtifacts(ctx, imageCID, metaCID)
		return nil, err
	}
	result, err := s.relayCall(ctx, key, ledger.ActionMint, call)
	if err != nil {
		s.removeArtifacts(ctx, imageCID, metaCID)
		return nil, err
	}

	tokenID, err := mintedTokenID(result.Events)
	if err != nil {
		return nil, err
	}
	if err := s.states.AttachCertificate(milestoneID, tokenID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("milestone_id", milestoneID).
		Str("token_id", tokenID).
		Str("tx_hash", result.TxHash.Hex()).
		Msg("certificate minted")
	return &MintResult{
		TxHash:   result.TxHash.Hex(),
		TokenID:  tokenID,
		TokenURI: tokenURI,
	}, nil
}

func mintedTokenID(events []ledger.Event) (string, error) {
	for _, ev := range events {
		if ev.Kind == ledger.EventCertificateMinted && ev.TokenID != nil {
			return ev.TokenID.String(), nil
		}
	}
	return "", errors.New(errors.CodeLedgerExecutionFailed,
		"mint succeeded but no CertificateMinted event was emitted")
}
