package workflow

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/ledger"
	"github.com/chids04/0xm-relay/milestone"
	"github.com/chids04/0xm-relay/store"
)

// CreateMilestoneInput carries the caller-supplied milestone fields. A
// milestone with tagged users is a group milestone and starts a signature
// round; without any it is recorded solo, accepted immediately.
type CreateMilestoneInput struct {
	Description   string
	OccurredAt    string
	Image         []byte
	TaggedUserIDs []string
}

func (in *CreateMilestoneInput) validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return errors.New(errors.CodeValidation, "description is required")
	}
	if strings.TrimSpace(in.OccurredAt) == "" {
		return errors.New(errors.CodeValidation, "occurredAt is required")
	}
	return nil
}

// SignResult reports a signature submission.
type SignResult struct {
	TxHash    string `json:"txHash"`
	Finalized bool   `json:"finalized"`
}

// CreateMilestone records a milestone off-chain and on the ledger. The
// steps before the ledger call are reversible: uploaded artifacts are
// unpinned if the relay never commits, so an abort leaves no orphaned
// state.
func (s *Service) CreateMilestone(ctx context.Context, userID string, in CreateMilestoneInput) (*store.Milestone, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	key, addr, err := s.vault.SignerKey(userID)
	if err != nil {
		return nil, err
	}

	// every tagged user must already have a linked wallet
	var participants []ethcommon.Address
	for _, taggedID := range in.TaggedUserIDs {
		w, err := s.vault.Wallet(taggedID)
		if err != nil {
			return nil, err
		}
		participants = append(participants, ethcommon.HexToAddress(w.Address))
	}

	m := &store.Milestone{
		ID:            uuid.NewString(),
		Description:   in.Description,
		OccurredAt:    in.OccurredAt,
		OwnerID:       userID,
		OwnerAddress:  addr.Hex(),
		TaggedUserIDs: store.StringList(in.TaggedUserIDs),
		CreatedAt:     time.Now().UTC(),
	}
	for _, p := range participants {
		m.Participants = append(m.Participants, p.Hex())
	}

	if len(in.Image) > 0 {
		cid, err := s.content.AddBytes(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		m.ImageCID = cid
	}

	hash, err := milestone.ContentHashFor(m)
	if err != nil {
		s.removeArtifacts(ctx, m.ImageCID)
		return nil, errors.New(errors.CodeInternal, "failed to compute content hash").WithCause(err)
	}
	m.ContentHash = hash

	doc, err := milestone.MetadataFor(m).CanonicalJSON()
	if err != nil {
		s.removeArtifacts(ctx, m.ImageCID)
		return nil, errors.New(errors.CodeInternal, "failed to render metadata document").WithCause(err)
	}
	metadataCID, err := s.content.AddBytes(ctx, doc)
	if err != nil {
		s.removeArtifacts(ctx, m.ImageCID)
		return nil, err
	}
	m.MetadataCID = metadataCID

	action := ledger.ActionSoloMilestone
	if len(in.TaggedUserIDs) > 0 {
		action = ledger.ActionGroupMilestone
	}

	result, err := s.recordOnLedger(ctx, key, action, m, participants)
	if err != nil {
		s.removeArtifacts(ctx, m.ImageCID, m.MetadataCID)
		return nil, err
	}
	m.TxHash = result.TxHash.Hex()
	m.BlockNumber = result.BlockNumber

	if action == ledger.ActionSoloMilestone {
		err = s.states.CreateSolo(m)
	} else {
		err = s.states.CreateGroup(m)
	}
	if err != nil {
		// the ledger write is committed; local state is recoverable
		// through Reconcile, so the record is not rolled back
		return nil, err
	}

	s.logger.Info().
		Str("milestone_id", m.ID).
		Str("action", string(action)).
		Str("tx_hash", m.TxHash).
		Msg("milestone recorded")
	return m, nil
}

func (s *Service) recordOnLedger(ctx context.Context, key *ecdsa.PrivateKey, action ledger.Action, m *store.Milestone, participants []ethcommon.Address) (*ledger.SubmitResult, error) {
	if _, err := s.payFee(ctx, key, ethcommon.HexToAddress(m.OwnerAddress), action); err != nil {
		return nil, err
	}

	var call ledger.Call
	var err error
	if action == ledger.ActionSoloMilestone {
		call, err = s.encoder.AddMilestone(m.Description, m.ContentHash, m.ID)
	} else {
		call, err = s.encoder.AddGroupMilestone(m.Description, participants, m.ContentHash, m.ID)
	}
	if err != nil {
		return nil, err
	}
	return s.relayCall(ctx, key, action, call)
}

// SignMilestone submits one participant's signature for a pending group
// milestone. Whether the milestone finalized is decided solely by the
// Finalized event in this submission's receipt.
func (s *Service) SignMilestone(ctx context.Context, userID, milestoneID string) (*SignResult, error) {
	m, err := s.states.Milestone(milestoneID)
	if err != nil {
		return nil, err
	}
	if !m.TaggedUserIDs.Contains(userID) {
		return nil, errors.Newf(errors.CodeNotAParticipant,
			"user %s is not tagged on milestone %s", userID, milestoneID)
	}
	if !m.IsPending {
		return nil, errors.Newf(errors.CodeValidation,
			"milestone %s is not awaiting signatures", milestoneID)
	}

	key, addr, err := s.vault.SignerKey(userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.payFee(ctx, key, addr, ledger.ActionSign); err != nil {
		return nil, err
	}

	call, err := s.encoder.SignMilestone(ethcommon.HexToAddress(m.OwnerAddress), milestoneID)
	if err != nil {
		return nil, err
	}
	result, err := s.relayCall(ctx, key, ledger.ActionSign, call)
	if err != nil {
		return nil, err
	}

	_, finalized := ledger.FindFinalized(result.Events, milestoneID)
	if err := s.states.RecordSignature(milestoneID, userID, finalized); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("milestone_id", milestoneID).
		Str("user_id", userID).
		Bool("finalized", finalized).
		Msg("signature recorded")
	return &SignResult{TxHash: result.TxHash.Hex(), Finalized: finalized}, nil
}

// DeclineMilestone lets a tagged participant reject a pending group
// milestone. The record is removed from the ledger, every participant's
// index moves to declined, and cleanup of stored artifacts is deferred to
// the retention window.
func (s *Service) DeclineMilestone(ctx context.Context, userID, milestoneID string) error {
	m, err := s.states.Milestone(milestoneID)
	if err != nil {
		return err
	}
	if m.OwnerID == userID {
		return errors.New(errors.CodeNotAuthorized, "the owner cannot decline their own milestone")
	}
	if !m.TaggedUserIDs.Contains(userID) {
		return errors.Newf(errors.CodeNotAParticipant,
			"user %s is not tagged on milestone %s", userID, milestoneID)
	}
	if !m.IsPending {
		return errors.Newf(errors.CodeValidation,
			"milestone %s is not awaiting signatures", milestoneID)
	}

	key, _, err := s.vault.SignerKey(userID)
	if err != nil {
		return err
	}

	call, err := s.encoder.RemoveMilestone(ethcommon.HexToAddress(m.OwnerAddress), milestoneID)
	if err != nil {
		return err
	}
	if _, err := s.relayCall(ctx, key, ledger.ActionDecline, call); err != nil {
		return err
	}

	return s.states.Decline(milestoneID, userID, s.declineRetention)
}

// VerifyMilestone recomputes the milestone's content hash from stored
// metadata and compares it against the ledger. A mismatch is reported in
// the result, not as an error.
func (s *Service) VerifyMilestone(ctx context.Context, userID, milestoneID string) (*milestone.VerifyResult, error) {
	return s.verifier.Verify(ctx, userID, milestoneID)
}

// Reconcile re-derives a milestone's finalization state from the ledger's
// event log alone. Covers the window where a crash landed between the
// ledger commit and the local index update: the accepted transition is an
// idempotent union, so replaying it is always safe.
func (s *Service) Reconcile(ctx context.Context, milestoneID string) (bool, error) {
	m, err := s.states.Milestone(milestoneID)
	if err != nil {
		return false, err
	}
	if !m.IsPending {
		return true, nil
	}

	head, err := s.chain.GetLatestBlock(ctx)
	if err != nil {
		return false, errors.New(errors.CodeLedgerUnavailable, "failed to read chain height").WithCause(err)
	}
	events, err := s.events.Scan(ctx, m.BlockNumber, head)
	if err != nil {
		return false, err
	}

	if _, found := ledger.FindFinalized(events, milestoneID); !found {
		return false, nil
	}
	if err := s.states.Finalize(milestoneID); err != nil {
		return false, err
	}
	s.logger.Info().Str("milestone_id", milestoneID).Msg("finalization reconciled from event log")
	return true, nil
}
