package milestone

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
)

// MetadataFetcher fetches a stored document by CID.
type MetadataFetcher interface {
	Fetch(ctx context.Context, cid string) ([]byte, error)
}

// HashVerifier is the ledger's hash-comparison entry point.
type HashVerifier interface {
	VerifyHash(ctx context.Context, owner ethcommon.Address, milestoneID, candidateHash string) (bool, error)
}

// VerifyResult reports a verification outcome. A hash mismatch is a
// result, not an error: Verified is false and Hash carries the recomputed
// digest so the caller can see what diverged.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Hash     string `json:"hash"`
}

// VerificationEngine recomputes a milestone's content hash from its stored
// metadata and compares it against the hash the ledger recorded at
// creation time.
type VerificationEngine struct {
	database *gorm.DB
	fetcher  MetadataFetcher
	verifier HashVerifier
	logger   zerolog.Logger
}

func NewVerificationEngine(database *gorm.DB, fetcher MetadataFetcher, verifier HashVerifier, log zerolog.Logger) *VerificationEngine {
	return &VerificationEngine{
		database: database,
		fetcher:  fetcher,
		verifier: verifier,
		logger:   logger.Component(log, "verification"),
	}
}

// Verify recomputes the content hash for a milestone from the metadata
// document in the content store and asks the ledger whether it matches.
// Only the recorded owner may verify their milestone.
func (v *VerificationEngine) Verify(ctx context.Context, userID, milestoneID string) (*VerifyResult, error) {
	m, err := loadMilestone(v.database, milestoneID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != userID {
		return nil, errors.Newf(errors.CodeNotAuthorized,
			"only the owner may verify milestone %s", milestoneID)
	}

	raw, err := v.fetcher.Fetch(ctx, m.MetadataCID)
	if err != nil {
		return nil, errors.AsRelayError(err, errors.CodeContentStoreTimeout, "failed to fetch milestone metadata")
	}
	md, err := ParseMetadata(raw)
	if err != nil {
		return nil, errors.New(errors.CodeValidation, "stored metadata is not a valid milestone document").WithCause(err)
	}

	hash, err := md.ContentHash()
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to compute content hash").WithCause(err)
	}

	matches, err := v.verifier.VerifyHash(ctx, ethcommon.HexToAddress(m.OwnerAddress), milestoneID, hash)
	if err != nil {
		return nil, err
	}
	if !matches {
		v.logger.Info().
			Str("milestone_id", milestoneID).
			Str("hash", hash).
			Msg("content hash does not match ledger record")
	}
	return &VerifyResult{Verified: matches, Hash: hash}, nil
}
