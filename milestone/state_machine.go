package milestone

import (
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/store"
)

// StateMachine applies milestone transitions against the document store.
// Every transition is a single database transaction, so a partially
// applied transition is never observable. Bucket moves are upserts keyed
// on (user, milestone): replaying a move is a set union, not an append,
// and a reference can only ever live in one bucket per user.
type StateMachine struct {
	database *gorm.DB
	logger   zerolog.Logger
}

func NewStateMachine(database *gorm.DB, log zerolog.Logger) *StateMachine {
	return &StateMachine{
		database: database,
		logger:   logger.Component(log, "state_machine"),
	}
}

// CreateSolo records a milestone with no signature round. The record lands
// directly in the owner's accepted bucket; nobody else's index is touched.
func (sm *StateMachine) CreateSolo(m *store.Milestone) error {
	m.IsPending = false
	m.SignatureCount = 0
	return sm.transact(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return createError(err, m.ID)
		}
		return moveToBucket(tx, m.OwnerID, m.ID, store.BucketAccepted)
	})
}

// CreateGroup records a milestone awaiting signatures. The owner and every
// tagged participant start in pending.
func (sm *StateMachine) CreateGroup(m *store.Milestone) error {
	m.IsPending = true
	m.SignatureCount = 0
	return sm.transact(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return createError(err, m.ID)
		}
		if err := moveToBucket(tx, m.OwnerID, m.ID, store.BucketPending); err != nil {
			return err
		}
		for _, userID := range m.TaggedUserIDs {
			if err := moveToBucket(tx, userID, m.ID, store.BucketPending); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordSignature applies one participant's signature. If the ledger
// finalized the milestone in the same submission, every participant and
// the owner move straight to accepted and the pending flag clears;
// otherwise only the signer's own index moves, to signed. The finalized
// decision comes from the ledger's event log, never from the local
// signature count, so two signers racing in the same block cannot drift.
func (sm *StateMachine) RecordSignature(milestoneID, signerUserID string, finalized bool) error {
	return sm.transact(func(tx *gorm.DB) error {
		m, err := loadMilestone(tx, milestoneID)
		if err != nil {
			return err
		}
		if !m.TaggedUserIDs.Contains(signerUserID) {
			return errors.Newf(errors.CodeNotAParticipant,
				"user %s is not tagged on milestone %s", signerUserID, milestoneID)
		}

		updates := map[string]any{"signature_count": gorm.Expr("signature_count + 1")}
		if finalized {
			updates["is_pending"] = false
		}
		if err := tx.Model(&store.Milestone{}).Where("id = ?", milestoneID).Updates(updates).Error; err != nil {
			return errors.New(errors.CodeInternal, "failed to update milestone").WithCause(err)
		}

		if !finalized {
			return moveToBucket(tx, signerUserID, milestoneID, store.BucketSigned)
		}
		if err := moveToBucket(tx, m.OwnerID, milestoneID, store.BucketAccepted); err != nil {
			return err
		}
		for _, userID := range m.TaggedUserIDs {
			if err := moveToBucket(tx, userID, milestoneID, store.BucketAccepted); err != nil {
				return err
			}
		}
		return nil
	})
}

// Finalize moves every tagged participant and the owner to accepted. Used
// by reconciliation when a Finalized event is replayed from the ledger's
// log rather than observed in a live submission.
func (sm *StateMachine) Finalize(milestoneID string) error {
	return sm.transact(func(tx *gorm.DB) error {
		m, err := loadMilestone(tx, milestoneID)
		if err != nil {
			return err
		}
		if err := tx.Model(&store.Milestone{}).Where("id = ?", milestoneID).
			Update("is_pending", false).Error; err != nil {
			return errors.New(errors.CodeInternal, "failed to update milestone").WithCause(err)
		}
		if err := moveToBucket(tx, m.OwnerID, milestoneID, store.BucketAccepted); err != nil {
			return err
		}
		for _, userID := range m.TaggedUserIDs {
			if err := moveToBucket(tx, userID, milestoneID, store.BucketAccepted); err != nil {
				return err
			}
		}
		return nil
	})
}

// Decline moves the decliner, the owner, and every other tagged
// participant to declined and schedules cleanup of the milestone's stored
// artifacts after the retention window.
func (sm *StateMachine) Decline(milestoneID, declinerUserID string, retention time.Duration) error {
	return sm.transact(func(tx *gorm.DB) error {
		m, err := loadMilestone(tx, milestoneID)
		if err != nil {
			return err
		}
		if !m.TaggedUserIDs.Contains(declinerUserID) {
			return errors.Newf(errors.CodeNotAParticipant,
				"user %s is not tagged on milestone %s", declinerUserID, milestoneID)
		}

		if err := moveToBucket(tx, m.OwnerID, milestoneID, store.BucketDeclined); err != nil {
			return err
		}
		for _, userID := range m.TaggedUserIDs {
			if err := moveToBucket(tx, userID, milestoneID, store.BucketDeclined); err != nil {
				return err
			}
		}

		var cids store.StringList
		if m.ImageCID != "" {
			cids = append(cids, m.ImageCID)
		}
		if m.MetadataCID != "" {
			cids = append(cids, m.MetadataCID)
		}
		record := store.ExpiryRecord{
			MilestoneID: milestoneID,
			CIDs:        cids,
			CleanupAt:   time.Now().Add(retention),
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "milestone_id"}},
			DoNothing: true,
		}).Create(&record).Error
		if err != nil {
			return errors.New(errors.CodeInternal, "failed to write expiry record").WithCause(err)
		}
		return nil
	})
}

// AttachCertificate records the minted token against the milestone.
func (sm *StateMachine) AttachCertificate(milestoneID, tokenID string) error {
	res := sm.database.Model(&store.Milestone{}).Where("id = ?", milestoneID).
		Update("nft_token_id", tokenID)
	if res.Error != nil {
		return errors.New(errors.CodeInternal, "failed to record certificate").WithCause(res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.Newf(errors.CodeNotFound, "milestone %s not found", milestoneID)
	}
	return nil
}

// Milestone loads a single record.
func (sm *StateMachine) Milestone(milestoneID string) (*store.Milestone, error) {
	return loadMilestone(sm.database, milestoneID)
}

// Bucket lists the milestone IDs in one of a user's buckets, oldest first.
func (sm *StateMachine) Bucket(userID, bucket string) ([]string, error) {
	var ids []string
	err := sm.database.Model(&store.IndexEntry{}).
		Where("user_id = ? AND bucket = ?", userID, bucket).
		Order("id").
		Pluck("milestone_id", &ids).Error
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to list index bucket").WithCause(err)
	}
	return ids, nil
}

func (sm *StateMachine) transact(fn func(tx *gorm.DB) error) error {
	return sm.database.Transaction(fn)
}

// moveToBucket places (userID, milestoneID) in the given bucket. The
// composite unique index turns a second placement into an update, so the
// reference only ever exists in one bucket.
func moveToBucket(tx *gorm.DB, userID, milestoneID, bucket string) error {
	entry := store.IndexEntry{
		UserID:      userID,
		MilestoneID: milestoneID,
		Bucket:      bucket,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "milestone_id"}},
		DoUpdates: clause.Assignments(map[string]any{"bucket": bucket, "updated_at": time.Now()}),
	}).Create(&entry).Error
	if err != nil {
		return errors.Newf(errors.CodeInternal, "failed to move %s/%s to %s", userID, milestoneID, bucket).WithCause(err)
	}
	return nil
}

func loadMilestone(tx *gorm.DB, milestoneID string) (*store.Milestone, error) {
	var m store.Milestone
	if err := tx.Where("id = ?", milestoneID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.CodeNotFound, "milestone %s not found", milestoneID)
		}
		return nil, errors.New(errors.CodeInternal, "failed to load milestone").WithCause(err)
	}
	return &m, nil
}

func createError(err error, milestoneID string) error {
	return errors.Newf(errors.CodeAlreadyExists, "milestone %s already recorded", milestoneID).WithCause(err)
}
