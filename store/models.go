// Package store contains the GORM-backed models of the off-chain document
// store: milestone records, the per-user index buckets, wallet records with
// encrypted key material, decline expiry records, and the relayed
// transaction audit log.
package store

import (
	"time"

	"gorm.io/gorm"
)

// Bucket names for IndexEntry. A milestone reference lives in exactly one
// bucket per user at any instant; the unique index on (user_id,
// milestone_id) enforces that at the storage layer.
const (
	BucketPending  = "pending"
	BucketSigned   = "signed"
	BucketAccepted = "accepted"
	BucketDeclined = "declined"
)

// Milestone is the off-chain record of a single milestone. ContentHash is a
// deterministic digest over the canonical field set and must match the
// ledger's stored hash for the milestone to verify.
type Milestone struct {
	ID             string `gorm:"primaryKey"`
	Description    string
	OccurredAt     string // caller-supplied date for the achievement
	ImageCID       string // content store CID of the attached image, if any
	MetadataCID    string // content store CID of the canonical metadata doc
	OwnerID        string `gorm:"index"`
	OwnerAddress   string
	Participants   StringList `gorm:"type:text"` // participant wallet addresses
	TaggedUserIDs  StringList `gorm:"type:text"`
	ContentHash    string
	IsPending      bool
	SignatureCount int
	CreatedAt      time.Time
	TxHash         string // submission that recorded the milestone on the ledger
	BlockNumber    uint64
	NFTTokenID     string // set once a certificate is minted
}

// IndexEntry is one per-user bucket membership. Upserts on the composite
// key make the accepted-transition a set union rather than an append.
type IndexEntry struct {
	gorm.Model
	UserID      string `gorm:"uniqueIndex:idx_user_milestone;not null"`
	MilestoneID string `gorm:"uniqueIndex:idx_user_milestone;not null"`
	Bucket      string `gorm:"index;not null"`
}

// Wallet links a user to their signing address. EncryptedKey is the
// keystore JSON blob owned exclusively by the key vault; Address is
// immutable once set.
type Wallet struct {
	UserID        string `gorm:"primaryKey"`
	Address       string `gorm:"uniqueIndex;not null"`
	EncryptedKey  string `gorm:"type:text;not null"`
	CachedBalance string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExpiryRecord schedules deferred cleanup of a declined milestone's
// externally stored artifacts.
type ExpiryRecord struct {
	gorm.Model
	MilestoneID string     `gorm:"uniqueIndex;not null"`
	CIDs        StringList `gorm:"type:text"`
	CleanupAt   time.Time  `gorm:"index;not null"`
}

// RelayedTransaction is the audit log of forwarded calls submitted through
// the admin relay account.
type RelayedTransaction struct {
	gorm.Model
	TxHash      string `gorm:"uniqueIndex"`
	Action      string `gorm:"index"` // solo_milestone, group_milestone, sign, decline, transfer, subscribe, mint, permit
	From        string // signer the call was forwarded for
	Nonce       uint64
	BlockNumber uint64
	Status      string `gorm:"index"` // "success" or "reverted"
}
