// Package milestone contains the off-chain milestone record logic: the
// canonical content hash, the per-user index state machine, verification
// against the ledger's stored hash, and expiry of declined records.
package milestone

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chids04/0xm-relay/store"
)

// Metadata is the canonical milestone document stored in the content
// store. Its JSON form is the exact byte sequence the content hash covers,
// so field order and formatting here are load-bearing.
type Metadata struct {
	ID            string   `json:"id"`
	Description   string   `json:"description"`
	OccurredAt    string   `json:"occurredAt"`
	Image         string   `json:"image"`
	Owner         string   `json:"owner"`
	Participants  []string `json:"participants"`
	TaggedUserIDs []string `json:"taggedUserIds"`
	CreatedAt     string   `json:"createdAt"`
}

// MetadataFor builds the canonical document for a milestone record. Nil
// and empty lists produce identical documents, so a record hashes the same
// before and after a round trip through storage.
func MetadataFor(m *store.Milestone) Metadata {
	return Metadata{
		ID:            m.ID,
		Description:   m.Description,
		OccurredAt:    m.OccurredAt,
		Image:         m.ImageCID,
		Owner:         m.OwnerID,
		Participants:  normalizeList(m.Participants),
		TaggedUserIDs: normalizeList(m.TaggedUserIDs),
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CanonicalJSON renders the document in its canonical byte form.
func (md Metadata) CanonicalJSON() ([]byte, error) {
	doc := md
	doc.Participants = normalizeList(doc.Participants)
	doc.TaggedUserIDs = normalizeList(doc.TaggedUserIDs)
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render canonical metadata: %w", err)
	}
	return b, nil
}

// ContentHash is the hex sha256 of the canonical document.
func (md Metadata) ContentHash() (string, error) {
	b, err := md.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ContentHashFor computes the canonical hash directly from a stored
// milestone record.
func ContentHashFor(m *store.Milestone) (string, error) {
	return MetadataFor(m).ContentHash()
}

// ParseMetadata decodes a document fetched back from the content store.
func ParseMetadata(raw []byte) (Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse milestone metadata: %w", err)
	}
	return md, nil
}

func normalizeList(l []string) []string {
	if len(l) == 0 {
		return []string{}
	}
	return l
}
