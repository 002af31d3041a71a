package milestone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chids04/0xm-relay/store"
)

func sampleMilestone() *store.Milestone {
	return &store.Milestone{
		ID:            "ms-1",
		Description:   "first marathon",
		OccurredAt:    "2026-04-12",
		ImageCID:      "QmImage",
		OwnerID:       "user-1",
		OwnerAddress:  "0x1000000000000000000000000000000000000001",
		Participants:  store.StringList{"0xaaa", "0xbbb"},
		TaggedUserIDs: store.StringList{"user-2", "user-3"},
		CreatedAt:     time.Date(2026, 4, 13, 9, 30, 0, 0, time.UTC),
	}
}

func TestContentHashDeterministic(t *testing.T) {
	m := sampleMilestone()

	h1, err := ContentHashFor(m)
	require.NoError(t, err)
	h2, err := ContentHashFor(m)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestContentHashSensitiveToFields(t *testing.T) {
	base, err := ContentHashFor(sampleMilestone())
	require.NoError(t, err)

	tampered := sampleMilestone()
	tampered.Description = "first marathon (edited)"
	h, err := ContentHashFor(tampered)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	reordered := sampleMilestone()
	reordered.Participants = store.StringList{"0xbbb", "0xaaa"}
	h, err = ContentHashFor(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, base, h, "participant order is part of the record")
}

func TestContentHashNilAndEmptyListsAgree(t *testing.T) {
	withNil := sampleMilestone()
	withNil.Participants = nil
	withNil.TaggedUserIDs = nil

	withEmpty := sampleMilestone()
	withEmpty.Participants = store.StringList{}
	withEmpty.TaggedUserIDs = store.StringList{}

	h1, err := ContentHashFor(withNil)
	require.NoError(t, err)
	h2, err := ContentHashFor(withEmpty)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestMetadataRoundTrip(t *testing.T) {
	m := sampleMilestone()
	md := MetadataFor(m)

	raw, err := md.CanonicalJSON()
	require.NoError(t, err)

	parsed, err := ParseMetadata(raw)
	require.NoError(t, err)

	want, err := md.ContentHash()
	require.NoError(t, err)
	got, err := parsed.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseMetadataRejectsGarbage(t *testing.T) {
	_, err := ParseMetadata([]byte("not json"))
	assert.Error(t, err)
}
