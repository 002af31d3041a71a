package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chids04/0xm-relay/store"
)

func TestOpenInMemoryDB(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	assert.NotNil(t, database.Client())
}

func TestOpenFileDB(t *testing.T) {
	dir := t.TempDir()
	database, err := OpenFileDB(dir, "relay_data.db", true)
	require.NoError(t, err)
	defer database.Close()

	m := &store.Milestone{
		ID:          "m-1",
		Description: "ran a marathon",
		OwnerID:     "user-1",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, database.Client().Create(m).Error)

	var got store.Milestone
	require.NoError(t, database.Client().First(&got, "id = ?", "m-1").Error)
	assert.Equal(t, "ran a marathon", got.Description)
}

func TestIndexEntryUniqueness(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	entry := &store.IndexEntry{UserID: "u1", MilestoneID: "m1", Bucket: store.BucketPending}
	require.NoError(t, database.Client().Create(entry).Error)

	// A second row for the same (user, milestone) must be rejected: the
	// composite unique index is what keeps bucket membership exclusive.
	dup := &store.IndexEntry{UserID: "u1", MilestoneID: "m1", Bucket: store.BucketSigned}
	assert.Error(t, database.Client().Create(dup).Error)
}

func TestWalletAddressUniqueness(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	w := &store.Wallet{UserID: "u1", Address: "0xabc", EncryptedKey: "{}"}
	require.NoError(t, database.Client().Create(w).Error)

	other := &store.Wallet{UserID: "u2", Address: "0xabc", EncryptedKey: "{}"}
	assert.Error(t, database.Client().Create(other).Error)
}

func TestStringListRoundTrip(t *testing.T) {
	database, err := OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	m := &store.Milestone{
		ID:            "m-2",
		OwnerID:       "user-1",
		Participants:  store.StringList{"0xaa", "0xbb"},
		TaggedUserIDs: store.StringList{"u2", "u3"},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, database.Client().Create(m).Error)

	var got store.Milestone
	require.NoError(t, database.Client().First(&got, "id = ?", "m-2").Error)
	assert.Equal(t, store.StringList{"0xaa", "0xbb"}, got.Participants)
	assert.True(t, got.Participants.Contains("0xbb"))
	assert.False(t, got.Participants.Contains("0xcc"))
}
