package sqlite

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jirabridge/jirabridge/internal/domain/port/driven"
)

func TestCredentialRepo_SetAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Set(ctx, "1001", "alice", "jira-token-abc", time.Now())
	require.NoError(t, err)

	val, err := repo.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "jira-token-abc", val)
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	_, err := repo.Get(ctx, "9999")
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_RotationShadowsPriorValue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := repo.Set(ctx, "1001", "alice", "old-token", base)
	require.NoError(t, err)

	err = repo.Set(ctx, "1001", "alice", "new-token", base.Add(time.Minute))
	require.NoError(t, err)

	val, err := repo.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "new-token", val)

	// Both versions remain on disk; only the newest is readable.
	var count int
	err = db.Reader.QueryRow(`SELECT COUNT(*) FROM credentials WHERE owner = '1001'`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCredentialRepo_LatestWinsWithOutOfOrderTimestamps(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// The newest timestamp arrives first; the stale write must not shadow it.
	require.NoError(t, repo.Set(ctx, "1001", "alice", "newest", base.Add(time.Hour)))
	require.NoError(t, repo.Set(ctx, "1001", "alice", "stale", base))

	val, err := repo.Get(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "newest", val)
}

func TestCredentialRepo_OwnersIsolated(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "1001", "alice", "alice-token", time.Now()))
	require.NoError(t, repo.Set(ctx, "1002", "bob", "bob-token", time.Now()))

	val, err := repo.Get(ctx, "1002")
	require.NoError(t, err)
	assert.Equal(t, "bob-token", val)
}

func TestCredentialRepo_TamperedCiphertextFailsClosed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "1001", "alice", "jira-token-abc", time.Now()))

	// Flip one byte of the stored ciphertext.
	var encoded string
	err := db.Reader.QueryRow(`SELECT value FROM credentials WHERE owner = '1001'`).Scan(&encoded)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = db.Writer.Exec(`UPDATE credentials SET value = ? WHERE owner = '1001'`, tampered)
	require.NoError(t, err)

	_, err = repo.Get(ctx, "1001")
	assert.ErrorIs(t, err, driven.ErrDecryptFailed)
}

func TestCredentialRepo_WrongKeyFailsClosed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewCredentialRepo(db, testKey()).Set(ctx, "1001", "alice", "secret", time.Now()))

	otherKey := testKey()
	otherKey[0] ^= 0xFF

	_, err := NewCredentialRepo(db, otherKey).Get(ctx, "1001")
	assert.ErrorIs(t, err, driven.ErrDecryptFailed)
}

func TestCredentialRepo_NoKeyConfigured(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	err := repo.Set(ctx, "1001", "alice", "secret", time.Now())
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "1001")
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestCredentialRepo_ValueEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "1001", "alice", "jira-token-abc", time.Now()))

	var stored string
	err := db.Reader.QueryRow(`SELECT value FROM credentials WHERE owner = '1001'`).Scan(&stored)
	require.NoError(t, err)
	assert.NotContains(t, stored, "jira-token-abc")
}
