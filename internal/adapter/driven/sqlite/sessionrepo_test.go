package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helios-robotics/roverops/internal/domain/model"
	"github.com/helios-robotics/roverops/internal/domain/port/driven"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testSession(expiry time.Time) model.Session {
	return model.Session{
		Username: "alice",
		Tokens: model.TokenPair{
			AccessToken:  "A1",
			RefreshToken: "R1",
			ExpiresAt:    expiry,
		},
	}
}

func TestSessionRepo_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, testKey)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Save(ctx, testSession(expiry)))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Username)
	assert.Equal(t, "A1", loaded.Tokens.AccessToken)
	assert.Equal(t, "R1", loaded.Tokens.RefreshToken)
	assert.True(t, expiry.Equal(loaded.Tokens.ExpiresAt))
}

func TestSessionRepo_LoadEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, testKey)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestSessionRepo_SaveReplaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, testKey)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.Save(ctx, testSession(expiry)))

	replacement := testSession(expiry)
	replacement.Username = "bob"
	replacement.Tokens.AccessToken = "A2"
	require.NoError(t, repo.Save(ctx, replacement))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", loaded.Username)
	assert.Equal(t, "A2", loaded.Tokens.AccessToken)
}

func TestSessionRepo_Clear(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSession(time.Now().Add(time.Hour))))
	require.NoError(t, repo.Clear(ctx))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestSessionRepo_ClearEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, testKey)

	assert.NoError(t, repo.Clear(context.Background()))
}

func TestSessionRepo_MalformedExpiryLoadsAsAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, testKey)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSession(time.Now().Add(time.Hour))))

	_, err := db.Writer.ExecContext(ctx, `UPDATE session SET expires_at = 'not-a-time' WHERE id = 1`)
	require.NoError(t, err)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestSessionRepo_WrongKeyLoadsAsAbsent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, NewSessionRepo(db, testKey).Save(ctx, testSession(time.Now().Add(time.Hour))))

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	loaded, err := NewSessionRepo(db, otherKey).Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestSessionRepo_NilKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSessionRepo(db, nil)
	ctx := context.Background()

	err := repo.Save(ctx, testSession(time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Load(ctx)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	assert.ErrorIs(t, repo.Clear(ctx), driven.ErrEncryptionKeyNotSet)
}
